package dataprocessing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"
)

var (
	lineBreakReplacer = strings.NewReplacer("\r", " ", "\n", " ", "　", " ")
	headerReplacer    = strings.NewReplacer("　", "", "\r", " ", "\n", " ")

	quantityTokenPattern = regexp.MustCompile(`^\s*([+-]?\d+(?:\.\d+)?)`)
	datePattern          = regexp.MustCompile(`(\d{4})[./-](\d{1,2})[./-](\d{1,2})`)
)

// cellString stringifies a raw cell value. Integral floats drop their
// fractional part so a model number stored as 1001.0 reads as "1001".
func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// NormalizeText folds line breaks and ideographic spaces to ordinary spaces
// and trims the result. Missing cells yield "".
func NormalizeText(cell any) string {
	return strings.TrimSpace(lineBreakReplacer.Replace(cellString(cell)))
}

// NormalizeHeaderText is the header and metadata variant of NormalizeText:
// ideographic spaces are removed outright so "型　番" matches "型番".
func NormalizeHeaderText(cell any) string {
	return strings.TrimSpace(headerReplacer.Replace(cellString(cell)))
}

// NormalizeQuantity parses a quantity cell. Numbers are rounded half to even;
// text is width-folded, stripped of thousands separators and read from its
// leading numeric token, so "1,234個" and "１２" both parse.
func NormalizeQuantity(cell any) (int, bool) {
	switch v := cell.(type) {
	case nil:
		return 0, false
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float32:
		return roundQuantity(float64(v))
	case float64:
		return roundQuantity(v)
	}

	s := width.Narrow.String(strings.TrimSpace(cellString(cell)))
	s = strings.ReplaceAll(s, ",", "")
	m := quantityTokenPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return roundQuantity(f)
}

func roundQuantity(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.RoundToEven(f)), true
}

// NormalizeDate extracts the first Y[./-]M[./-]D token and returns it as
// "Y/M/D" without zero padding. Tokens that are not real calendar dates,
// such as a 13th month, are rejected.
func NormalizeDate(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	m := datePattern.FindStringSubmatch(width.Narrow.String(text))
	if m == nil {
		return "", false
	}
	d, ok := calendarDate(m[1], m[2], m[3])
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%d/%d/%d", d.Year(), int(d.Month()), d.Day()), true
}

// calendarDate builds a date from decimal year, month and day strings and
// reports false when time.Date had to normalize an out-of-range part.
func calendarDate(ys, ms, ds string) (time.Time, bool) {
	y, err1 := strconv.Atoi(ys)
	mo, err2 := strconv.Atoi(ms)
	d, err3 := strconv.Atoi(ds)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
