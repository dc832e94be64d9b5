package dataprocessing

import (
	"fmt"
	"regexp"
)

// PreferredSheetName is the working sheet that always wins selection.
const PreferredSheetName = "編集用"

// Selection reasons returned by SelectSheet.
const (
	ReasonPreferred   = "preferred sheet"
	ReasonDated       = "most recent dated sheet"
	ReasonNonExcluded = "first non-excluded sheet"
	ReasonFallback    = "fallback"
)

// ExcludedSheetPatterns match base, check, verification and download-only
// sheets that never hold the disbursement table.
var ExcludedSheetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)基本シート`),
	regexp.MustCompile(`(?i)^確認`),
	regexp.MustCompile(`(?i)確認用`),
	regexp.MustCompile(`(?i)確認\s*\(編集後\)`),
	regexp.MustCompile(`(?i)チェック`),
	regexp.MustCompile(`(?i)check`),
	regexp.MustCompile(`(?i)DL用`),
}

var datedSheetPattern = regexp.MustCompile(`(?:^|\s)(\d{4})[./-](\d{1,2})[./-](\d{1,2})(?:\s|$)`)

// SelectSheet picks the sheet to extract from an ordered list of names and
// explains why. The preferred working sheet wins, then the sheet carrying
// the latest date token (earliest listed on ties), then the first sheet not
// matching ExcludedSheetPatterns, then the first sheet. names must not be
// empty; an empty list yields two empty strings.
func SelectSheet(names []string) (string, string) {
	if len(names) == 0 {
		return "", ""
	}

	for _, name := range names {
		if name == PreferredSheetName {
			return name, ReasonPreferred
		}
	}

	if name, date, ok := latestDatedSheet(names); ok {
		return name, fmt.Sprintf("%s (%s)", ReasonDated, date)
	}

	for _, name := range names {
		if !isExcludedSheet(name) {
			return name, ReasonNonExcluded
		}
	}

	return names[0], ReasonFallback
}

func latestDatedSheet(names []string) (string, string, bool) {
	best := -1
	var bestDate string
	for i, name := range names {
		m := datedSheetPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		d, ok := calendarDate(m[1], m[2], m[3])
		if !ok {
			continue
		}
		iso := d.Format("2006-01-02")
		// strictly later only, so the earliest listed sheet keeps a tie
		if best < 0 || iso > bestDate {
			best = i
			bestDate = iso
		}
	}
	if best < 0 {
		return "", "", false
	}
	return names[best], bestDate, true
}

func isExcludedSheet(name string) bool {
	for _, p := range ExcludedSheetPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}
