package dataprocessing

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "disbursex/internal/errors"
)

// excelMaxSerial is the serial of 9999-12-31, the last date Excel displays.
const excelMaxSerial = 2958465

// FileLabel is the base name of an upload or path without its extension.
func FileLabel(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseFile reads a disbursement export from disk and extracts the selected
// sheet.
func ParseFile(filePath string, opts ParseOptions) (*SheetResult, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, apperrors.NewInputError("failed to open workbook", err).
			WithContext("file", filepath.Base(filePath))
	}
	defer f.Close()

	return parseWorkbook(f, FileLabel(filePath), opts)
}

// ParseReader is ParseFile for uploads; name is the client-side file name
// and only supplies the label.
func ParseReader(r io.Reader, name string, opts ParseOptions) (*SheetResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewInputError("failed to read workbook", err).
			WithContext("file", name)
	}
	defer f.Close()

	return parseWorkbook(f, FileLabel(name), opts)
}

func parseWorkbook(f *excelize.File, label string, opts ParseOptions) (*SheetResult, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewInputError("workbook has no sheets", nil).
			WithContext("file", label)
	}

	sheet, reason := SelectSheet(sheets)
	slog.Debug("sheet selected",
		slog.String("file", label),
		slog.String("sheet", sheet),
		slog.String("reason", reason),
	)

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewInputError(fmt.Sprintf("failed to read sheet %q", sheet), err).
			WithContext("file", label)
	}
	grid := GridFromStrings(rows)

	meta := ExtractMetadata(grid, opts.MetaRows, opts.MetaCols)

	hm, ok := LocateHeader(grid, opts.ScanRows)
	if !ok {
		return nil, apperrors.NewHeaderNotFoundError(sheet, reason).
			WithContext("file", label)
	}

	data := Grid{}
	if start := hm.DataStart(); start < len(grid) {
		data = grid[start:]
	}
	if hm.Exp >= 0 {
		resolveDateSerials(f, sheet, data, hm.Exp, hm.DataStart())
	}

	extracted, rejections := ExtractRows(data, hm, ScanOptions{
		Process:      meta.Process,
		Lot:          meta.Lot,
		FileLabel:    label,
		QuantitySign: QuantitySign(label),
		RequireLotNo: opts.RequireLotNo,
		RequireExp:   opts.RequireExp,
	})

	slog.Info("sheet extracted",
		slog.String("file", label),
		slog.String("sheet", sheet),
		slog.Int("header_row", hm.Row+1),
		slog.Int("rows", len(extracted)),
		slog.Int("rejected", rejections.Total()),
	)

	return &SheetResult{
		FileLabel:  label,
		Sheet:      sheet,
		Reason:     reason,
		Header:     hm,
		Metadata:   meta,
		Rows:       extracted,
		Rejections: rejections,
	}, nil
}

// resolveDateSerials replaces expiry cells whose display text is not a
// recognizable date but whose raw value is a date serial shown through a
// number format, e.g. "m/d/yy". offset is the sheet row of data[0].
func resolveDateSerials(f *excelize.File, sheet string, data Grid, col, offset int) {
	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	for i, row := range data {
		if col >= len(row) || row[col] == nil {
			continue
		}
		shown := NormalizeText(row[col])
		if _, ok := NormalizeDate(shown); ok {
			continue
		}
		axis, err := excelize.CoordinatesToCellName(col+1, offset+i+1)
		if err != nil {
			continue
		}
		raw, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		if raw == shown {
			continue
		}
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil || serial < 1 || serial > excelMaxSerial {
			continue
		}
		if t, err := excelize.ExcelDateToTime(serial, date1904); err == nil {
			row[col] = t
		}
	}
}
