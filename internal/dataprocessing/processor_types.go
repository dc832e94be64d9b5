package dataprocessing

import (
	"disbursex/pkg/contracts/domain"
)

// Grid is a row-major table of raw cell values. Rows may be ragged; a cell
// past the end of its row reads as missing. Values are nil, string, numeric
// or time.Time.
type Grid [][]any

// cell returns grid[r][c] or nil when out of range.
func (g Grid) cell(r, c int) any {
	if r < 0 || r >= len(g) || c < 0 || c >= len(g[r]) {
		return nil
	}
	return g[r][c]
}

// GridFromStrings converts string rows, as returned by excelize GetRows,
// into a Grid. Empty strings become missing cells.
func GridFromStrings(rows [][]string) Grid {
	g := make(Grid, len(rows))
	for i, row := range rows {
		g[i] = make([]any, len(row))
		for j, v := range row {
			if v != "" {
				g[i][j] = v
			}
		}
	}
	return g
}

// ScanOptions configures one Row-Carry extraction pass.
type ScanOptions struct {
	// Process and Lot are the sheet metadata copied onto every emitted row.
	Process string
	Lot     string

	FileLabel string

	// QuantitySign is +1 or -1; any other value is treated as +1.
	QuantitySign int

	RequireLotNo bool
	RequireExp   bool
}

// ParseOptions configures workbook extraction end to end.
type ParseOptions struct {
	ScanRows     int  `yaml:"scan_rows" validate:"gte=1,lte=1000"`
	MetaRows     int  `yaml:"meta_rows" validate:"gte=1,lte=100"`
	MetaCols     int  `yaml:"meta_cols" validate:"gte=1,lte=100"`
	RequireLotNo bool `yaml:"require_lot_no"`
	RequireExp   bool `yaml:"require_exp"`
}

// DefaultParseOptions mirrors the interactive tool's defaults: both lot
// number and expiry required.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		ScanRows:     DefaultHeaderScanRows,
		MetaRows:     DefaultMetaRows,
		MetaCols:     DefaultMetaCols,
		RequireLotNo: true,
		RequireExp:   true,
	}
}

// SheetResult is the outcome of extracting the selected sheet of a workbook.
type SheetResult struct {
	FileLabel  string                `json:"file_label"`
	Sheet      string                `json:"sheet"`
	Reason     string                `json:"reason"`
	Header     domain.HeaderMap      `json:"header"`
	Metadata   Metadata              `json:"metadata"`
	Rows       []domain.ExtractedRow `json:"rows"`
	Rejections domain.RejectionStats `json:"rejections"`
}
