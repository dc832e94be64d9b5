package domain

import (
	"strconv"
	"time"
)

// Ledger column titles, in the order they appear on the working sheet.
const (
	ColumnProcess  = "工程名"
	ColumnLot      = "LOT"
	ColumnModel    = "型番"
	ColumnLotNo    = "Lot No."
	ColumnQuantity = "払出数"
	ColumnExpiry   = "有効期限"
	ColumnFile     = "ファイル名"
)

// LedgerHeaders lists the seven ledger columns.
var LedgerHeaders = []string{
	ColumnProcess,
	ColumnLot,
	ColumnModel,
	ColumnLotNo,
	ColumnQuantity,
	ColumnExpiry,
	ColumnFile,
}

// ExtractedRow is one aggregated disbursement record emitted for a sheet.
// Process and Lot are sheet-level metadata and are identical for every row
// of one sheet; LotNo is the per-row carried lot number.
type ExtractedRow struct {
	Process         string `json:"process" db:"process"`
	Lot             string `json:"lot" db:"lot"`
	Model           string `json:"model" db:"model" validate:"required"`
	LotNo           string `json:"lot_no" db:"lot_no"`
	QuantityTotal   int    `json:"quantity_total" db:"quantity_total"`
	Expiry          string `json:"expiry" db:"expiry"`
	SourceFileLabel string `json:"source_file_label" db:"source_file_label"`
}

// Values returns the row in LedgerHeaders order.
func (r ExtractedRow) Values() []interface{} {
	return []interface{}{r.Process, r.Lot, r.Model, r.LotNo, r.QuantityTotal, r.Expiry, r.SourceFileLabel}
}

// Strings returns the row in LedgerHeaders order as text.
func (r ExtractedRow) Strings() []string {
	return []string{r.Process, r.Lot, r.Model, r.LotNo, strconv.Itoa(r.QuantityTotal), r.Expiry, r.SourceFileLabel}
}

// RejectionReason classifies why a data row was skipped.
type RejectionReason string

const (
	RejectEmptyRow        RejectionReason = "empty-row"
	RejectModelMissing    RejectionReason = "model-missing"
	RejectLotMissing      RejectionReason = "lot-missing"
	RejectQuantityInvalid RejectionReason = "quantity-invalid"
	RejectQuantityZero    RejectionReason = "quantity-zero"
	RejectDateInvalid     RejectionReason = "date-invalid"
)

// RejectionReasons lists every reason in reporting order.
var RejectionReasons = []RejectionReason{
	RejectEmptyRow,
	RejectModelMissing,
	RejectLotMissing,
	RejectQuantityInvalid,
	RejectQuantityZero,
	RejectDateInvalid,
}

// RejectionStats counts skipped rows per reason for one sheet extraction.
type RejectionStats map[RejectionReason]int

// NewRejectionStats returns stats with every reason present at zero.
func NewRejectionStats() RejectionStats {
	s := make(RejectionStats, len(RejectionReasons))
	for _, r := range RejectionReasons {
		s[r] = 0
	}
	return s
}

// Total returns the number of rejected rows.
func (s RejectionStats) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// NonZero returns only the reasons that were hit.
func (s RejectionStats) NonZero() RejectionStats {
	out := make(RejectionStats)
	for k, v := range s {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

// Merge adds other into s.
func (s RejectionStats) Merge(other RejectionStats) {
	for k, v := range other {
		s[k] += v
	}
}

// HeaderMap holds the located header row and the 0-based column of each
// semantic field. Missing columns are -1.
type HeaderMap struct {
	Row    int  `json:"row"`
	Model  int  `json:"model"`
	LotNo  int  `json:"lot_no"`
	Qty    int  `json:"qty"`
	Exp    int  `json:"exp"`
	Merged bool `json:"merged"`
}

// DataStart returns the first row index below the header.
func (h HeaderMap) DataStart() int {
	if h.Merged {
		return h.Row + 2
	}
	return h.Row + 1
}

// FileStatus is the outcome of extracting one input file.
type FileStatus string

const (
	FileStatusOK       FileStatus = "ok"
	FileStatusEmpty    FileStatus = "empty"
	FileStatusNoHeader FileStatus = "no_header"
	FileStatusFailed   FileStatus = "failed"
)

// FileResult reports one file of a batch.
type FileResult struct {
	FileName   string         `json:"file_name"`
	FileLabel  string         `json:"file_label"`
	Sheet      string         `json:"sheet,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Status     FileStatus     `json:"status"`
	RowCount   int            `json:"row_count"`
	Rejections RejectionStats `json:"rejections,omitempty"`
	Error      string         `json:"error,omitempty"`
	Rows       []ExtractedRow `json:"rows,omitempty"`
}

// QuantitySummary describes the disbursed quantities of a batch.
type QuantitySummary struct {
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// BatchResult aggregates a whole extraction run.
type BatchResult struct {
	BatchID     string          `json:"batch_id"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Files       []FileResult    `json:"files"`
	TotalRows   int             `json:"total_rows"`
	Quantities  QuantitySummary `json:"quantities"`
}

// Rows returns every extracted row of the batch in file order.
func (b *BatchResult) Rows() []ExtractedRow {
	var out []ExtractedRow
	for _, f := range b.Files {
		out = append(out, f.Rows...)
	}
	return out
}

// Problems returns the files that did not produce rows.
func (b *BatchResult) Problems() []FileResult {
	var out []FileResult
	for _, f := range b.Files {
		if f.Status != FileStatusOK {
			out = append(out, f)
		}
	}
	return out
}
