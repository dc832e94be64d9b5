package ledger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"disbursex/internal/dataprocessing"
	apperrors "disbursex/internal/errors"
	"disbursex/pkg/contracts/domain"
)

// Sheet names of the ledger workbook.
const (
	DefaultEditSheet = "編集用"
	MasterSheet      = "品名マスタ"
	ByModelSheet     = "品名ごと"
	ByProcessSheet   = "工程ごと"
)

const maxColumnWidth = 80

// Report sheet headers.
var (
	masterHeaders    = []string{"品名", "型番"}
	byModelHeaders   = []string{"品名", "型番", "払出数合計"}
	byProcessHeaders = []string{"工程名", "品名", "型番", "払出数合計"}
)

// ModelTotal is one line of the per-model report.
type ModelTotal struct {
	ProductName string `json:"product_name" db:"product_name"`
	Model       string `json:"model" db:"model"`
	Total       int    `json:"total" db:"total"`
}

// ProcessTotal is one line of the per-process report.
type ProcessTotal struct {
	Process     string `json:"process"`
	ProductName string `json:"product_name"`
	Model       string `json:"model"`
	Total       int    `json:"total"`
}

// Report is the content written to the two summary sheets.
type Report struct {
	ByModel   []ModelTotal   `json:"by_model"`
	ByProcess []ProcessTotal `json:"by_process"`
}

// Workbook is a ledger workbook: an append-only working sheet, a product
// name master and two report sheets regenerated from the working sheet.
// A Workbook is not safe for concurrent use.
type Workbook struct {
	f      *excelize.File
	sheet  string
	logger *slog.Logger
}

// NewWorkbook creates an empty ledger with all four sheets.
func NewWorkbook(editSheet string) (*Workbook, error) {
	if editSheet == "" {
		editSheet = DefaultEditSheet
	}
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), editSheet); err != nil {
		f.Close()
		return nil, apperrors.NewStorageError("failed to create ledger workbook", err)
	}
	w := &Workbook{f: f, sheet: editSheet, logger: slog.Default()}

	for _, s := range []struct {
		name    string
		headers []string
	}{
		{editSheet, domain.LedgerHeaders},
		{MasterSheet, masterHeaders},
		{ByModelSheet, byModelHeaders},
		{ByProcessSheet, byProcessHeaders},
	} {
		if err := w.ensureSheet(s.name, s.headers); err != nil {
			f.Close()
			return nil, err
		}
	}
	return w, nil
}

// OpenWorkbook reads an existing ledger. A nil reader yields NewWorkbook.
func OpenWorkbook(r io.Reader, editSheet string) (*Workbook, error) {
	if r == nil {
		return NewWorkbook(editSheet)
	}
	if editSheet == "" {
		editSheet = DefaultEditSheet
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewInputError("failed to read ledger workbook", err)
	}
	return &Workbook{f: f, sheet: editSheet, logger: slog.Default()}, nil
}

// OpenWorkbookFile opens the ledger at path, or starts a new one when the
// file does not exist yet.
func OpenWorkbookFile(path, editSheet string) (*Workbook, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewWorkbook(editSheet)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open ledger", err).WithContext("path", path)
	}
	defer file.Close()
	return OpenWorkbook(file, editSheet)
}

// WithLogger sets the logger used for append and refresh events.
func (w *Workbook) WithLogger(logger *slog.Logger) *Workbook {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// EditSheet returns the working sheet name.
func (w *Workbook) EditSheet() string { return w.sheet }

// Append adds rows to the working sheet and returns how many were written.
// Rows with a zero quantity are skipped.
func (w *Workbook) Append(rows []domain.ExtractedRow) (int, error) {
	if err := w.ensureSheet(w.sheet, domain.LedgerHeaders); err != nil {
		return 0, err
	}

	existing, err := w.f.GetRows(w.sheet)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to read working sheet", err)
	}
	next := len(existing) + 1

	written := 0
	for _, row := range rows {
		if row.QuantityTotal == 0 {
			continue
		}
		values := row.Values()
		cell, _ := excelize.CoordinatesToCellName(1, next)
		if err := w.f.SetSheetRow(w.sheet, cell, &values); err != nil {
			return written, apperrors.NewStorageError("failed to append ledger row", err)
		}
		next++
		written++
	}

	if err := w.autosize(w.sheet); err != nil {
		return written, err
	}

	w.logger.Info("ledger rows appended",
		slog.String("sheet", w.sheet),
		slog.Int("offered", len(rows)),
		slog.Int("written", written),
	)
	return written, nil
}

// RefreshReports rebuilds the per-model and per-process sheets from the
// working sheet, resolving product names through the master sheet.
func (w *Workbook) RefreshReports() (*Report, error) {
	idx, err := w.f.GetSheetIndex(w.sheet)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to look up working sheet", err)
	}
	if idx < 0 {
		return &Report{}, nil
	}

	records, err := w.records()
	if err != nil {
		return nil, err
	}
	names, err := w.productNames()
	if err != nil {
		return nil, err
	}

	for _, s := range []struct {
		name    string
		headers []string
	}{
		{ByModelSheet, byModelHeaders},
		{ByProcessSheet, byProcessHeaders},
	} {
		if err := w.ensureSheet(s.name, s.headers); err != nil {
			return nil, err
		}
		if err := w.clearBody(s.name); err != nil {
			return nil, err
		}
	}

	report := buildReport(records, names)

	for i, t := range report.ByModel {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{t.ProductName, t.Model, t.Total}
		if err := w.f.SetSheetRow(ByModelSheet, cell, &values); err != nil {
			return nil, apperrors.NewStorageError("failed to write model report", err)
		}
	}
	for i, t := range report.ByProcess {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{t.Process, t.ProductName, t.Model, t.Total}
		if err := w.f.SetSheetRow(ByProcessSheet, cell, &values); err != nil {
			return nil, apperrors.NewStorageError("failed to write process report", err)
		}
	}

	for _, s := range []string{ByModelSheet, ByProcessSheet} {
		if err := w.autosize(s); err != nil {
			return nil, err
		}
	}

	w.logger.Info("ledger reports refreshed",
		slog.Int("records", len(records)),
		slog.Int("models", len(report.ByModel)),
		slog.Int("process_models", len(report.ByProcess)),
	)
	return report, nil
}

// Write serializes the workbook.
func (w *Workbook) Write(out io.Writer) error {
	if err := w.f.Write(out); err != nil {
		return apperrors.NewStorageError("failed to write ledger workbook", err)
	}
	return nil
}

// SaveAs writes the workbook to path.
func (w *Workbook) SaveAs(path string) error {
	if err := w.f.SaveAs(path); err != nil {
		return apperrors.NewStorageError("failed to save ledger workbook", err).WithContext("path", path)
	}
	return nil
}

// Close releases the workbook's temporary files.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// ledgerRecord is one working-sheet row keyed by header title.
type ledgerRecord map[string]string

// quantity parses the raw 払出数 cell; text such as "1,234" typed by hand is
// accepted too. Unparseable cells count as 0.
func (r ledgerRecord) quantity() int {
	n, ok := dataprocessing.NormalizeQuantity(r[domain.ColumnQuantity])
	if !ok {
		return 0
	}
	return n
}

// records reads raw cell values so number formats such as #,##0 do not leak
// into the quantities.
func (w *Workbook) records() ([]ledgerRecord, error) {
	rows, err := w.f.GetRows(w.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read working sheet", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var out []ledgerRecord
	for _, row := range rows[1:] {
		rec := make(ledgerRecord, len(headers))
		empty := true
		for c, h := range headers {
			if c < len(row) && row[c] != "" {
				rec[h] = row[c]
				empty = false
			}
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out, nil
}

// productNames maps model to product name from the master sheet, creating
// the sheet when it is missing.
func (w *Workbook) productNames() (map[string]string, error) {
	idx, err := w.f.GetSheetIndex(MasterSheet)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to look up master sheet", err)
	}
	if idx < 0 {
		return map[string]string{}, w.ensureSheet(MasterSheet, masterHeaders)
	}

	rows, err := w.f.GetRows(MasterSheet)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read master sheet", err)
	}
	names := make(map[string]string)
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		model := strings.TrimSpace(row[1])
		if model == "" {
			continue
		}
		names[model] = strings.TrimSpace(row[0])
	}
	return names, nil
}

func buildReport(records []ledgerRecord, names map[string]string) *Report {
	byModel := make(map[string]int)
	type procModel struct{ process, model string }
	byProc := make(map[procModel]int)

	for _, rec := range records {
		model := strings.TrimSpace(rec[domain.ColumnModel])
		if model == "" {
			continue
		}
		qty := rec.quantity()
		byModel[model] += qty

		process := strings.TrimSpace(rec[domain.ColumnProcess])
		if process == "" {
			continue
		}
		byProc[procModel{process, model}] += qty
	}

	report := &Report{}

	models := make([]string, 0, len(byModel))
	for m := range byModel {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		report.ByModel = append(report.ByModel, ModelTotal{ProductName: names[m], Model: m, Total: byModel[m]})
	}

	keys := make([]procModel, 0, len(byProc))
	for k := range byProc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].process != keys[j].process {
			return keys[i].process < keys[j].process
		}
		return keys[i].model < keys[j].model
	})
	for _, k := range keys {
		report.ByProcess = append(report.ByProcess, ProcessTotal{
			Process:     k.process,
			ProductName: names[k.model],
			Model:       k.model,
			Total:       byProc[k],
		})
	}
	return report
}

// ensureSheet creates the sheet if needed and writes headers when the
// header cells are all blank.
func (w *Workbook) ensureSheet(name string, headers []string) error {
	idx, err := w.f.GetSheetIndex(name)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to look up sheet %q", name), err)
	}
	if idx < 0 {
		if _, err := w.f.NewSheet(name); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to create sheet %q", name), err)
		}
	}

	for c := range headers {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		v, err := w.f.GetCellValue(name, cell)
		if err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to read sheet %q", name), err)
		}
		if v != "" {
			return nil
		}
	}

	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := w.f.SetSheetRow(name, "A1", &values); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to write headers of %q", name), err)
	}
	return nil
}

func (w *Workbook) clearBody(name string) error {
	rows, err := w.f.GetRows(name)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to read sheet %q", name), err)
	}
	for r := len(rows); r >= 2; r-- {
		if err := w.f.RemoveRow(name, r); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to clear sheet %q", name), err)
		}
	}
	return nil
}

// autosize sets each column's width to its longest value plus two,
// capped at maxColumnWidth. Lengths count runes.
func (w *Workbook) autosize(name string) error {
	rows, err := w.f.GetRows(name)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to read sheet %q", name), err)
	}

	var widths []int
	for _, row := range rows {
		for c, v := range row {
			if c >= len(widths) {
				widths = append(widths, make([]int, c-len(widths)+1)...)
			}
			if n := utf8.RuneCountInString(v); n > widths[c] {
				widths[c] = n
			}
		}
	}

	for c, n := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return apperrors.NewStorageError("invalid column", err)
		}
		width := n + 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := w.f.SetColWidth(name, col, col, float64(width)); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to size columns of %q", name), err)
		}
	}
	return nil
}
