package ledger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "disbursex/internal/errors"
	"disbursex/pkg/contracts/domain"
)

func reopen(t *testing.T, w *Workbook) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestNewWorkbook(t *testing.T) {
	w, err := NewWorkbook("")
	require.NoError(t, err)
	defer w.Close()

	f := reopen(t, w)
	assert.Equal(t, []string{DefaultEditSheet, MasterSheet, ByModelSheet, ByProcessSheet}, f.GetSheetList())

	rows, err := f.GetRows(DefaultEditSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.LedgerHeaders, rows[0])
}

func TestWorkbook_AppendAndRefresh(t *testing.T) {
	w, err := NewWorkbook(DefaultEditSheet)
	require.NoError(t, err)
	defer w.Close()

	rows := append(sampleRows(),
		domain.ExtractedRow{Process: "検査", Model: "A1", LotNo: "L2", QuantityTotal: 4},
		domain.ExtractedRow{Process: "検査", Model: "C3", QuantityTotal: 0},
		domain.ExtractedRow{Model: "A1", QuantityTotal: 1},
	)

	n, err := w.Append(rows)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	report, err := w.RefreshReports()
	require.NoError(t, err)

	assert.Equal(t, []ModelTotal{
		{Model: "A1", Total: 20},
		{Model: "B2", Total: -3},
	}, report.ByModel)
	assert.Equal(t, []ProcessTotal{
		{Process: "検査", Model: "A1", Total: 4},
		{Process: "組立", Model: "A1", Total: 15},
		{Process: "組立", Model: "B2", Total: -3},
	}, report.ByProcess)

	f := reopen(t, w)
	edit, err := f.GetRows(DefaultEditSheet)
	require.NoError(t, err)
	require.Len(t, edit, 5)
	assert.Equal(t, "15", edit[1][4])

	byModel, err := f.GetRows(ByModelSheet)
	require.NoError(t, err)
	require.Len(t, byModel, 3)
	assert.Equal(t, []string{"", "A1", "20"}, byModel[1])
}

func TestWorkbook_ProductNamesAndReappend(t *testing.T) {
	w, err := NewWorkbook("")
	require.NoError(t, err)
	_, err = w.Append(sampleRows())
	require.NoError(t, err)
	_, err = w.RefreshReports()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf))
	require.NoError(t, w.Close())

	// add a product name to the master, then merge a second batch
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow(MasterSheet, "A2", &[]interface{}{"ガーゼ", "A1"}))
	buf.Reset()
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	w2, err := OpenWorkbook(bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	defer w2.Close()

	_, err = w2.Append(sampleRows()[:1])
	require.NoError(t, err)
	report, err := w2.RefreshReports()
	require.NoError(t, err)

	require.Len(t, report.ByModel, 2)
	assert.Equal(t, ModelTotal{ProductName: "ガーゼ", Model: "A1", Total: 30}, report.ByModel[0])

	out := reopen(t, w2)
	byModel, err := out.GetRows(ByModelSheet)
	require.NoError(t, err)
	// stale report lines are replaced, not appended to
	assert.Len(t, byModel, 3)
	byProc, err := out.GetRows(ByProcessSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"組立", "ガーゼ", "A1", "30"}, byProc[1])
}

func TestWorkbook_ForeignWorkbookGetsSheets(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "memo"))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	w, err := OpenWorkbook(&buf, "")
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Append(sampleRows())
	require.NoError(t, err)
	_, err = w.RefreshReports()
	require.NoError(t, err)

	out := reopen(t, w)
	assert.ElementsMatch(t, []string{"Sheet1", DefaultEditSheet, MasterSheet, ByModelSheet, ByProcessSheet}, out.GetSheetList())
}

func TestWorkbook_Autosize(t *testing.T) {
	w, err := NewWorkbook("")
	require.NoError(t, err)
	defer w.Close()

	long := domain.ExtractedRow{Model: string(bytes.Repeat([]byte("x"), 120)), QuantityTotal: 1}
	_, err = w.Append([]domain.ExtractedRow{long})
	require.NoError(t, err)

	f := reopen(t, w)
	width, err := f.GetColWidth(DefaultEditSheet, "C")
	require.NoError(t, err)
	assert.Equal(t, float64(maxColumnWidth), width)

	// "有効期限" is four runes
	width, err = f.GetColWidth(DefaultEditSheet, "F")
	require.NoError(t, err)
	assert.Equal(t, float64(6), width)
}

func TestOpenWorkbookFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.xlsx")

	w, err := OpenWorkbookFile(path, "")
	require.NoError(t, err)
	_, err = w.Append(sampleRows())
	require.NoError(t, err)
	require.NoError(t, w.SaveAs(path))
	require.NoError(t, w.Close())

	w2, err := OpenWorkbookFile(path, "")
	require.NoError(t, err)
	defer w2.Close()
	_, err = w2.Append(sampleRows())
	require.NoError(t, err)

	out := reopen(t, w2)
	rows, err := out.GetRows(DefaultEditSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestOpenWorkbook_Invalid(t *testing.T) {
	_, err := OpenWorkbook(bytes.NewReader([]byte("nope")), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInput))
}

func TestWorkbook_RefreshReadsRawQuantities(t *testing.T) {
	w, err := NewWorkbook(DefaultEditSheet)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Append([]domain.ExtractedRow{
		{Process: "組立", Model: "M1", QuantityTotal: 1234},
		{Process: "組立", Model: "M1", QuantityTotal: 1},
	})
	require.NoError(t, err)

	// thousands separator display format on the numeric cell, hand-typed
	// text with a separator on the next one
	style, err := w.f.NewStyle(&excelize.Style{NumFmt: 3})
	require.NoError(t, err)
	require.NoError(t, w.f.SetCellStyle(DefaultEditSheet, "E2", "E2", style))
	require.NoError(t, w.f.SetCellStr(DefaultEditSheet, "E3", "2,000"))

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf))
	reopened, err := OpenWorkbook(&buf, DefaultEditSheet)
	require.NoError(t, err)
	defer reopened.Close()

	shown, err := reopened.f.GetCellValue(DefaultEditSheet, "E2")
	require.NoError(t, err)
	assert.Equal(t, "1,234", shown)

	report, err := reopened.RefreshReports()
	require.NoError(t, err)
	assert.Equal(t, []ModelTotal{{Model: "M1", Total: 3234}}, report.ByModel)
	assert.Equal(t, []ProcessTotal{{Process: "組立", Model: "M1", Total: 3234}}, report.ByProcess)
}
