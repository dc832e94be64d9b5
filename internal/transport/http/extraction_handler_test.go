package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"disbursex/internal/config"
	apierrors "disbursex/internal/errors"
	"disbursex/internal/ledger"
	"disbursex/internal/services"
	"disbursex/pkg/contracts/domain"
)

type upload struct {
	field string
	name  string
	data  []byte
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, store ledger.Store) chi.Router {
	t.Helper()
	cfg := config.Default()
	svc := services.NewExtractionService(cfg.Extraction, cfg.Ledger, services.ExtractionDeps{
		Store:  store,
		Logger: testLogger(),
	})
	h := NewExtractionHandler(svc, testLogger(), apierrors.NewErrorHandler(testLogger(), false))

	r := chi.NewRouter()
	r.Mount("/api", h.Routes())
	return r
}

func workbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, cells := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		rowCopy := cells
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &rowCopy))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func sampleWorkbook(t *testing.T) []byte {
	return workbook(t, [][]interface{}{
		{"組立工程"},
		{"Lot: P-01"},
		{"型番", "Lot No", "払出数", "有効期限"},
		{"A1", "L1", 10, "2025/1/1"},
		{nil, nil, 5, nil},
		{"B2", nil, 3, "2026/02/01"},
	})
}

func multipartRequest(t *testing.T, target string, fields map[string]string, uploads ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, u := range uploads {
		part, err := mw.CreateFormFile(u.field, u.name)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestExtract(t *testing.T) {
	r := newTestRouter(t, nil)
	req := multipartRequest(t, "/api/extract", nil,
		upload{"files", "0401_払出.xlsx", sampleWorkbook(t)},
		upload{"files", "memo.xlsx", workbook(t, [][]interface{}{{"nothing"}})},
	)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var batch domain.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	assert.NotEmpty(t, batch.BatchID)
	assert.Equal(t, 2, batch.TotalRows)
	require.Len(t, batch.Files, 2)
	assert.Equal(t, domain.FileStatusOK, batch.Files[0].Status)
	assert.Equal(t, domain.FileStatusNoHeader, batch.Files[1].Status)
	assert.Equal(t, "Sheet1", batch.Files[1].Sheet)

	rows := batch.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "組立工程", rows[0].Process)
	assert.Equal(t, 15, rows[0].QuantityTotal)
}

func TestExtract_RelaxedOptions(t *testing.T) {
	r := newTestRouter(t, nil)
	data := workbook(t, [][]interface{}{
		{"型番", "Lot No", "払出数", "有効期限"},
		{"A1", nil, 1, nil},
		{nil, "L9", 2, nil},
	})

	strict := httptest.NewRecorder()
	r.ServeHTTP(strict, multipartRequest(t, "/api/extract", nil, upload{"files", "a.xlsx", data}))
	assert.Equal(t, http.StatusUnprocessableEntity, strict.Code)

	relaxed := httptest.NewRecorder()
	r.ServeHTTP(relaxed, multipartRequest(t, "/api/extract",
		map[string]string{"require_lot_no": "false", "require_exp": "false"},
		upload{"files", "a.xlsx", data}))
	require.Equal(t, http.StatusOK, relaxed.Code, relaxed.Body.String())

	var batch domain.BatchResult
	require.NoError(t, json.Unmarshal(relaxed.Body.Bytes(), &batch))
	assert.Equal(t, 2, batch.TotalRows)
}

func TestExtract_CSV(t *testing.T) {
	r := newTestRouter(t, nil)
	req := multipartRequest(t, "/api/extract", map[string]string{"format": "csv"},
		upload{"files", "0401_払出.xlsx", sampleWorkbook(t)})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Batch-ID"))
	assert.Contains(t, rec.Body.String(), "組立工程,P-01,A1,L1,15,2025/1/1,0401_払出")
}

func TestExtract_Errors(t *testing.T) {
	r := newTestRouter(t, nil)
	good := sampleWorkbook(t)

	tooMany := make([]upload, config.DefaultMaxFilesPerBatch+1)
	for i := range tooMany {
		tooMany[i] = upload{"files", "f.xlsx", good}
	}

	tests := []struct {
		name      string
		req       *http.Request
		status    int
		errorCode string
	}{
		{
			name:      "no files",
			req:       multipartRequest(t, "/api/extract", map[string]string{"require_exp": "true"}),
			status:    http.StatusBadRequest,
			errorCode: "MISSING_FILES",
		},
		{
			name:      "not multipart",
			req:       httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader("{}")),
			status:    http.StatusBadRequest,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "wrong extension",
			req:       multipartRequest(t, "/api/extract", nil, upload{"files", "old.xls", good}),
			status:    http.StatusBadRequest,
			errorCode: "VALIDATION_FAILED",
		},
		{
			name:      "bad flag",
			req:       multipartRequest(t, "/api/extract", map[string]string{"require_exp": "maybe"}, upload{"files", "a.xlsx", good}),
			status:    http.StatusBadRequest,
			errorCode: "VALIDATION_FAILED",
		},
		{
			name:      "no rows",
			req:       multipartRequest(t, "/api/extract", nil, upload{"files", "broken.xlsx", []byte("junk")}),
			status:    http.StatusUnprocessableEntity,
			errorCode: "NO_ROWS_EXTRACTED",
		},
		{
			name:   "too many files",
			req:    multipartRequest(t, "/api/extract", nil, tooMany...),
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			body := decodeJSON(t, rec)
			assert.Equal(t, float64(tt.status), body["status"])
			if tt.errorCode != "" {
				assert.Equal(t, tt.errorCode, body["error_code"])
			}
		})
	}
}

func TestExtract_NoRowsCarriesFileResults(t *testing.T) {
	r := newTestRouter(t, nil)
	req := multipartRequest(t, "/api/extract", nil,
		upload{"files", "memo.xlsx", workbook(t, [][]interface{}{{"nothing"}})})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeJSON(t, rec)
	details, ok := body["details"].([]interface{})
	require.True(t, ok)
	require.Len(t, details, 1)
	first := details[0].(map[string]interface{})
	assert.Equal(t, "no_header", first["status"])
	assert.Equal(t, "Sheet1", first["sheet"])
}

func TestMergeLedger(t *testing.T) {
	store := ledger.NewMemoryStore()
	r := newTestRouter(t, store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/api/ledger", nil,
		upload{"files", "0401_払出.xlsx", sampleWorkbook(t)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Rows-Appended"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ledger.xlsx")

	// merge again into the returned workbook
	first := rec.Body.Bytes()
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, multipartRequest(t, "/api/ledger", nil,
		upload{"files", "0401_払出.xlsx", sampleWorkbook(t)},
		upload{"ledger", "台帳.xlsx", first}))
	require.Equal(t, http.StatusOK, rec2.Code, rec2.Body.String())
	assert.Contains(t, rec2.Header().Get("Content-Disposition"), "UTF-8''")

	f, err := excelize.OpenReader(bytes.NewReader(rec2.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ledger.ByModelSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A1", rows[1][1])
	assert.Equal(t, "30", rows[1][2])

	totals, err := store.TotalsByModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ledger.ModelTotal{{Model: "A1", Total: 30}, {Model: "B2", Total: 6}}, totals)
}

func TestMergeLedger_BadBase(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/api/ledger", nil,
		upload{"files", "a.xlsx", sampleWorkbook(t)},
		upload{"ledger", "ledger.xlsx", []byte("not a workbook")}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestTotals(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/totals", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, apierrors.ErrNotFound.ErrorCode, body["error_code"])
		assert.Equal(t, "ledger store not found", body["detail"])
	})

	t.Run("empty store", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(t, ledger.NewMemoryStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/totals", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, decodeJSON(t, rec), "totals")
	})
}
