package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disbursex/internal/config"
	"disbursex/internal/shared/testutil"
	"disbursex/pkg/contracts/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "ledger.xlsx")
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "prometheus"
	cfg.RateLimit.Enabled = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger()
	a, err := NewApplicationWithConfig(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.OTelProviders.Shutdown(context.Background())
	})
	return a
}

func serve(a *Application, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func workbookUpload(t *testing.T, name string) (*bytes.Buffer, string) {
	t.Helper()
	wb := testutil.WorkbookBytes(t, [][]interface{}{
		{"検査工程"},
		{"型番", "Lot No", "払出数", "有効期限"},
		{"A1", "L1", 10, "2025/1/1"},
		{nil, nil, 5, nil},
	})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = part.Write(wb)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestNewApplicationWithConfig(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	assert.NotNil(t, a.Router)
	assert.NotNil(t, a.Server)
	assert.Equal(t, ":0", a.Server.Addr)
	require.NotNil(t, a.Services)
	assert.NotNil(t, a.Services.Store)
	assert.NotNil(t, a.Services.Extraction)
	assert.NotNil(t, a.Services.Health)
	assert.NotNil(t, a.Metrics)
}

func TestNewApplicationWithConfig_BadExporter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.TraceExporter = "jaeger"

	logger, _ := testutil.NewTestLogger()
	_, err := NewApplicationWithConfig(context.Background(), cfg, logger)
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"health", http.MethodGet, "/healthz", http.StatusOK, `"status":"ok"`},
		{"liveness", http.MethodGet, "/healthz/live", http.StatusOK, `"status":"alive"`},
		{"version", http.MethodGet, "/version", http.StatusOK, config.AppVersion},
		{"totals", http.MethodGet, "/api/totals", http.StatusOK, `"totals"`},
		{"not found", http.MethodGet, "/nope", http.StatusNotFound, "Not Found"},
		{"method not allowed", http.MethodDelete, "/api/extract", http.StatusMethodNotAllowed, ""},
		{"wrong content type", http.MethodPost, "/api/extract", http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			if tt.method == http.MethodPost {
				req.Header.Set("Content-Type", "application/json")
			}
			rec := serve(a, req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestExtractThroughRouter(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	body, contentType := workbookUpload(t, "払出_0401.xlsx")
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(a, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var batch domain.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	rows := batch.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "A1", rows[0].Model)
	assert.Equal(t, 15, rows[0].QuantityTotal)
	assert.Equal(t, "検査工程", rows[0].Process)

	metrics := serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "disbursex_files_processed_total")
	assert.Contains(t, metrics.Body.String(), "disbursex_http_requests_total")
}

func TestUploadLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxUploadBytes = 16
	a := newTestApp(t, cfg)

	body, contentType := workbookUpload(t, "big.xlsx")
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(a, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestRateLimitEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RPS = 0.001
	cfg.RateLimit.Burst = 1
	a := newTestApp(t, cfg)

	first := serve(a, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	second := serve(a, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// metrics stay reachable
	metrics := serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, metrics.Code)
}

func TestStop(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	assert.NoError(t, a.Stop(context.Background()))
}
