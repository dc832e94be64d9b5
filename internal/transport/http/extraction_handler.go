package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"disbursex/internal/dataprocessing"
	apierrors "disbursex/internal/errors"
	"disbursex/internal/files"
	"disbursex/internal/services"
	"disbursex/pkg/contracts/domain"
)

const (
	// multipartMemory is how much of an upload is buffered in memory before
	// spilling to temporary files.
	multipartMemory = 32 << 20

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	filesField  = "files"
	ledgerField = "ledger"
)

// ExtractionHandler handles workbook extraction and ledger merge requests
type ExtractionHandler struct {
	service      ExtractionServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewExtractionHandler creates a new extraction handler
func NewExtractionHandler(service ExtractionServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExtractionHandler {
	return &ExtractionHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "extraction_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the extraction routes
func (h *ExtractionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/extract", h.Extract)
	r.Post("/ledger", h.MergeLedger)
	r.Get("/totals", h.Totals)
	return r
}

// Extract handles POST /api/extract.
//
// The multipart field "files" carries the workbooks; "require_lot_no" and
// "require_exp" override the configured requirements. The response is the
// batch result as JSON, or a CSV export when format=csv is given.
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.runBatch(w, r)
	if !ok {
		return
	}

	if strings.EqualFold(r.FormValue("format"), "csv") {
		var buf bytes.Buffer
		if err := h.service.EncodeCSV(&buf, batch); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", attachment(batch.BatchID+".csv"))
		w.Header().Set("X-Batch-ID", batch.BatchID)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, batch)
}

// MergeLedger handles POST /api/ledger.
//
// Workbooks in "files" are extracted and appended to the ledger workbook
// uploaded as "ledger", or to a new one when that field is absent. The
// updated workbook is returned as an attachment.
func (h *ExtractionHandler) MergeLedger(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.runBatch(w, r)
	if !ok {
		return
	}

	name := "ledger.xlsx"
	var base io.Reader
	if fh := firstFile(r.MultipartForm, ledgerField); fh != nil {
		f, err := fh.Open()
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation(ledgerField, "ledger workbook could not be read"))
			return
		}
		defer f.Close()
		base = f
		name = filepath.Base(fh.Filename)
	}

	wb, err := h.service.OpenLedger(base)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer wb.Close()

	merge, err := h.service.MergeLedger(r.Context(), wb, batch)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "ledger workbook returned",
		slog.String("batch_id", batch.BatchID),
		slog.Int("appended", merge.Appended),
		slog.Int("bytes", buf.Len()))

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", attachment(name))
	w.Header().Set("X-Batch-ID", batch.BatchID)
	w.Header().Set("X-Rows-Appended", strconv.Itoa(merge.Appended))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Totals handles GET /api/totals
func (h *ExtractionHandler) Totals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Totals(r.Context())
	if err != nil {
		if apierrors.IsType(err, apierrors.ErrTypeNotFound) {
			err = apierrors.NotFoundError("ledger store")
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"totals": totals,
	})
}

// runBatch parses the upload and extracts it. On failure the error response
// is already written and ok is false.
func (h *ExtractionHandler) runBatch(w http.ResponseWriter, r *http.Request) (*domain.BatchResult, bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
		} else {
			h.errorHandler.HandleError(w, r, apierrors.ErrInvalidRequest)
		}
		return nil, false
	}

	uploads := r.MultipartForm.File[filesField]
	if len(uploads) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrMissingFiles)
		return nil, false
	}

	sources := make([]services.Source, 0, len(uploads))
	for _, fh := range uploads {
		if !files.IsWorkbook(fh.Filename) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation(filesField,
				fmt.Sprintf("%s is not an .xlsx workbook", fh.Filename)))
			return nil, false
		}
		sources = append(sources, uploadSource(fh))
	}

	opts, err := h.parseOptions(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}

	batch, err := h.service.ProcessBatch(r.Context(), sources, opts)
	if errors.Is(err, services.ErrNoRowsExtracted) {
		h.errorHandler.HandleError(w, r, apierrors.NoRowsExtracted(batch.Files))
		return nil, false
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return batch, true
}

func (h *ExtractionHandler) parseOptions(r *http.Request) (dataprocessing.ParseOptions, error) {
	opts := h.service.DefaultOptions()

	flags := []struct {
		field string
		dst   *bool
	}{
		{"require_lot_no", &opts.RequireLotNo},
		{"require_exp", &opts.RequireExp},
	}
	for _, f := range flags {
		v := r.FormValue(f.field)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, apierrors.ErrValidation(f.field, "must be true or false")
		}
		*f.dst = b
	}
	return opts, nil
}

func uploadSource(fh *multipart.FileHeader) services.Source {
	return services.Source{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name))
}
