package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"disbursex/internal/config"
	"disbursex/internal/dataprocessing"
	apperrors "disbursex/internal/errors"
	"disbursex/internal/infrastructure"
	"disbursex/internal/ledger"
	"disbursex/pkg/contracts/domain"
)

// Source is one workbook of a batch. Open is called once, from the worker
// that extracts the file.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// PathSource reads a workbook from disk.
func PathSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// ExtractionDeps are the optional collaborators of ExtractionService.
type ExtractionDeps struct {
	// Store receives every merged batch; nil skips persistence.
	Store   ledger.Store
	Tracer  trace.Tracer
	Metrics *infrastructure.ExtractionMetrics
	Logger  *slog.Logger
}

// ExtractionService runs batches of workbooks through the extraction engine
// and merges their rows into ledger workbooks.
type ExtractionService struct {
	cfg       config.ExtractionConfig
	ledgerCfg config.LedgerConfig
	store     ledger.Store
	tracer    trace.Tracer
	metrics   *infrastructure.ExtractionMetrics
	logger    *slog.Logger
	validate  *validator.Validate
	csv       *ledger.CSVWriter
	now       func() time.Time

	// ledgerMu serializes ledger merges
	ledgerMu sync.Mutex
}

// NewExtractionService creates the service. Missing dependencies fall back
// to the global tracer and logger.
func NewExtractionService(cfg config.ExtractionConfig, ledgerCfg config.LedgerConfig, deps ExtractionDeps) *ExtractionService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.MeterName)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultWorkers
	}
	if cfg.MaxFilesPerBatch <= 0 {
		cfg.MaxFilesPerBatch = config.DefaultMaxFilesPerBatch
	}
	if ledgerCfg.SheetName == "" {
		ledgerCfg.SheetName = ledger.DefaultEditSheet
	}

	logger = logger.With(slog.String("service", "extraction"))
	logger.Info("ExtractionService initialized",
		slog.Int("workers", cfg.Workers),
		slog.Int("max_files_per_batch", cfg.MaxFilesPerBatch),
		slog.Bool("store", deps.Store != nil))

	return &ExtractionService{
		cfg:       cfg,
		ledgerCfg: ledgerCfg,
		store:     deps.Store,
		tracer:    tracer,
		metrics:   deps.Metrics,
		logger:    logger,
		validate:  validator.New(),
		csv:       ledger.NewCSVWriter(logger),
		now:       time.Now,
	}
}

// DefaultOptions returns the configured parse options.
func (s *ExtractionService) DefaultOptions() dataprocessing.ParseOptions {
	return dataprocessing.ParseOptions{
		ScanRows:     s.cfg.ScanRows,
		MetaRows:     s.cfg.MetaRows,
		MetaCols:     s.cfg.MetaCols,
		RequireLotNo: s.cfg.RequireLotNo,
		RequireExp:   s.cfg.RequireExp,
	}
}

// MaxFilesPerBatch is the largest batch ProcessBatch accepts.
func (s *ExtractionService) MaxFilesPerBatch() int {
	return s.cfg.MaxFilesPerBatch
}

// ProcessBatch extracts every source concurrently and returns the per-file
// outcomes in input order. A failing file never stops its siblings. When the
// batch as a whole yields no rows the result is returned together with
// ErrNoRowsExtracted.
func (s *ExtractionService) ProcessBatch(ctx context.Context, sources []Source, opts dataprocessing.ParseOptions) (*domain.BatchResult, error) {
	if len(sources) == 0 {
		return nil, apperrors.NewAppValidationError(ErrNoInputFiles.Error())
	}
	if len(sources) > s.cfg.MaxFilesPerBatch {
		return nil, apperrors.NewAppValidationError(
			fmt.Sprintf("%s: %d given, at most %d allowed", ErrTooManyFiles, len(sources), s.cfg.MaxFilesPerBatch)).
			WithContext("max_files", s.cfg.MaxFilesPerBatch)
	}
	if err := s.validate.Struct(opts); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, ErrInvalidOptions.Error(), err)
	}

	batch := &domain.BatchResult{
		BatchID:   uuid.New().String(),
		StartedAt: s.now(),
		Files:     make([]domain.FileResult, len(sources)),
	}

	ctx, span := s.tracer.Start(ctx, "extraction.batch", trace.WithAttributes(
		attribute.String("batch.id", batch.BatchID),
		attribute.Int("batch.files", len(sources)),
	))
	defer span.End()

	logger := s.logger.With(slog.String("batch_id", batch.BatchID))
	logger.InfoContext(ctx, "batch started", slog.Int("files", len(sources)))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, src := range sources {
		g.Go(func() error {
			batch.Files[i] = s.processFile(ctx, src, opts, logger)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("batch %s cancelled: %w", batch.BatchID, err)
	}

	batch.CompletedAt = s.now()
	for _, f := range batch.Files {
		batch.TotalRows += f.RowCount
	}
	batch.Quantities = summarizeQuantities(batch.Rows())

	s.metrics.RecordBatch(ctx, len(sources), batch.CompletedAt.Sub(batch.StartedAt))
	span.SetAttributes(attribute.Int("batch.rows", batch.TotalRows))

	logger.InfoContext(ctx, "batch completed",
		slog.Int("files", len(sources)),
		slog.Int("rows", batch.TotalRows),
		slog.Int("problems", len(batch.Problems())),
		slog.Duration("duration", batch.CompletedAt.Sub(batch.StartedAt)))

	if batch.TotalRows == 0 {
		return batch, ErrNoRowsExtracted
	}
	return batch, nil
}

func (s *ExtractionService) processFile(ctx context.Context, src Source, opts dataprocessing.ParseOptions, logger *slog.Logger) domain.FileResult {
	start := s.now()
	res := domain.FileResult{
		FileName:  src.Name,
		FileLabel: dataprocessing.FileLabel(src.Name),
	}

	ctx, span := s.tracer.Start(ctx, "extraction.file", trace.WithAttributes(
		attribute.String("file.name", src.Name),
	))
	defer span.End()

	defer func() {
		s.metrics.RecordFile(ctx, string(res.Status), res.RowCount, rejectionCounts(res.Rejections), s.now().Sub(start))
	}()

	if err := ctx.Err(); err != nil {
		res.Status = domain.FileStatusFailed
		res.Error = err.Error()
		return res
	}

	sheet, err := s.extract(src, opts)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		res.Error = err.Error()
		if apperrors.IsType(err, apperrors.ErrTypeHeaderNotFound) {
			res.Status = domain.FileStatusNoHeader
			res.Sheet = apperrors.ContextString(err, "sheet")
			res.Reason = apperrors.ContextString(err, "reason")
		} else {
			res.Status = domain.FileStatusFailed
		}
		logger.WarnContext(ctx, "file not extracted",
			slog.String("file", src.Name),
			slog.String("status", string(res.Status)),
			slog.String("error", err.Error()))
		return res
	}

	res.Sheet = sheet.Sheet
	res.Reason = sheet.Reason
	res.Rows = sheet.Rows
	res.RowCount = len(sheet.Rows)
	res.Rejections = sheet.Rejections.NonZero()
	if res.RowCount == 0 {
		res.Status = domain.FileStatusEmpty
	} else {
		res.Status = domain.FileStatusOK
	}

	span.SetAttributes(
		attribute.String("file.sheet", res.Sheet),
		attribute.Int("file.rows", res.RowCount),
	)
	logger.InfoContext(ctx, "file extracted",
		slog.String("file", src.Name),
		slog.String("sheet", res.Sheet),
		slog.String("status", string(res.Status)),
		slog.Int("rows", res.RowCount),
		slog.Int("rejected", sheet.Rejections.Total()))
	return res
}

func (s *ExtractionService) extract(src Source, opts dataprocessing.ParseOptions) (*dataprocessing.SheetResult, error) {
	if src.Open == nil {
		return nil, apperrors.NewInputError("no reader for file", nil).WithContext("file", src.Name)
	}
	rc, err := src.Open()
	if err != nil {
		return nil, apperrors.NewInputError("failed to open file", err).WithContext("file", src.Name)
	}
	defer rc.Close()
	return dataprocessing.ParseReader(rc, src.Name, opts)
}

// LedgerMerge reports one merge into a ledger workbook.
type LedgerMerge struct {
	Appended int
	Report   *ledger.Report
}

// OpenLedger opens a ledger workbook from r, or a new one when r is nil,
// using the configured working sheet.
func (s *ExtractionService) OpenLedger(r io.Reader) (*ledger.Workbook, error) {
	wb, err := ledger.OpenWorkbook(r, s.ledgerCfg.SheetName)
	if err != nil {
		return nil, err
	}
	return wb.WithLogger(s.logger), nil
}

// MergeLedger appends the batch rows to wb, regenerates its report sheets
// and, when a store is configured, persists the rows under the batch ID.
// Merges are serialized.
func (s *ExtractionService) MergeLedger(ctx context.Context, wb *ledger.Workbook, batch *domain.BatchResult) (*LedgerMerge, error) {
	return s.mergeLedger(ctx, wb, batch, nil)
}

// mergeLedger runs commit, when set, after the workbook is updated and
// before the store write, so a failed commit leaves the store untouched.
func (s *ExtractionService) mergeLedger(ctx context.Context, wb *ledger.Workbook, batch *domain.BatchResult, commit func() error) (merge *LedgerMerge, err error) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "ledger.merge", trace.WithAttributes(
		attribute.String("batch.id", batch.BatchID),
	))
	defer span.End()
	defer func() {
		if err != nil {
			infrastructure.RecordError(ctx, err)
		}
		s.metrics.RecordLedgerMerge(ctx, err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := batch.Rows()
	appended, err := wb.Append(rows)
	if err != nil {
		return nil, err
	}
	report, err := wb.RefreshReports()
	if err != nil {
		return nil, err
	}

	if commit != nil {
		if err := commit(); err != nil {
			return nil, err
		}
	}

	if s.store != nil {
		if err := s.store.SaveRows(ctx, batch.BatchID, rows); err != nil {
			return nil, fmt.Errorf("failed to persist batch %s: %w", batch.BatchID, err)
		}
	}

	s.logger.InfoContext(ctx, "ledger merged",
		slog.String("batch_id", batch.BatchID),
		slog.Int("appended", appended),
		slog.Int("models", len(report.ByModel)),
		slog.Int("processes", len(report.ByProcess)))

	return &LedgerMerge{Appended: appended, Report: report}, nil
}

// MergeLedgerFile merges the batch into the workbook at path, creating it
// when it does not exist, and saves it in place. The store only receives the
// rows once the file is saved.
func (s *ExtractionService) MergeLedgerFile(ctx context.Context, path string, batch *domain.BatchResult) (*LedgerMerge, error) {
	wb, err := ledger.OpenWorkbookFile(path, s.ledgerCfg.SheetName)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	wb = wb.WithLogger(s.logger)
	return s.mergeLedger(ctx, wb, batch, func() error {
		return wb.SaveAs(path)
	})
}

// ExportCSV writes the batch rows to path with the ledger column titles.
func (s *ExtractionService) ExportCSV(path string, batch *domain.BatchResult) error {
	return s.csv.WriteRows(path, batch.Rows())
}

// AppendCSV adds the batch rows to the export at path, starting a new export
// with header and BOM when the file does not exist yet.
func (s *ExtractionService) AppendCSV(path string, batch *domain.BatchResult) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s.ExportCSV(path, batch)
	}
	return s.csv.AppendRows(path, batch.Rows())
}

// EncodeCSV writes the batch rows as a CSV export to w.
func (s *ExtractionService) EncodeCSV(w io.Writer, batch *domain.BatchResult) error {
	return s.csv.Encode(w, batch.Rows())
}

// Totals returns the per-model quantity totals persisted in the store.
func (s *ExtractionService) Totals(ctx context.Context) ([]ledger.ModelTotal, error) {
	if s.store == nil {
		return nil, apperrors.NewNotFoundError("ledger store")
	}
	return s.store.TotalsByModel(ctx)
}

// summarizeQuantities describes the row totals of a batch; an empty batch
// yields zeros.
func summarizeQuantities(rows []domain.ExtractedRow) domain.QuantitySummary {
	if len(rows) == 0 {
		return domain.QuantitySummary{}
	}
	data := make(stats.Float64Data, len(rows))
	for i, r := range rows {
		data[i] = float64(r.QuantityTotal)
	}

	var q domain.QuantitySummary
	q.Total, _ = stats.Sum(data)
	q.Mean, _ = stats.Mean(data)
	q.Median, _ = stats.Median(data)
	q.Min, _ = stats.Min(data)
	q.Max, _ = stats.Max(data)
	return q
}

func rejectionCounts(s domain.RejectionStats) map[string]int {
	out := make(map[string]int, len(s))
	for reason, n := range s {
		out[string(reason)] = n
	}
	return out
}
