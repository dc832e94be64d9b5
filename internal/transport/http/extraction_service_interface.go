package http

import (
	"context"
	"io"

	"disbursex/internal/dataprocessing"
	"disbursex/internal/ledger"
	"disbursex/internal/services"
	"disbursex/pkg/contracts/domain"
)

// ExtractionServiceInterface defines the extraction operations the handlers
// need
type ExtractionServiceInterface interface {
	DefaultOptions() dataprocessing.ParseOptions
	ProcessBatch(ctx context.Context, sources []services.Source, opts dataprocessing.ParseOptions) (*domain.BatchResult, error)
	OpenLedger(r io.Reader) (*ledger.Workbook, error)
	MergeLedger(ctx context.Context, wb *ledger.Workbook, batch *domain.BatchResult) (*services.LedgerMerge, error)
	EncodeCSV(w io.Writer, batch *domain.BatchResult) error
	Totals(ctx context.Context) ([]ledger.ModelTotal, error)
}
