package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"disbursex/internal/config"
	"disbursex/internal/files"
	"disbursex/internal/infrastructure"
	"disbursex/internal/ledger"
	"disbursex/internal/services"
	"disbursex/internal/validation"
	"disbursex/pkg/contracts/domain"
)

// Exit codes
const (
	exitOK      = 0
	exitNoRows  = 1
	exitFailure = 2
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitFailure)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(exitFailure)
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, cfg, os.Args[1:], os.Stdout, logger)
	if code != exitOK {
		stop()
		infrastructure.CloseLogFile()
		os.Exit(code)
	}
}

// run extracts the given workbooks, prints a per-file summary to stdout and
// writes the ledger and CSV outputs when requested.
func run(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer, logger *slog.Logger) int {
	fs := flag.NewFlagSet("extractor", flag.ContinueOnError)
	fs.SetOutput(stdout)
	inDir := fs.String("in", "", "directory of .xlsx workbooks to extract")
	ledgerPath := fs.String("ledger", cfg.Ledger.Path, "ledger workbook to merge into (created when missing)")
	csvPath := fs.String("csv", cfg.Ledger.CSVPath, "CSV export path")
	csvAppend := fs.Bool("csv-append", false, "append to an existing CSV export instead of replacing it")
	requireLot := fs.Bool("require-lot", cfg.Extraction.RequireLotNo, "reject rows without a lot number when one exists in the block")
	requireExp := fs.Bool("require-exp", cfg.Extraction.RequireExp, "require an expiry date on every row")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: extractor [-in DIR] [flags] [file.xlsx ...]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	logger = infrastructure.WithComponent(logger, "extractor")

	validator := validation.NewFileValidator(logger)
	if err := validateLocations(validator, *inDir, *ledgerPath, *csvPath); err != nil {
		logger.ErrorContext(ctx, "Invalid file location", slog.String("error", err.Error()))
		return exitFailure
	}

	inputs, err := collectInputs(*inDir, fs.Args())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to collect input workbooks", slog.String("error", err.Error()))
		return exitFailure
	}
	if len(inputs) == 0 {
		logger.ErrorContext(ctx, "No input workbooks given; use -in DIR or list files")
		return exitFailure
	}

	extractionCfg := cfg.Extraction
	// the batch cap guards the HTTP surface; a local run takes everything
	if len(inputs) > extractionCfg.MaxFilesPerBatch {
		extractionCfg.MaxFilesPerBatch = len(inputs)
	}

	var store ledger.Store
	if cfg.Database.URL != "" {
		pg, err := ledger.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to open ledger store", slog.String("error", err.Error()))
			return exitFailure
		}
		defer pg.Close()
		store = pg
	}

	svc := services.NewExtractionService(extractionCfg, cfg.Ledger, services.ExtractionDeps{
		Store:  store,
		Logger: logger,
	})

	opts := svc.DefaultOptions()
	opts.RequireLotNo = *requireLot
	opts.RequireExp = *requireExp

	sources := make([]services.Source, len(inputs))
	for i, f := range inputs {
		sources[i] = services.PathSource(f.Path)
	}

	batch, err := svc.ProcessBatch(ctx, sources, opts)
	if batch != nil {
		printSummary(stdout, batch)
	}
	if errors.Is(err, services.ErrNoRowsExtracted) {
		logger.ErrorContext(ctx, "No rows extracted from any workbook",
			slog.Int("files", len(inputs)))
		return exitNoRows
	}
	if err != nil {
		logger.ErrorContext(ctx, "Extraction failed", slog.String("error", err.Error()))
		return exitFailure
	}

	if *ledgerPath != "" {
		merge, err := svc.MergeLedgerFile(ctx, *ledgerPath, batch)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to update ledger",
				slog.String("path", *ledgerPath),
				slog.String("error", err.Error()))
			return exitFailure
		}
		fmt.Fprintf(stdout, "ledger: %s (+%d rows)\n", *ledgerPath, merge.Appended)
	}

	if *csvPath != "" {
		export := svc.ExportCSV
		if *csvAppend {
			export = svc.AppendCSV
		}
		if err := export(*csvPath, batch); err != nil {
			logger.ErrorContext(ctx, "Failed to export CSV",
				slog.String("path", *csvPath),
				slog.String("error", err.Error()))
			return exitFailure
		}
		fmt.Fprintf(stdout, "csv: %s\n", *csvPath)
	}

	return exitOK
}

// validateLocations checks the input directory and both outputs; empty
// paths are skipped.
func validateLocations(v *validation.FileValidator, inDir, ledgerPath, csvPath string) error {
	if inDir != "" {
		if err := v.ValidateInputDirectory(inDir); err != nil {
			return err
		}
	}
	if ledgerPath != "" {
		if err := v.ValidateOutputPath(ledgerPath); err != nil {
			return err
		}
		if err := v.ValidateExistingWorkbook(ledgerPath); err != nil {
			return err
		}
	}
	if csvPath != "" {
		if err := v.ValidateOutputPath(csvPath); err != nil {
			return err
		}
	}
	return nil
}

// collectInputs lists the workbooks in dir followed by the explicit paths.
func collectInputs(dir string, paths []string) ([]files.FileInfo, error) {
	discovery := files.NewDiscovery("")

	var inputs []files.FileInfo
	if dir != "" {
		found, err := discovery.FindWorkbooks(dir)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, found...)
	}
	if len(paths) > 0 {
		listed, err := discovery.Resolve(paths)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, listed...)
	}
	return inputs, nil
}

func printSummary(w io.Writer, batch *domain.BatchResult) {
	for _, f := range batch.Files {
		fmt.Fprintf(w, "%-8s %s", f.Status, f.FileName)
		if f.Sheet != "" {
			fmt.Fprintf(w, " [%s: %s]", f.Sheet, f.Reason)
		}
		fmt.Fprintf(w, " rows=%d", f.RowCount)
		if len(f.Rejections) > 0 {
			fmt.Fprintf(w, " rejected=%s", formatRejections(f.Rejections))
		}
		if f.Error != "" {
			fmt.Fprintf(w, " error=%q", f.Error)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "total rows: %d, quantity: %.0f\n", batch.TotalRows, batch.Quantities.Total)
}

func formatRejections(r domain.RejectionStats) string {
	var parts []string
	for _, reason := range domain.RejectionReasons {
		if n := r[reason]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", reason, n))
		}
	}
	return strings.Join(parts, ",")
}
