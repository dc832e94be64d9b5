package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"disbursex/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter exports extracted rows with the ledger column titles.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // UTF-8 BOM so Excel detects the encoding
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	w.logger.Info("writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(filePath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return writeRecords(file, options)
}

// WriteRows writes rows to filePath, replacing any existing file.
func (w *CSVWriter) WriteRows(filePath string, rows []domain.ExtractedRow) error {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   domain.LedgerHeaders,
		Records:   rowRecords(rows),
		BOMPrefix: true,
	})
}

// AppendRows appends rows to an existing export without a header.
func (w *CSVWriter) AppendRows(filePath string, rows []domain.ExtractedRow) error {
	return w.WriteCSV(filePath, WriteOptions{
		Records: rowRecords(rows),
		Append:  true,
	})
}

// Encode writes a complete export to out.
func (w *CSVWriter) Encode(out io.Writer, rows []domain.ExtractedRow) error {
	return writeRecords(out, WriteOptions{
		Headers:   domain.LedgerHeaders,
		Records:   rowRecords(rows),
		BOMPrefix: true,
	})
}

func writeRecords(out io.Writer, options WriteOptions) error {
	if options.BOMPrefix && !options.Append {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)

	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func rowRecords(rows []domain.ExtractedRow) [][]string {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.Strings()
	}
	return records
}
