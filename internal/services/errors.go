package services

import "errors"

// Extraction service errors
var (
	// ErrNoRowsExtracted is returned with the batch result when no file of
	// the batch produced a single row.
	ErrNoRowsExtracted = errors.New("no rows extracted")

	ErrNoInputFiles   = errors.New("no input files")
	ErrTooManyFiles   = errors.New("too many files in batch")
	ErrInvalidOptions = errors.New("invalid extraction options")
)
