package validation

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "disbursex/internal/errors"
)

// zipSignature opens every .xlsx package.
var zipSignature = []byte("PK\x03\x04")

// FileValidator checks the filesystem locations a local run reads from and
// writes to before any work starts.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateInputDirectory requires dir to be an existing directory.
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Input directory does not exist", slog.String("directory", dir))
		return apperrors.NewInputError(fmt.Sprintf("input directory %s does not exist", dir), err)
	}
	if err != nil {
		return apperrors.NewInputError(fmt.Sprintf("failed to stat directory %s", dir), err)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory", slog.String("path", dir))
		return apperrors.NewInputError(fmt.Sprintf("%s is not a directory", dir), nil)
	}
	return nil
}

// ValidateOutputPath makes sure the directory of path exists and accepts
// new files.
func (v *FileValidator) ValidateOutputPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	tmp.Close()
	os.Remove(tmp.Name())

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return apperrors.NewStorageError(fmt.Sprintf("%s is a directory", path), nil)
	}

	v.logger.Debug("Output path validated", slog.String("path", path))
	return nil
}

// ValidateExistingWorkbook accepts a missing path or a regular file that
// starts with the zip signature of an .xlsx package.
func (v *FileValidator) ValidateExistingWorkbook(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperrors.NewInputError(fmt.Sprintf("failed to stat %s", path), err)
	}
	if !info.Mode().IsRegular() {
		return apperrors.NewInputError(fmt.Sprintf("%s is not a regular file", path), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewInputError(fmt.Sprintf("file %s is not readable", path), err)
	}
	defer f.Close()

	head := make([]byte, len(zipSignature))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, zipSignature) {
		v.logger.Error("File is not an xlsx workbook",
			slog.String("file", path),
			slog.Int64("size", info.Size()))
		return apperrors.NewInputError(fmt.Sprintf("%s is not an .xlsx workbook", path), err)
	}
	return nil
}
