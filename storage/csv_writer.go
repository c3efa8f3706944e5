package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"hicv-scanner/models"
	"hicv-scanner/utils"
)

// CSVWriter appends records to a CSV file, writing the header only when the
// file is new.
type CSVWriter struct {
	filePath string
	logger   *utils.Logger
}

// NewCSVWriter creates a new CSVWriter
func NewCSVWriter(filePath string, logger *utils.Logger) *CSVWriter {
	return &CSVWriter{filePath: filePath, logger: logger}
}

// Save appends records to the file.
func (w *CSVWriter) Save(records []models.AvailabilityRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	_, statErr := os.Stat(w.filePath)
	newFile := errors.Is(statErr, fs.ErrNotExist)

	file, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if newFile {
		if err := writer.Write(models.RecordHeader); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	for _, r := range records {
		if err := writer.Write(r.Row()); err != nil {
			return fmt.Errorf("failed to write CSV row for %q: %w", r.Resort, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	w.logger.Info("Appended %d rows to %s", len(records), w.filePath)
	return nil
}

func (w *CSVWriter) Close() error { return nil }
