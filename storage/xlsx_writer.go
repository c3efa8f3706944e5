package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"hicv-scanner/models"
	"hicv-scanner/utils"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Availability"

// XLSXWriter appends records to the first sheet of a workbook, creating the
// workbook with a header row when it does not exist.
type XLSXWriter struct {
	filePath string
	logger   *utils.Logger
}

func NewXLSXWriter(filePath string, logger *utils.Logger) *XLSXWriter {
	return &XLSXWriter{filePath: filePath, logger: logger}
}

func (w *XLSXWriter) Save(records []models.AvailabilityRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, sheet, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	next := len(rows) + 1
	for _, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return err
		}
		row := []interface{}{r.DateRange, r.Resort, r.Room, nil}
		if r.Points > 0 {
			row[3] = r.Points
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", next, err)
		}
		next++
	}

	if err := f.SaveAs(w.filePath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	w.logger.Info("Appended %d rows to %s", len(records), w.filePath)
	return nil
}

// open loads the workbook or creates it with a header row.
func (w *XLSXWriter) open() (*excelize.File, string, error) {
	if _, err := os.Stat(w.filePath); err == nil {
		f, err := excelize.OpenFile(w.filePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open workbook: %w", err)
		}
		return f, f.GetSheetName(0), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("failed to stat workbook: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		f.Close()
		return nil, "", err
	}
	header := make([]interface{}, len(models.RecordHeader))
	for i, h := range models.RecordHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("failed to write header: %w", err)
	}
	return f, sheetName, nil
}

func (w *XLSXWriter) Close() error { return nil }
