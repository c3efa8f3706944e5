package storage

import (
	"errors"

	"hicv-scanner/models"
)

// MultiSink fans records out to every sink. A failing sink does not stop the
// others; all errors are returned together.
type MultiSink []RecordSink

func (m MultiSink) Save(records []models.AvailabilityRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
