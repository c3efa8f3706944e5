package storage

import "hicv-scanner/models"

// RecordSink persists availability records. Sinks append: records from
// earlier runs are kept.
type RecordSink interface {
	Save(records []models.AvailabilityRecord) error
	Close() error
}
