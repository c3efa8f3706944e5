package services

import (
	"regexp"
	"strings"

	"hicv-scanner/models"
	"hicv-scanner/utils"
)

var (
	spaceRegex       = regexp.MustCompile(`\s+`)
	resortLabelRegex = regexp.MustCompile(`(?i)^resort\s*:\s*`)
	roomLabelRegex   = regexp.MustCompile(`(?i)^(room|villa type)\s*:\s*`)
)

// RecordCleaner normalizes extracted records and drops the ones a run has
// already persisted. One cleaner lives for a whole run, so passes that land on
// the same range (approximate calendar picks) do not write duplicates.
type RecordCleaner struct {
	seen   *utils.KeySet
	logger *utils.Logger
}

func NewRecordCleaner(logger *utils.Logger) *RecordCleaner {
	return &RecordCleaner{seen: utils.NewKeySet(), logger: logger}
}

// Clean normalizes whitespace and field labels, fills an empty date range
// with fallback and removes records without data or seen earlier in the run.
func (c *RecordCleaner) Clean(records []models.AvailabilityRecord, fallback string) []models.AvailabilityRecord {
	out := make([]models.AvailabilityRecord, 0, len(records))
	for _, r := range records {
		r.DateRange = cleanText(r.DateRange)
		if r.DateRange == "" {
			r.DateRange = fallback
		}
		r.Resort = resortLabelRegex.ReplaceAllString(cleanText(r.Resort), "")
		r.Room = roomLabelRegex.ReplaceAllString(cleanText(r.Room), "")
		if r.Points < 0 {
			r.Points = 0
		}

		if !r.IsCandidate() {
			c.logger.Debug("Skipping empty record")
			continue
		}
		if !c.seen.Add(r.DateRange, r.Resort, r.Room, r.PointsText()) {
			c.logger.Debug("Skipping duplicate: %s / %s", r.Resort, r.Room)
			continue
		}
		out = append(out, r)
	}

	if dropped := len(records) - len(out); dropped > 0 {
		c.logger.Info("Cleaned %d records (%d dropped)", len(out), dropped)
	}
	return out
}

func cleanText(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}
