package services

import (
	"hicv-scanner/models"
	"hicv-scanner/utils"
)

// InsightService computes analytics over the records of a run
type InsightService struct {
	logger *utils.Logger
}

// NewInsightService creates a new InsightService
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes the run summary. Records without a points figure count
// toward totals but not toward the points statistics.
func (s *InsightService) Generate(records []models.AvailabilityRecord) *models.InsightReport {
	report := &models.InsightReport{
		RecordsByResort: make(map[string]int),
		MinPointsByRoom: make(map[string]int),
	}

	if len(records) == 0 {
		s.logger.Warn("No records to generate insights from")
		return report
	}

	ranges := make(map[string]struct{})
	var total, priced int
	for i := range records {
		r := records[i]
		report.TotalRecords++
		if r.DateRange != "" {
			ranges[r.DateRange] = struct{}{}
		}
		if r.Resort != "" {
			report.RecordsByResort[r.Resort]++
		}

		if r.Points <= 0 {
			continue
		}
		priced++
		total += r.Points
		if report.MinPoints == 0 || r.Points < report.MinPoints {
			report.MinPoints = r.Points
			report.Cheapest = &records[i]
		}
		if r.Points > report.MaxPoints {
			report.MaxPoints = r.Points
		}
		if r.Room != "" {
			if min, ok := report.MinPointsByRoom[r.Room]; !ok || r.Points < min {
				report.MinPointsByRoom[r.Room] = r.Points
			}
		}
	}

	report.DateRanges = len(ranges)
	if priced > 0 {
		report.AveragePoints = float64(total) / float64(priced)
	}
	return report
}
