package services

import (
	"context"
	"fmt"
	"time"

	"hicv-scanner/calendar"
	"hicv-scanner/extract"
	"hicv-scanner/models"
	"hicv-scanner/storage"
	"hicv-scanner/utils"
)

// Session is the portal as the scanner drives it. Every method blocks until
// its stage is done; fatal stage failures are *diagnostics.StageError.
type Session interface {
	Login(ctx context.Context) error
	OpenBooking(ctx context.Context) error
	// ResetBooking returns to a fresh booking form between queries.
	ResetBooking(ctx context.Context) error
	Configure(ctx context.Context, q models.DateRangeQuery) (calendar.Selection, error)
	WaitForResults(ctx context.Context) error
	Extract(ctx context.Context) (extract.Result, error)
}

// Scanner runs queries against a session and persists what they find.
type Scanner struct {
	session    Session
	sink       storage.RecordSink
	cleaner    *RecordCleaner
	maxRetries int
	logger     *utils.Logger

	started bool
}

func NewScanner(session Session, sink storage.RecordSink, maxRetries int, logger *utils.Logger) *Scanner {
	return &Scanner{
		session:    session,
		sink:       sink,
		cleaner:    NewRecordCleaner(logger),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// start logs in and opens the booking form once per scanner, retrying the
// whole sequence with backoff.
func (s *Scanner) start(ctx context.Context) error {
	if s.started {
		return s.session.ResetBooking(ctx)
	}
	err := utils.RetryWithBackoff(ctx, s.maxRetries, func(ctx context.Context) error {
		if err := s.session.Login(ctx); err != nil {
			return err
		}
		return s.session.OpenBooking(ctx)
	}, s.logger)
	if err != nil {
		return err
	}
	s.started = true
	return nil
}

// Run performs one query.
func (s *Scanner) Run(ctx context.Context, q models.DateRangeQuery) (models.ScanSummary, error) {
	if err := s.start(ctx); err != nil {
		return models.ScanSummary{Query: q, Err: err}, err
	}
	return s.pass(ctx, q)
}

// CheckInDays lists the check-in days a monthly scan visits: every day whose
// stay fits in the month, capped at limit when limit is positive.
func CheckInDays(m time.Month, year, nights, limit int) []int {
	last := models.DaysIn(m, year) - nights + 1
	if limit > 0 && limit < last {
		last = limit
	}
	var days []int
	for d := 1; d <= last; d++ {
		days = append(days, d)
	}
	return days
}

// RunMonth scans every check-in day of a month in order. A failed pass
// aborts the run; the summaries of completed passes are returned with it.
func (s *Scanner) RunMonth(ctx context.Context, m time.Month, year, nights, limit int) ([]models.ScanSummary, error) {
	days := CheckInDays(m, year, nights, limit)
	if len(days) == 0 {
		return nil, fmt.Errorf("a %d-night stay does not fit in %s %d", nights, m, year)
	}
	s.logger.Info("Scanning %s %d: %d check-in days, %d nights", m, year, len(days), nights)

	var summaries []models.ScanSummary
	for i, day := range days {
		q := models.DateRangeQuery{Month: m, Year: year, CheckInDay: day, Nights: nights}
		s.logger.Info("Pass %d/%d: check-in %s %d", i+1, len(days), q.Caption(), day)
		sum, err := s.Run(ctx, q)
		summaries = append(summaries, sum)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

// pass configures the form, confirms the range, extracts and persists.
// Persisting failures are recorded on the summary but do not abort.
func (s *Scanner) pass(ctx context.Context, q models.DateRangeQuery) (models.ScanSummary, error) {
	sum := models.ScanSummary{Query: q}
	fail := func(err error) (models.ScanSummary, error) {
		sum.Err = err
		return sum, err
	}

	sel, err := s.session.Configure(ctx, q)
	if err != nil {
		return fail(err)
	}
	if err := s.session.WaitForResults(ctx); err != nil {
		return fail(err)
	}
	res, err := s.session.Extract(ctx)
	if err != nil {
		return fail(err)
	}

	sum.Tier = res.Tier
	sum.Records = s.cleaner.Clean(res.Records, RangeLabel(q, sel))
	if len(sum.Records) == 0 {
		s.logger.Warn("No results parsed for %s %d", q.Caption(), q.CheckInDay)
		return sum, nil
	}

	if err := s.sink.Save(sum.Records); err != nil {
		s.logger.Error("Failed to persist %d records: %v", len(sum.Records), err)
		sum.Err = fmt.Errorf("persist: %w", err)
	}
	return sum, nil
}

// RangeLabel describes the confirmed range when the results page does not.
func RangeLabel(q models.DateRangeQuery, sel calendar.Selection) string {
	caption := sel.Caption
	if caption == "" {
		caption = q.Caption()
	}
	if sel.Start.Day == 0 {
		return fmt.Sprintf("%s %d (%d nights)", caption, q.CheckInDay, q.Nights)
	}
	label := fmt.Sprintf("%s %d - %d", caption, sel.Start.Day, sel.End.Day)
	if sel.End.Block != sel.Start.Block {
		label = fmt.Sprintf("%s %d - next month %d", caption, sel.Start.Day, sel.End.Day)
	}
	if sel.Approximate {
		label += " (approx.)"
	}
	return label
}
