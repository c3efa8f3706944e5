package models

import (
	"fmt"
	"strconv"
	"time"
)

// AvailabilityRecord is one bookable stay found on the results page.
// Points is denominated in the club's loyalty unit; zero means the card
// showed no parsable points figure.
type AvailabilityRecord struct {
	DateRange string `db:"date_range"`
	Resort    string `db:"resort"`
	Room      string `db:"room"`
	Points    int    `db:"points"`
}

// IsCandidate reports whether the record carries any usable field.
func (r AvailabilityRecord) IsCandidate() bool {
	return r.Resort != "" || r.Room != "" || r.Points > 0
}

// PointsText renders Points for tabular sinks, leaving unknown values blank.
func (r AvailabilityRecord) PointsText() string {
	if r.Points <= 0 {
		return ""
	}
	return strconv.Itoa(r.Points)
}

// Row returns the record in sink column order: Date Range, Resort, Room, Points.
func (r AvailabilityRecord) Row() []string {
	return []string{r.DateRange, r.Resort, r.Room, r.PointsText()}
}

// RecordHeader is the fixed column order of every tabular sink.
var RecordHeader = []string{"Date Range", "Resort", "Room", "Points"}

// DateRangeQuery describes the stay the calendar should select.
type DateRangeQuery struct {
	Month      time.Month
	Year       int
	CheckInDay int
	Nights     int
}

// Caption is the "Month Year" text the calendar shows above the target month.
func (q DateRangeQuery) Caption() string {
	return fmt.Sprintf("%s %d", q.Month, q.Year)
}

// DaysInMonth returns the length of the target month.
func (q DateRangeQuery) DaysInMonth() int {
	return DaysIn(q.Month, q.Year)
}

// DaysIn returns the number of days in month m of year y.
func DaysIn(m time.Month, y int) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SelectableOption is one checkbox row of a listbox panel.
type SelectableOption struct {
	ID       string
	Label    string
	Group    string
	Selected bool
	Desired  bool
}

// CalendarCell is one day button inside a month block.
type CalendarCell struct {
	Day     int
	Enabled bool
	Block   int
}

// MonthBlock is one of the (at most two) month grids visible in the overlay.
type MonthBlock struct {
	Index   int
	Caption string
	Cells   []CalendarCell
}

// Cell returns the cell for day, if the block renders it.
func (b MonthBlock) Cell(day int) (CalendarCell, bool) {
	for _, c := range b.Cells {
		if c.Day == day {
			return c, true
		}
	}
	return CalendarCell{}, false
}

// EnabledCells returns the selectable cells in display order.
func (b MonthBlock) EnabledCells() []CalendarCell {
	var out []CalendarCell
	for _, c := range b.Cells {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// DaysInMonth derives the month length from the caption, falling back to the
// highest day number rendered in the block.
func (b MonthBlock) DaysInMonth() int {
	if t, err := time.Parse("January 2006", b.Caption); err == nil {
		return DaysIn(t.Month(), t.Year())
	}
	max := 0
	for _, c := range b.Cells {
		if c.Day > max {
			max = c.Day
		}
	}
	return max
}

// ScanSummary is the outcome of one configured query.
type ScanSummary struct {
	Query   DateRangeQuery
	Records []AvailabilityRecord
	Tier    string
	Err     error
}

// InsightReport holds computed analytics over all records of a run
type InsightReport struct {
	TotalRecords    int
	DateRanges      int
	AveragePoints   float64
	MinPoints       int
	MaxPoints       int
	Cheapest        *AvailabilityRecord
	RecordsByResort map[string]int
	MinPointsByRoom map[string]int
}
