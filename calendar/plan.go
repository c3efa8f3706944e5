package calendar

import (
	"errors"
	"fmt"

	"hicv-scanner/models"
)

// ErrNoRange means the visible months do not hold two selectable days.
var ErrNoRange = errors.New("fewer than two enabled days in the visible months")

// Plan is the pair of cells to click. Approximate plans do not match the
// requested dates exactly; Reason says how they deviate.
type Plan struct {
	Start       models.CalendarCell
	End         models.CalendarCell
	Approximate bool
	Reason      string
}

// EndDay is the day number the range should end on, counted in the check-in
// month. It exceeds the month length when the stay crosses into the next month.
func EndDay(checkIn, nights int) int {
	span := nights - 1
	if span < 1 {
		span = 1
	}
	return checkIn + span
}

// PlanRange picks start and end cells for a stay beginning on checkIn in
// blocks[target]. The fallbacks, in order: the check-in day in another block,
// then simply the first two enabled cells across all blocks.
func PlanRange(blocks []models.MonthBlock, target, checkIn, nights int) (Plan, error) {
	if target >= 0 && target < len(blocks) {
		if p, ok := planFrom(blocks, target, checkIn, nights); ok {
			return p, nil
		}
	}
	for i := range blocks {
		if i == target {
			continue
		}
		if p, ok := planFrom(blocks, i, checkIn, nights); ok {
			p.Approximate = true
			p.Reason = joinReason(fmt.Sprintf("day %d not selectable in target month, started in %s", checkIn, blocks[i].Caption), p.Reason)
			return p, nil
		}
	}

	var enabled []models.CalendarCell
	for _, b := range blocks {
		enabled = append(enabled, b.EnabledCells()...)
	}
	if len(enabled) < 2 {
		return Plan{}, ErrNoRange
	}
	return Plan{
		Start:       enabled[0],
		End:         enabled[1],
		Approximate: true,
		Reason:      "no range around the requested day, using the first two enabled days",
	}, nil
}

func planFrom(blocks []models.MonthBlock, b, checkIn, nights int) (Plan, bool) {
	block := blocks[b]
	start, ok := enabledCell(block, checkIn)
	if !ok {
		return Plan{}, false
	}
	end := EndDay(checkIn, nights)
	dim := block.DaysInMonth()
	next := b + 1
	hasNext := next < len(blocks)

	if dim > 0 && end > dim {
		if hasNext {
			wrapped := end - dim
			if c, ok := enabledCell(blocks[next], wrapped); ok {
				return Plan{Start: start, End: c}, true
			}
			if cells := blocks[next].EnabledCells(); len(cells) > 0 {
				return Plan{Start: start, End: cells[0], Approximate: true,
					Reason: fmt.Sprintf("day %d of %s not selectable, ending on day %d", wrapped, blocks[next].Caption, cells[0].Day)}, true
			}
		}
		if c, ok := firstEnabledAfter(block, checkIn); ok {
			return Plan{Start: start, End: c, Approximate: true,
				Reason: fmt.Sprintf("next month not available, ending on day %d of %s", c.Day, block.Caption)}, true
		}
		return Plan{}, false
	}

	if c, ok := enabledCell(block, end); ok {
		return Plan{Start: start, End: c}, true
	}
	if c, ok := firstEnabledAfter(block, checkIn); ok {
		return Plan{Start: start, End: c, Approximate: true,
			Reason: fmt.Sprintf("day %d not selectable, ending on day %d", end, c.Day)}, true
	}
	if hasNext {
		if c, ok := enabledCell(blocks[next], end); ok {
			return Plan{Start: start, End: c, Approximate: true,
				Reason: fmt.Sprintf("no later day in %s, ending on day %d of %s", block.Caption, end, blocks[next].Caption)}, true
		}
		if cells := blocks[next].EnabledCells(); len(cells) > 0 {
			return Plan{Start: start, End: cells[0], Approximate: true,
				Reason: fmt.Sprintf("no later day in %s, ending on day %d of %s", block.Caption, cells[0].Day, blocks[next].Caption)}, true
		}
	}
	return Plan{}, false
}

func enabledCell(b models.MonthBlock, day int) (models.CalendarCell, bool) {
	c, ok := b.Cell(day)
	if !ok || !c.Enabled {
		return models.CalendarCell{}, false
	}
	return c, true
}

func firstEnabledAfter(b models.MonthBlock, day int) (models.CalendarCell, bool) {
	for _, c := range b.EnabledCells() {
		if c.Day > day {
			return c, true
		}
	}
	return models.CalendarCell{}, false
}

func joinReason(a, b string) string {
	if b == "" {
		return a
	}
	return a + "; " + b
}
