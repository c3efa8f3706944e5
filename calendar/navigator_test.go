package calendar

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hicv-scanner/diagnostics"
	"hicv-scanner/interact"
	"hicv-scanner/models"
	"hicv-scanner/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonth struct {
	caption string
	days    int
	enabled func(day int) bool
}

func month(m time.Month, y int) fakeMonth {
	return fakeMonth{caption: fmt.Sprintf("%s %d", m, y), days: models.DaysIn(m, y)}
}

type fakeTarget struct {
	name  string
	apply func() error
}

func (t fakeTarget) Describe() string { return t.name }

func (t fakeTarget) Apply(ctx context.Context, tech interact.Technique) error { return t.apply() }

type fakeButton struct {
	fakeTarget
	present      bool
	enabledAfter int
	polls        int
	clicks       int
}

func (b *fakeButton) Apply(ctx context.Context, tech interact.Technique) error {
	b.clicks++
	if b.apply != nil {
		return b.apply()
	}
	return nil
}

func (b *fakeButton) Present(ctx context.Context) (bool, error) { return b.present, nil }

func (b *fakeButton) Enabled(ctx context.Context) (bool, error) {
	b.polls++
	return b.enabledAfter >= 0 && b.polls > b.enabledAfter, nil
}

type fakeOverlay struct {
	months  []fakeMonth
	offset  int
	visible bool
	clicked []string
	done    *fakeButton
	confirm *fakeButton
}

func newFakeOverlay(months ...fakeMonth) *fakeOverlay {
	o := &fakeOverlay{months: months}
	o.done = &fakeButton{fakeTarget: fakeTarget{name: "done"}, present: true}
	o.confirm = &fakeButton{fakeTarget: fakeTarget{name: "confirm"}, present: true, enabledAfter: 2}
	o.confirm.apply = func() error { o.visible = false; return nil }
	return o
}

func (o *fakeOverlay) Visible(ctx context.Context) (bool, error) { return o.visible, nil }

func (o *fakeOverlay) Openers() []interact.Target {
	return []interact.Target{
		fakeTarget{name: "#date-picker", apply: func() error { return errors.New("not found") }},
		fakeTarget{name: "button[data-uitest='date-picker']", apply: func() error { o.visible = true; return nil }},
	}
}

func (o *fakeOverlay) Blocks(ctx context.Context) ([]models.MonthBlock, error) {
	var out []models.MonthBlock
	for i := 0; i < 2 && o.offset+i < len(o.months); i++ {
		m := o.months[o.offset+i]
		b := models.MonthBlock{Index: i, Caption: m.caption}
		for d := 1; d <= m.days; d++ {
			b.Cells = append(b.Cells, models.CalendarCell{Day: d, Block: i, Enabled: m.enabled == nil || m.enabled(d)})
		}
		out = append(out, b)
	}
	return out, nil
}

func (o *fakeOverlay) Next() interact.Target {
	return fakeTarget{name: "next", apply: func() error { o.offset++; return nil }}
}

func (o *fakeOverlay) NextDisabled(ctx context.Context) (bool, error) {
	return o.offset+2 >= len(o.months), nil
}

func (o *fakeOverlay) Day(block, day int) interact.Target {
	caption := o.months[o.offset+block].caption
	return fakeTarget{name: caption, apply: func() error {
		o.clicked = append(o.clicked, fmt.Sprintf("%s/%d", caption, day))
		return nil
	}}
}

func (o *fakeOverlay) Done() interact.Button       { return o.done }
func (o *fakeOverlay) Confirms() []interact.Button { return []interact.Button{o.confirm} }
func (o *fakeOverlay) Markup(ctx context.Context) (string, error) {
	return "<div class=\"rdp\"></div>", nil
}

func testNavigator(o Overlay) *Navigator {
	poll := utils.PollOptions{Attempts: 5}
	opts := Options{OpenWait: poll, Ready: poll, StepReady: poll, MaxSteps: 12, DoneWait: poll, ConfirmWait: poll, HideWait: poll}
	logger := utils.NewDiscardLogger()
	return NewNavigator(o, interact.New(interact.DefaultOptions(), logger), diagnostics.Nop{}, opts, logger)
}

func query(m time.Month, y, day, nights int) models.DateRangeQuery {
	return models.DateRangeQuery{Month: m, Year: y, CheckInDay: day, Nights: nights}
}

func TestSelectWrapsEndDayIntoNextBlock(t *testing.T) {
	o := newFakeOverlay(month(time.January, 2026), month(time.February, 2026), month(time.March, 2026))

	sel, err := testNavigator(o).Select(context.Background(), query(time.January, 2026, 28, 7))

	require.NoError(t, err)
	assert.Equal(t, []string{"January 2026/28", "February 2026/3"}, o.clicked)
	assert.False(t, sel.Approximate)
	assert.Equal(t, "January 2026", sel.Caption)
	assert.Equal(t, []State{Closed, Opening, Rendered, Searching, SelectingStart, SelectingEnd,
		AwaitingInnerConfirm, AwaitingOuterConfirm, Confirmed}, sel.Trace)
	assert.Equal(t, 1, o.done.clicks)
	assert.Equal(t, 1, o.confirm.clicks)
	assert.False(t, o.visible)
}

func TestSelectPaginatesToTargetMonth(t *testing.T) {
	o := newFakeOverlay(month(time.October, 2025), month(time.November, 2025), month(time.December, 2025),
		month(time.January, 2026), month(time.February, 2026))
	o.visible = true

	sel, err := testNavigator(o).Select(context.Background(), query(time.February, 2026, 10, 4))

	require.NoError(t, err)
	assert.Equal(t, "February 2026", sel.Caption)
	assert.Equal(t, []string{"February 2026/10", "February 2026/13"}, o.clicked)
}

func TestSelectFallsBackToFirstBlockWhenMonthNeverAppears(t *testing.T) {
	o := newFakeOverlay(month(time.October, 2025), month(time.November, 2025), month(time.December, 2025))
	o.visible = true

	sel, err := testNavigator(o).Select(context.Background(), query(time.June, 2027, 5, 3))

	require.NoError(t, err)
	assert.Equal(t, "November 2025", sel.Caption)
	assert.Equal(t, 1, o.offset)
	assert.False(t, sel.Approximate)
}

func TestSelectApproximatesWithFirstTwoEnabledDays(t *testing.T) {
	sparse := month(time.March, 2026)
	sparse.enabled = func(d int) bool { return d == 5 || d == 9 }
	closed := month(time.April, 2026)
	closed.enabled = func(int) bool { return false }
	o := newFakeOverlay(sparse, closed)

	sel, err := testNavigator(o).Select(context.Background(), query(time.March, 2026, 20, 7))

	require.NoError(t, err)
	assert.True(t, sel.Approximate)
	assert.NotEmpty(t, sel.Reason)
	assert.Equal(t, []string{"March 2026/5", "March 2026/9"}, o.clicked)
}

func TestSelectAbortsWithoutTwoEnabledDays(t *testing.T) {
	lonely := month(time.March, 2026)
	lonely.enabled = func(d int) bool { return d == 12 }
	o := newFakeOverlay(lonely)

	sel, err := testNavigator(o).Select(context.Background(), query(time.March, 2026, 12, 3))

	var stage *diagnostics.StageError
	require.True(t, errors.As(err, &stage))
	assert.ErrorIs(t, err, ErrNoRange)
	assert.Equal(t, "date_day_not_found", stage.Artifact)
	assert.Equal(t, Aborted, sel.Trace[len(sel.Trace)-1])
	assert.Empty(t, o.clicked)
}

func TestSelectAbortsWhenOverlayNeverRenders(t *testing.T) {
	blank := month(time.March, 2026)
	blank.enabled = func(int) bool { return false }
	o := newFakeOverlay(blank)

	_, err := testNavigator(o).Select(context.Background(), query(time.March, 2026, 1, 3))

	var stage *diagnostics.StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, "calendar_dump_before_ready", stage.Artifact)
}

func TestSelectAbortsWhenConfirmNeverEnables(t *testing.T) {
	o := newFakeOverlay(month(time.March, 2026), month(time.April, 2026))
	o.confirm.enabledAfter = -1

	sel, err := testNavigator(o).Select(context.Background(), query(time.March, 2026, 3, 3))

	var stage *diagnostics.StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, "confirm_disabled", stage.Artifact)
	assert.Equal(t, "calendar confirm: confirm control never enabled (see confirm_disabled)", err.Error())
	assert.Equal(t, []State{Closed, Opening, Rendered, Searching, SelectingStart, SelectingEnd,
		AwaitingInnerConfirm, AwaitingOuterConfirm, Aborted}, sel.Trace)
}

func TestSelectSkipsAbsentDoneButton(t *testing.T) {
	o := newFakeOverlay(month(time.March, 2026), month(time.April, 2026))
	o.done.present = false

	_, err := testNavigator(o).Select(context.Background(), query(time.March, 2026, 3, 3))

	require.NoError(t, err)
	assert.Zero(t, o.done.clicks)
}

func TestEndDay(t *testing.T) {
	assert.Equal(t, 34, EndDay(28, 7))
	assert.Equal(t, 11, EndDay(10, 1))
	assert.Equal(t, 11, EndDay(10, 2))
}

func block(idx int, caption string, days int, enabled func(int) bool) models.MonthBlock {
	b := models.MonthBlock{Index: idx, Caption: caption}
	for d := 1; d <= days; d++ {
		b.Cells = append(b.Cells, models.CalendarCell{Day: d, Block: idx, Enabled: enabled == nil || enabled(d)})
	}
	return b
}

func TestPlanRange(t *testing.T) {
	all := func(int) bool { return true }
	tests := []struct {
		name      string
		blocks    []models.MonthBlock
		target    int
		checkIn   int
		nights    int
		wantStart models.CalendarCell
		wantEnd   models.CalendarCell
		approx    bool
	}{
		{
			name:      "same block",
			blocks:    []models.MonthBlock{block(0, "May 2026", 31, all), block(1, "June 2026", 30, all)},
			checkIn:   4,
			nights:    5,
			wantStart: models.CalendarCell{Day: 4, Enabled: true},
			wantEnd:   models.CalendarCell{Day: 8, Enabled: true},
		},
		{
			name:      "wraps into next block",
			blocks:    []models.MonthBlock{block(0, "January 2026", 31, all), block(1, "February 2026", 28, all)},
			checkIn:   28,
			nights:    7,
			wantStart: models.CalendarCell{Day: 28, Enabled: true},
			wantEnd:   models.CalendarCell{Day: 3, Block: 1, Enabled: true},
		},
		{
			name:      "end disabled uses next enabled",
			blocks:    []models.MonthBlock{block(0, "May 2026", 31, func(d int) bool { return d != 8 })},
			checkIn:   4,
			nights:    5,
			wantStart: models.CalendarCell{Day: 4, Enabled: true},
			wantEnd:   models.CalendarCell{Day: 5, Enabled: true},
			approx:    true,
		},
		{
			name:      "overflow without next block stays in month",
			blocks:    []models.MonthBlock{block(0, "April 2026", 30, all)},
			checkIn:   29,
			nights:    4,
			wantStart: models.CalendarCell{Day: 29, Enabled: true},
			wantEnd:   models.CalendarCell{Day: 30, Enabled: true},
			approx:    true,
		},
		{
			name: "end day taken from next block before its first enabled day",
			blocks: []models.MonthBlock{
				block(0, "May 2026", 31, func(d int) bool { return d <= 10 }),
				block(1, "June 2026", 30, func(d int) bool { return d >= 3 }),
			},
			checkIn:   10,
			nights:    5,
			wantStart: models.CalendarCell{Day: 10, Enabled: true},
			wantEnd:   models.CalendarCell{Day: 14, Block: 1, Enabled: true},
			approx:    true,
		},
		{
			name: "start only in other block",
			blocks: []models.MonthBlock{
				block(0, "May 2026", 31, func(d int) bool { return d > 20 }),
				block(1, "June 2026", 30, func(d int) bool { return d < 10 }),
			},
			target:    1,
			checkIn:   25,
			nights:    2,
			wantStart: models.CalendarCell{Day: 25, Enabled: true},
			wantEnd:   models.CalendarCell{Day: 26, Enabled: true},
			approx:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PlanRange(tt.blocks, tt.target, tt.checkIn, tt.nights)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, p.Start)
			assert.Equal(t, tt.wantEnd, p.End)
			assert.Equal(t, tt.approx, p.Approximate, p.Reason)
		})
	}
}

func TestPlanRangeNeedsTwoEnabledDays(t *testing.T) {
	_, err := PlanRange([]models.MonthBlock{block(0, "May 2026", 31, func(d int) bool { return d == 1 })}, 0, 1, 3)
	assert.ErrorIs(t, err, ErrNoRange)
}
