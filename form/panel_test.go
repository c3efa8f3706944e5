package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"hicv-scanner/diagnostics"
	"hicv-scanner/interact"
	"hicv-scanner/models"
	"hicv-scanner/utils"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOption struct {
	id       string
	selected bool
	stuck    bool
	clicks   int
}

func (o *fakeOption) Describe() string { return o.id }

func (o *fakeOption) Apply(ctx context.Context, t interact.Technique) error {
	if o.stuck || t != interact.NativeClick {
		return errors.New("unsupported")
	}
	o.clicks++
	o.selected = !o.selected
	return nil
}

func (o *fakeOption) Selected(ctx context.Context) (bool, error) { return o.selected, nil }

type fakeTrigger struct{ box *fakeListbox }

func (t fakeTrigger) Describe() string { return "trigger" }

func (t fakeTrigger) Apply(ctx context.Context, tech interact.Technique) error {
	if t.box.opensWith == nil || tech != *t.box.opensWith {
		return errors.New("no effect")
	}
	t.box.open = true
	return nil
}

// fakeListbox renders rows lazily: each Scroll call reveals perScroll more.
type fakeListbox struct {
	rows      []Row
	options   map[string]*fakeOption
	rendered  int
	perScroll int
	open      bool
	opensWith *interact.Technique
	scrolls   int
	rowsErr   error
}

func newFakeListbox(rows []Row, initial, perScroll int) *fakeListbox {
	native := interact.NativeClick
	b := &fakeListbox{rows: rows, options: map[string]*fakeOption{}, rendered: initial, perScroll: perScroll, opensWith: &native}
	for _, r := range rows {
		if !r.Header {
			b.options[r.Option.ID] = &fakeOption{id: r.Option.ID, selected: r.Option.Selected}
		}
	}
	return b
}

func (b *fakeListbox) Trigger() interact.Target                  { return fakeTrigger{b} }
func (b *fakeListbox) Visible(ctx context.Context) (bool, error) { return b.open, nil }
func (b *fakeListbox) Option(id string) interact.Control         { return b.options[id] }
func (b *fakeListbox) Close(ctx context.Context) error           { b.open = false; return nil }

func (b *fakeListbox) Rows(ctx context.Context) ([]Row, error) {
	if b.rowsErr != nil {
		return nil, b.rowsErr
	}
	n := b.rendered
	if n > len(b.rows) {
		n = len(b.rows)
	}
	out := make([]Row, n)
	copy(out, b.rows[:n])
	for i := range out {
		if !out[i].Header {
			out[i].Option.Selected = b.options[out[i].Option.ID].selected
		}
	}
	return out, nil
}

func (b *fakeListbox) Scroll(ctx context.Context, fraction float64) error {
	b.scrolls++
	b.rendered += b.perScroll
	return nil
}

func header(name string) Row { return Row{Header: true, Name: name} }

func option(id, label string, selected bool) Row {
	return Row{Option: models.SelectableOption{ID: id, Label: label, Selected: selected}}
}

func testPanel(box Listbox) *Panel {
	opts := DefaultPanelOptions()
	opts.OpenWait = utils.PollOptions{Attempts: 1}
	opts.RenderWait = utils.PollOptions{Attempts: 2}
	opts.HeaderSteps = 6
	opts.RevealSteps = 10
	opts.ScrollPause = 0

	iaOpts := interact.DefaultOptions()
	iaOpts.Verify = utils.PollOptions{Attempts: 1}
	logger := utils.NewDiscardLogger()
	return NewPanel("location", box, interact.New(iaOpts, logger), diagnostics.Nop{}, opts, logger)
}

var unitChoices = []models.SelectableOption{
	{ID: "option-ST-id", Label: "Studio"},
	{ID: "option-1BD-id", Label: "1 Bedroom"},
	{ID: "option-2BD-id", Label: "2 Bedroom"},
	{ID: "option-3BDPlus-id", Label: "3+ Bedroom"},
}

func unitListbox() *fakeListbox {
	return newFakeListbox([]Row{
		option("option-ST-id", "Studio", false),
		option("option-1BD-id", "1 Bedroom", false),
		option("option-2BD-id", "2 Bedroom", true),
		option("option-3BDPlus-id", "3+ Bedroom", false),
	}, 4, 0)
}

func TestSelectExactlyConvergesToSubset(t *testing.T) {
	box := unitListbox()
	p := testPanel(box)

	rep, err := p.SelectExactly(context.Background(), unitChoices, []string{"Studio", "1 Bedroom"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Studio", "1 Bedroom"}, rep.Selected)
	assert.False(t, box.options["option-2BD-id"].selected)
	assert.Equal(t, 3, rep.Changed)
	assert.Equal(t, 4, rep.Confirmed)
	assert.False(t, box.open)
}

func TestSelectExactlyIsIdempotent(t *testing.T) {
	box := unitListbox()
	p := testPanel(box)
	want := []string{"studio", "3+ Bedroom"}

	first, err := p.SelectExactly(context.Background(), unitChoices, want)
	require.NoError(t, err)
	second, err := p.SelectExactly(context.Background(), unitChoices, want)
	require.NoError(t, err)

	assert.Equal(t, first.Selected, second.Selected)
	assert.Equal(t, 4, second.AlreadyMatching)
	assert.Zero(t, second.Changed)
	for _, o := range box.options {
		assert.LessOrEqual(t, o.clicks, 1, o.id)
	}
}

func TestSelectExactlySkipsUnrenderedChoices(t *testing.T) {
	box := newFakeListbox([]Row{option("option-ST-id", "Studio", false)}, 1, 0)

	rep, err := testPanel(box).SelectExactly(context.Background(), unitChoices, []string{"Studio", "1 Bedroom"})

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Discovered)
	assert.Equal(t, []string{"Studio"}, rep.Selected)
}

func TestSelectExactlyFailsWhenRowsUnreadable(t *testing.T) {
	box := unitListbox()
	box.rowsErr = errors.New("detached")

	_, err := testPanel(box).SelectExactly(context.Background(), unitChoices, []string{"Studio", "1 Bedroom"})

	var stage *diagnostics.StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, "unit_sizes_failed", stage.Artifact)
	assert.Contains(t, err.Error(), "detached")
	assert.True(t, box.options["option-2BD-id"].selected)
	assert.False(t, box.options["option-ST-id"].selected)
}

func TestSelectExactlyFailsWhenNothingRenders(t *testing.T) {
	box := newFakeListbox([]Row{option("option-other-id", "Penthouse", false)}, 1, 0)

	_, err := testPanel(box).SelectExactly(context.Background(), unitChoices, []string{"Studio"})

	var stage *diagnostics.StageError
	require.True(t, errors.As(err, &stage))
	assert.Contains(t, err.Error(), "none of the choices rendered")
}

func TestSelectExactlyFailsWhenSelectionDoesNotConverge(t *testing.T) {
	box := unitListbox()
	box.options["option-2BD-id"].stuck = true

	rep, err := testPanel(box).SelectExactly(context.Background(), unitChoices, []string{"Studio"})

	var stage *diagnostics.StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, "unit_sizes_failed", stage.Artifact)
	assert.Contains(t, err.Error(), "2 Bedroom")
	assert.Equal(t, []string{"2 Bedroom"}, rep.Failed)
	assert.False(t, rep.Converged())
	assert.True(t, box.open)
}

func floridaRows() []Row {
	return []Row{
		header("Arizona"),
		option("loc-az-1", "Scottsdale", false),
		header("Florida"),
		option("loc-fl-1", "Orlando", false),
		option("loc-fl-2", "Cape Canaveral", true),
		option("loc-fl-3", "Panama City Beach", false),
		option("loc-fl-4", "Galveston Bay", false),
		option("loc-fl-5", "Piney Shores", false),
		header("Georgia"),
		option("loc-ga-1", "Savannah", false),
		option("loc-ga-2", "Atlanta", false),
	}
}

func TestSelectGroupSelectsOnlyThatGroup(t *testing.T) {
	box := newFakeListbox(floridaRows(), 2, 3)

	rep, err := testPanel(box).SelectGroup(context.Background(), "Florida")

	require.NoError(t, err)
	assert.Equal(t, 5, rep.Discovered)
	assert.Equal(t, 1, rep.AlreadyMatching)
	assert.Equal(t, 4, rep.Changed)
	assert.Equal(t, 5, rep.Confirmed)
	for id, o := range box.options {
		assert.Equal(t, id[:6] == "loc-fl", o.selected, id)
	}
}

func TestSelectGroupMatchesHeaderByID(t *testing.T) {
	rows := []Row{
		{Header: true, Name: "Florida (2)", ID: "list-item-Florida-id"},
		option("loc-fl-1", "Orlando", false),
		option("loc-fl-2", "Cape Canaveral", false),
		{Header: true, Name: "Georgia (1)", ID: "list-item-Georgia-id"},
		option("loc-ga-1", "Savannah", false),
	}
	box := newFakeListbox(rows, len(rows), 0)

	rep, err := testPanel(box).SelectGroup(context.Background(), "Florida")

	require.NoError(t, err)
	assert.Equal(t, 2, rep.Confirmed)
	assert.False(t, box.options["loc-ga-1"].selected)
}

func TestSelectGroupUnconvergedIsFatal(t *testing.T) {
	box := newFakeListbox(floridaRows(), len(floridaRows()), 0)
	box.options["loc-fl-3"].stuck = true

	rep, err := testPanel(box).SelectGroup(context.Background(), "Florida")

	var stage *diagnostics.StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, "location_panel_after", stage.Artifact)
	assert.Equal(t, []string{"Panama City Beach"}, rep.Failed)
	assert.Equal(t, 4, rep.Confirmed)
}

func TestSelectGroupMissingHeaderIsFatal(t *testing.T) {
	rows := []Row{header("Arizona"), option("loc-az-1", "Scottsdale", false)}
	box := newFakeListbox(rows, 2, 1)

	_, err := testPanel(box).SelectGroup(context.Background(), "Florida")

	var stage *diagnostics.StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, "location_panel_no_group", stage.Artifact)
	assert.Equal(t, 6, box.scrolls)
}

func TestSelectGroupWithoutOptionsIsFatal(t *testing.T) {
	rows := []Row{header("Florida"), header("Georgia"), option("loc-ga-1", "Savannah", false)}
	box := newFakeListbox(rows, 3, 0)

	_, err := testPanel(box).SelectGroup(context.Background(), "Florida")

	var stage *diagnostics.StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, "location_panel_after", stage.Artifact)
	assert.Contains(t, err.Error(), "rendered no options")
}

func TestOpenFailureIsFatal(t *testing.T) {
	box := unitListbox()
	box.opensWith = nil

	_, err := testPanel(box).SelectExactly(context.Background(), unitChoices, nil)

	var stage *diagnostics.StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, "open_dropdown_failed", stage.Artifact)
}

func TestOpenUsesLaterStrategy(t *testing.T) {
	box := unitListbox()
	enter := interact.FocusEnter
	box.opensWith = &enter

	require.NoError(t, testPanel(box).Open(context.Background()))
	assert.True(t, box.open)
}

func TestGroupOptions(t *testing.T) {
	tests := []struct {
		name     string
		rows     []Row
		wantIDs  []string
		wantNext bool
	}{
		{"complete group", floridaRows(), []string{"loc-fl-1", "loc-fl-2", "loc-fl-3", "loc-fl-4", "loc-fl-5"}, true},
		{"partially rendered", floridaRows()[:5], []string{"loc-fl-1", "loc-fl-2"}, false},
		{"header only", floridaRows()[:3], nil, false},
		{"absent", floridaRows()[:2], nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, next := GroupOptions(tt.rows, "florida")
			var ids []string
			for _, o := range got {
				ids = append(ids, o.ID)
				assert.Equal(t, "florida", o.Group)
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.wantNext, next)
		})
	}
}

type fakeCounter struct {
	value   int
	min     int
	stepErr bool
}

type counterButton struct {
	c     *fakeCounter
	delta int
}

func (b counterButton) Describe() string { return "counter button" }

func (b counterButton) Apply(ctx context.Context, t interact.Technique) error {
	if b.c.stepErr {
		return errors.New("disabled")
	}
	if b.c.value+b.delta >= b.c.min {
		b.c.value += b.delta
	}
	return nil
}

func (c *fakeCounter) Describe() string                       { return "adults" }
func (c *fakeCounter) Value(ctx context.Context) (int, error) { return c.value, nil }
func (c *fakeCounter) Increment() interact.Target             { return counterButton{c, 1} }
func (c *fakeCounter) Decrement() interact.Target             { return counterButton{c, -1} }

func testStepper() *Stepper {
	s := NewStepper(interact.New(interact.DefaultOptions(), utils.NewDiscardLogger()), utils.NewDiscardLogger())
	s.budget = utils.PollOptions{Attempts: 30, Interval: time.Millisecond}
	return s
}

func TestStepperReachesTarget(t *testing.T) {
	up := &fakeCounter{value: 1}
	v, err := testStepper().Set(context.Background(), up, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	down := &fakeCounter{value: 3}
	v, err = testStepper().Set(context.Background(), down, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestStepperReportsStuckCounter(t *testing.T) {
	c := &fakeCounter{value: 2, min: 1}

	v, err := testStepper().Set(context.Background(), c, 0)

	require.Error(t, err)
	assert.Equal(t, 1, v)
	assert.Contains(t, err.Error(), "stuck at 1")
}
