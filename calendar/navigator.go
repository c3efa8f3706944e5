// Package calendar selects a check-in/check-out range in the booking form's
// two-month range picker and confirms it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hicv-scanner/diagnostics"
	"hicv-scanner/interact"
	"hicv-scanner/models"
	"hicv-scanner/utils"
)

// State is a step of the range selection flow.
type State int

const (
	Closed State = iota
	Opening
	Rendered
	Searching
	SelectingStart
	SelectingEnd
	AwaitingInnerConfirm
	AwaitingOuterConfirm
	Confirmed
	Aborted
)

var stateNames = [...]string{
	"closed", "opening", "rendered", "searching", "selecting start", "selecting end",
	"awaiting inner confirm", "awaiting outer confirm", "confirmed", "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Overlay is the range picker as seen by the navigator. Blocks returns the
// visible month grids in display order (at most two).
type Overlay interface {
	Visible(ctx context.Context) (bool, error)
	Openers() []interact.Target
	Blocks(ctx context.Context) ([]models.MonthBlock, error)
	Next() interact.Target
	NextDisabled(ctx context.Context) (bool, error)
	Day(block, day int) interact.Target
	// Done is the picker's inner confirmation button.
	Done() interact.Button
	// Confirms lists equivalent outer confirmation buttons in preference order.
	Confirms() []interact.Button
	Markup(ctx context.Context) (string, error)
}

// Options bounds every wait and retry of the navigator.
type Options struct {
	OpenWait    utils.PollOptions
	Ready       utils.PollOptions
	StepReady   utils.PollOptions
	MaxSteps    int
	DoneWait    utils.PollOptions
	ConfirmWait utils.PollOptions
	HideWait    utils.PollOptions
}

// DefaultOptions returns the budgets used against the booking calendar.
func DefaultOptions() Options {
	return Options{
		OpenWait:    utils.PollOptions{Timeout: 2 * time.Second, Interval: 150 * time.Millisecond},
		Ready:       utils.PollOptions{Timeout: 10 * time.Second, Interval: 150 * time.Millisecond},
		StepReady:   utils.PollOptions{Timeout: 4 * time.Second, Interval: 150 * time.Millisecond},
		MaxSteps:    12,
		DoneWait:    utils.PollOptions{Timeout: 6 * time.Second, Interval: 200 * time.Millisecond},
		ConfirmWait: utils.PollOptions{Timeout: 12 * time.Second, Interval: 200 * time.Millisecond},
		HideWait:    utils.PollOptions{Timeout: 6 * time.Second, Interval: 200 * time.Millisecond},
	}
}

// Selection is the confirmed range and how it was reached.
type Selection struct {
	Caption     string
	Start       models.CalendarCell
	End         models.CalendarCell
	Approximate bool
	Reason      string
	Trace       []State
}

// Navigator pages a range calendar to a month and confirms a stay in it.
type Navigator struct {
	overlay Overlay
	ia      *interact.Interactor
	snap    diagnostics.Snapshotter
	opts    Options
	logger  *utils.Logger
}

// NewNavigator creates a Navigator over overlay.
func NewNavigator(overlay Overlay, ia *interact.Interactor, snap diagnostics.Snapshotter, opts Options, logger *utils.Logger) *Navigator {
	if snap == nil {
		snap = diagnostics.Nop{}
	}
	return &Navigator{overlay: overlay, ia: ia, snap: snap, opts: opts, logger: logger}
}

type run struct {
	sel *Selection
	n   *Navigator
}

func (r run) enter(s State) {
	r.sel.Trace = append(r.sel.Trace, s)
	r.n.logger.Debug("calendar: %s", s)
}

// Select drives the overlay from closed to confirmed for q. Any error leaves
// the trace ending in Aborted; fatal stage failures are *diagnostics.StageError.
func (n *Navigator) Select(ctx context.Context, q models.DateRangeQuery) (Selection, error) {
	sel := Selection{Trace: []State{Closed}}
	r := run{sel: &sel, n: n}

	err := n.selectRange(ctx, r, q)
	if err != nil {
		r.enter(Aborted)
		return sel, err
	}
	r.enter(Confirmed)
	if sel.Approximate {
		n.logger.Warn("Selected approximate range %s day %d to day %d: %s", sel.Caption, sel.Start.Day, sel.End.Day, sel.Reason)
	} else {
		n.logger.Info("Selected %s day %d to day %d", sel.Caption, sel.Start.Day, sel.End.Day)
	}
	return sel, nil
}

func (n *Navigator) selectRange(ctx context.Context, r run, q models.DateRangeQuery) error {
	r.enter(Opening)
	n.open(ctx)
	ready, err := n.waitReady(ctx, n.opts.Ready)
	if err != nil {
		return err
	}
	if !ready {
		stem := n.dumpOverlay(ctx, "calendar_dump_before_ready")
		return diagnostics.Fatal("calendar open", stem, errors.New("overlay never rendered an enabled day"))
	}
	r.enter(Rendered)

	r.enter(Searching)
	blocks, target, err := n.search(ctx, q.Caption())
	if err != nil {
		return err
	}

	plan, err := PlanRange(blocks, target, q.CheckInDay, q.Nights)
	if err != nil {
		stem := n.snap.Capture(ctx, "date_day_not_found")
		n.dumpOverlay(ctx, "calendar_dump")
		return diagnostics.Fatal("calendar range", stem, err)
	}
	if b := plan.Start.Block; b >= 0 && b < len(blocks) {
		r.sel.Caption = blocks[b].Caption
	}
	r.sel.Start, r.sel.End = plan.Start, plan.End
	r.sel.Approximate, r.sel.Reason = plan.Approximate, plan.Reason

	r.enter(SelectingStart)
	if err := n.clickDay(ctx, plan.Start); err != nil {
		return err
	}
	r.enter(SelectingEnd)
	if err := n.clickDay(ctx, plan.End); err != nil {
		return err
	}

	r.enter(AwaitingInnerConfirm)
	if err := n.pressDone(ctx); err != nil {
		return err
	}
	r.enter(AwaitingOuterConfirm)
	return n.confirm(ctx)
}

func (n *Navigator) visible(ctx context.Context) (bool, error) {
	ok, err := n.overlay.Visible(ctx)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

func (n *Navigator) open(ctx context.Context) {
	if ok, _ := n.visible(ctx); ok {
		return
	}
	for _, opener := range n.overlay.Openers() {
		if err := n.ia.Click(ctx, opener); err != nil {
			n.logger.Debug("calendar opener %s: %v", opener.Describe(), err)
			continue
		}
		if ok, _ := utils.WaitUntil(ctx, n.opts.OpenWait, n.visible); ok {
			return
		}
	}
	n.logger.Warn("Calendar overlay did not report visible after trying every opener")
}

// waitReady polls until some visible block has an enabled day.
func (n *Navigator) waitReady(ctx context.Context, opts utils.PollOptions) (bool, error) {
	return utils.WaitUntil(ctx, opts, func(ctx context.Context) (bool, error) {
		blocks, err := n.overlay.Blocks(ctx)
		if err != nil {
			return false, err
		}
		for _, b := range blocks {
			if len(b.EnabledCells()) > 0 {
				return true, nil
			}
		}
		return false, nil
	})
}

// search pages forward until a block's caption matches. When the step budget
// runs out, or next is disabled, it settles for the first visible block.
func (n *Navigator) search(ctx context.Context, caption string) ([]models.MonthBlock, int, error) {
	blocks, _ := n.overlay.Blocks(ctx)
	if i := findCaption(blocks, caption); i >= 0 {
		return blocks, i, nil
	}
	for step := 0; step < n.opts.MaxSteps; step++ {
		if disabled, err := n.overlay.NextDisabled(ctx); err == nil && disabled {
			n.logger.Debug("calendar: next month disabled after %d steps", step)
			break
		}
		if err := n.ia.Click(ctx, n.overlay.Next()); err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			n.logger.Debug("calendar: next month: %v", err)
			break
		}
		if _, err := n.waitReady(ctx, n.opts.StepReady); err != nil {
			return nil, 0, err
		}
		blocks, _ = n.overlay.Blocks(ctx)
		if i := findCaption(blocks, caption); i >= 0 {
			return blocks, i, nil
		}
	}
	if len(blocks) == 0 {
		stem := n.snap.Capture(ctx, "date_day_not_found")
		return nil, 0, diagnostics.Fatal("calendar search", stem, errors.New("no month blocks visible"))
	}
	n.logger.Warn("Month %q not found, using %q", caption, blocks[0].Caption)
	return blocks, 0, nil
}

func findCaption(blocks []models.MonthBlock, caption string) int {
	for i, b := range blocks {
		if strings.EqualFold(strings.TrimSpace(b.Caption), caption) {
			return i
		}
	}
	return -1
}

func (n *Navigator) clickDay(ctx context.Context, c models.CalendarCell) error {
	if err := n.ia.Click(ctx, n.overlay.Day(c.Block, c.Day)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stem := n.snap.Capture(ctx, "date_day_not_found")
		return diagnostics.Fatal("calendar range", stem, err)
	}
	return nil
}

// pressDone clicks the inner Done button when the picker has one.
func (n *Navigator) pressDone(ctx context.Context) error {
	done := n.overlay.Done()
	if done == nil {
		return nil
	}
	if present, err := done.Present(ctx); err != nil || !present {
		return nil
	}
	enabled, err := utils.WaitUntil(ctx, n.opts.DoneWait, done.Enabled)
	if err != nil {
		return err
	}
	if !enabled {
		n.logger.Warn("Done button still disabled, clicking anyway")
	}
	if err := n.ia.Click(ctx, done); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.logger.Warn("Done button: %v", err)
	}
	return nil
}

// confirm waits for the first usable outer confirm button, clicks it and
// waits for the overlay to go away.
func (n *Navigator) confirm(ctx context.Context) error {
	var cta interact.Button
	ready, err := utils.WaitUntil(ctx, n.opts.ConfirmWait, func(ctx context.Context) (bool, error) {
		for _, b := range n.overlay.Confirms() {
			if usable(ctx, b) {
				cta = b
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if !ready {
		stem := n.snap.Capture(ctx, "confirm_disabled")
		return diagnostics.Fatal("calendar confirm", stem, errors.New("confirm control never enabled"))
	}
	if err := n.ia.Click(ctx, cta); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stem := n.snap.Capture(ctx, "confirm_disabled")
		return diagnostics.Fatal("calendar confirm", stem, err)
	}

	hidden, err := utils.WaitUntil(ctx, n.opts.HideWait, func(ctx context.Context) (bool, error) {
		ok, err := n.visible(ctx)
		return !ok, err
	})
	if err != nil {
		return err
	}
	if !hidden {
		n.logger.Warn("Calendar overlay still visible after confirm")
	}
	return nil
}

func usable(ctx context.Context, b interact.Button) bool {
	if ok, err := b.Present(ctx); err != nil || !ok {
		return false
	}
	ok, err := b.Enabled(ctx)
	return err == nil && ok
}

func (n *Navigator) dumpOverlay(ctx context.Context, stem string) string {
	markup, err := n.overlay.Markup(ctx)
	if err != nil {
		n.logger.Warn("Calendar markup unavailable: %v", err)
		return n.snap.Capture(ctx, stem)
	}
	return n.snap.Dump(ctx, stem, markup)
}
