// Package form drives the booking form's custom widgets: checkbox listbox
// panels (location groups, unit sizes) and the occupancy counters.
package form

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

// Row is one rendered <li> of a listbox: either a group header or an option.
type Row struct {
	Header bool
	// Name and ID are the header text and element id for header rows.
	Name   string
	ID     string
	Option models.SelectableOption
}

// Listbox is a popup panel of checkbox options opened from a trigger.
// Rows returns everything currently rendered, in display order; more rows may
// appear as the panel is scrolled.
type Listbox interface {
	Trigger() interact.Target
	Visible(ctx context.Context) (bool, error)
	Rows(ctx context.Context) ([]Row, error)
	Scroll(ctx context.Context, fraction float64) error
	Option(id string) interact.Control
	Close(ctx context.Context) error
}

// PanelOptions bounds the waits and scrolls of a Panel.
type PanelOptions struct {
	// OpenWait bounds the visibility poll after each opening strategy.
	OpenWait utils.PollOptions
	// RenderWait bounds the wait for a fixed choice list to render.
	RenderWait utils.PollOptions
	// HeaderSteps caps the full-viewport scrolls spent looking for a group header.
	HeaderSteps int
	// RevealSteps caps the half-viewport scrolls spent rendering a group's options.
	RevealSteps int
	// StableScans ends the reveal early after this many scans without growth.
	StableScans int
	ScrollPause time.Duration
}

// DefaultPanelOptions returns the budgets used for the portal's panels.
func DefaultPanelOptions() PanelOptions {
	return PanelOptions{
		OpenWait:    utils.PollOptions{Timeout: 1500 * time.Millisecond, Interval: 100 * time.Millisecond},
		RenderWait:  utils.PollOptions{Timeout: 3 * time.Second, Interval: 150 * time.Millisecond},
		HeaderSteps: 60,
		RevealSteps: 80,
		StableScans: 5,
		ScrollPause: 80 * time.Millisecond,
	}
}

// Report counts what a reconciliation did.
type Report struct {
	Discovered      int
	AlreadyMatching int
	Changed         int
	Confirmed       int
	Failed          []string
	// Selected lists the labels observed selected after reconciliation.
	Selected []string
}

// Converged reports whether every discovered option ended in its desired state.
func (r Report) Converged() bool {
	return len(r.Failed) == 0 && r.Confirmed == r.Discovered
}

// Panel reconciles a Listbox's options against a desired selection.
type Panel struct {
	name   string
	box    Listbox
	ia     *interact.Interactor
	opener *interact.Interactor
	snap   diagnostics.Snapshotter
	opts   PanelOptions
	logger *utils.Logger
}

// NewPanel creates a Panel over box. name prefixes its log lines and errors.
func NewPanel(name string, box Listbox, ia *interact.Interactor, snap diagnostics.Snapshotter, opts PanelOptions, logger *utils.Logger) *Panel {
	if snap == nil {
		snap = diagnostics.Nop{}
	}
	return &Panel{
		name:   name,
		box:    box,
		ia:     ia,
		opener: interact.New(interact.Options{Verify: opts.OpenWait}, logger),
		snap:   snap,
		opts:   opts,
		logger: logger,
	}
}

// Open makes the panel visible. Failing to open it is fatal.
func (p *Panel) Open(ctx context.Context) error {
	if ok, _ := p.box.Visible(ctx); ok {
		return nil
	}
	out, err := p.opener.Drive(ctx, p.box.Trigger(), p.box.Visible)
	if err != nil {
		return err
	}
	if !out.Verified {
		stem := p.snap.Capture(ctx, "open_dropdown_failed")
		return diagnostics.Fatal(p.name+" panel", stem,
			fmt.Errorf("listbox did not appear after %d strategies", len(out.Attempted)))
	}
	p.logger.Debug("%s panel opened via %s", p.name, out.Winner)
	return nil
}

// GroupOptions returns the options rendered under the header of group, and
// whether the following header (the end of the group) is rendered too.
func GroupOptions(rows []Row, group string) ([]models.SelectableOption, bool) {
	var out []models.SelectableOption
	inGroup := false
	for _, r := range rows {
		if r.Header {
			if inGroup {
				return out, true
			}
			inGroup = headerMatches(r, group)
			continue
		}
		if inGroup && r.Option.ID != "" {
			o := r.Option
			o.Group = group
			out = append(out, o)
		}
	}
	return out, false
}

// headerMatches accepts a header by its list-item-<group>-id element id, or by
// its text when the id is missing.
func headerMatches(r Row, group string) bool {
	group = strings.TrimSpace(group)
	if r.ID != "" && strings.EqualFold(r.ID, "list-item-"+group+"-id") {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Name), group)
}

func hasHeader(rows []Row, group string) bool {
	for _, r := range rows {
		if r.Header && headerMatches(r, group) {
			return true
		}
	}
	return false
}

// SelectGroup selects every option under the named group header and closes
// the panel. The group must render with at least one option.
func (p *Panel) SelectGroup(ctx context.Context, group string) (Report, error) {
	if err := p.Open(ctx); err != nil {
		return Report{}, err
	}

	found := false
	for step := 0; step < p.opts.HeaderSteps; step++ {
		rows, err := p.box.Rows(ctx)
		if err == nil && hasHeader(rows, group) {
			found = true
			break
		}
		if err := p.scroll(ctx, 1); err != nil {
			return Report{}, err
		}
	}
	if !found {
		stem := p.snap.Capture(ctx, "location_panel_no_group")
		return Report{}, diagnostics.Fatal(p.name+" panel", stem,
			fmt.Errorf("group header %q never rendered", group))
	}

	options, err := p.reveal(ctx, group)
	if err != nil {
		return Report{}, err
	}
	if len(options) == 0 {
		stem := p.snap.Capture(ctx, "location_panel_after")
		return Report{}, diagnostics.Fatal(p.name+" panel", stem,
			fmt.Errorf("group %q rendered no options", group))
	}
	p.logger.Info("%s options under %s: %d", p.name, group, len(options))

	for i := range options {
		options[i].Desired = true
	}
	rep, err := p.Reconcile(ctx, options)
	if err != nil {
		return rep, err
	}
	if !rep.Converged() {
		return rep, p.unconverged(ctx, rep, "location_panel_after")
	}
	p.close(ctx)
	return rep, nil
}

// reveal scrolls until the group's option set stops growing or the next
// header shows up.
func (p *Panel) reveal(ctx context.Context, group string) ([]models.SelectableOption, error) {
	var ordered []models.SelectableOption
	index := make(map[string]int)
	stable := 0

	for step := 0; step < p.opts.RevealSteps; step++ {
		rows, err := p.box.Rows(ctx)
		if err != nil {
			p.logger.Debug("%s rows: %v", p.name, err)
		}
		options, next := GroupOptions(rows, group)
		grew := false
		for _, o := range options {
			if i, ok := index[o.ID]; ok {
				ordered[i] = o
				continue
			}
			index[o.ID] = len(ordered)
			ordered = append(ordered, o)
			grew = true
		}
		if next && len(ordered) > 0 {
			break
		}
		if grew {
			stable = 0
		} else {
			stable++
		}
		if p.opts.StableScans > 0 && stable >= p.opts.StableScans && len(ordered) > 0 {
			break
		}
		if err := p.scroll(ctx, 0.5); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// SelectExactly makes the selected set of choices equal to the labels in want.
// Choices the panel does not render are skipped, but at least one must render
// within RenderWait. A selection that does not converge is fatal.
func (p *Panel) SelectExactly(ctx context.Context, choices []models.SelectableOption, want []string) (Report, error) {
	if err := p.Open(ctx); err != nil {
		return Report{}, err
	}

	rendered := make(map[string]bool)
	var lastErr error
	ok, err := utils.WaitUntil(ctx, p.opts.RenderWait, func(ctx context.Context) (bool, error) {
		rows, err := p.box.Rows(ctx)
		if err != nil {
			lastErr = err
			return false, err
		}
		for _, r := range rows {
			if !r.Header {
				rendered[r.Option.ID] = true
			}
		}
		for _, c := range choices {
			if rendered[c.ID] {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return Report{}, err
	}
	if !ok {
		cause := errors.New("none of the choices rendered")
		if lastErr != nil {
			cause = fmt.Errorf("reading options: %w", lastErr)
		}
		stem := p.snap.Capture(ctx, "unit_sizes_failed")
		return Report{}, diagnostics.Fatal(p.name+" panel", stem, cause)
	}

	wanted := make(map[string]bool, len(want))
	for _, w := range want {
		wanted[strings.ToLower(strings.TrimSpace(w))] = true
	}

	var options []models.SelectableOption
	for _, c := range choices {
		if !rendered[c.ID] {
			p.logger.Warn("%s option %q not rendered, skipping", p.name, c.Label)
			continue
		}
		c.Desired = wanted[strings.ToLower(c.Label)]
		options = append(options, c)
	}

	rep, err := p.Reconcile(ctx, options)
	if err != nil {
		return rep, err
	}
	if !rep.Converged() {
		return rep, p.unconverged(ctx, rep, "unit_sizes_failed")
	}
	p.logger.Info("%s selected: %v", p.name, rep.Selected)
	p.close(ctx)
	return rep, nil
}

func (p *Panel) unconverged(ctx context.Context, rep Report, stem string) error {
	stem = p.snap.Capture(ctx, stem)
	return diagnostics.Fatal(p.name+" panel", stem,
		fmt.Errorf("selection did not converge: %d of %d confirmed, could not set %v",
			rep.Confirmed, rep.Discovered, rep.Failed))
}

// Reconcile flips every option whose observed state differs from Desired.
// Per-option failures are counted, never returned; the error is non-nil only
// when ctx is cancelled.
func (p *Panel) Reconcile(ctx context.Context, options []models.SelectableOption) (Report, error) {
	rep := Report{Discovered: len(options)}

	for _, o := range options {
		c := p.box.Option(o.ID)
		sel, err := c.Selected(ctx)
		if err == nil && sel == o.Desired {
			rep.AlreadyMatching++
			continue
		}
		out, err := p.ia.Toggle(ctx, c, o.Desired)
		if err != nil {
			return rep, err
		}
		if out.Final == o.Desired {
			rep.Changed++
			if out.Injected {
				p.logger.Warn("%s option %q needed state injection", p.name, o.Label)
			}
		} else {
			rep.Failed = append(rep.Failed, o.Label)
		}
	}

	for _, o := range options {
		sel, err := p.box.Option(o.ID).Selected(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return rep, err
			}
			continue
		}
		if sel == o.Desired {
			rep.Confirmed++
		}
		if sel {
			rep.Selected = append(rep.Selected, o.Label)
		}
	}

	p.logger.Info("%s: %d discovered, %d already matching, %d changed, %d confirmed",
		p.name, rep.Discovered, rep.AlreadyMatching, rep.Changed, rep.Confirmed)
	if len(rep.Failed) > 0 {
		p.logger.Warn("%s: could not set %v", p.name, rep.Failed)
	}
	return rep, nil
}

func (p *Panel) scroll(ctx context.Context, fraction float64) error {
	if err := p.box.Scroll(ctx, fraction); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Debug("%s scroll: %v", p.name, err)
	}
	return utils.Sleep(ctx, p.opts.ScrollPause)
}

func (p *Panel) close(ctx context.Context) {
	if err := p.box.Close(ctx); err != nil {
		p.logger.Debug("%s close: %v", p.name, err)
	}
}
