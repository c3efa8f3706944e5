// Package interact makes "open this widget" and "set this option to X" succeed
// against controls whose click targets are unreliable. Success is always
// judged by polling observed state, never assumed from the action itself.
package interact

import (
	"context"
	"fmt"
	"time"

	"hicv-scanner/utils"
)

// Technique is one way of activating a control.
type Technique int

const (
	NativeClick Technique = iota
	ForcedClick
	DoubleClick
	FocusEnter
	FocusSpace
	SyntheticClick
)

func (t Technique) String() string {
	switch t {
	case NativeClick:
		return "direct click"
	case ForcedClick:
		return "forced click"
	case DoubleClick:
		return "double click"
	case FocusEnter:
		return "keyboard enter"
	case FocusSpace:
		return "keyboard space"
	case SyntheticClick:
		return "synthetic event"
	default:
		return fmt.Sprintf("technique(%d)", int(t))
	}
}

// Target accepts activation techniques.
type Target interface {
	Describe() string
	Apply(ctx context.Context, t Technique) error
}

// Control is a Target that reports a boolean selection state.
type Control interface {
	Target
	Selected(ctx context.Context) (bool, error)
}

// Injector is implemented by controls whose state can be written directly,
// bypassing the widget's own event handling.
type Injector interface {
	Inject(ctx context.Context, selected bool) error
}

// Button is a Target that can be absent or disabled.
type Button interface {
	Target
	Present(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
}

// Strategy is a named technique in the interactor's priority list.
type Strategy struct {
	Name      string
	Technique Technique
}

// DefaultStrategies is the fixed priority order used for every control.
func DefaultStrategies() []Strategy {
	techniques := []Technique{NativeClick, ForcedClick, DoubleClick, FocusEnter, FocusSpace, SyntheticClick}
	out := make([]Strategy, len(techniques))
	for i, t := range techniques {
		out[i] = Strategy{Name: t.String(), Technique: t}
	}
	return out
}

// Options tune the interactor.
type Options struct {
	Strategies []Strategy
	// Verify bounds the poll after each attempt.
	Verify utils.PollOptions
	// Clicks is the order used by Click, which has no state to verify.
	Clicks []Technique
}

func DefaultOptions() Options {
	return Options{
		Strategies: DefaultStrategies(),
		Verify:     utils.PollOptions{Timeout: 600 * time.Millisecond, Interval: 50 * time.Millisecond},
		Clicks:     []Technique{NativeClick, ForcedClick},
	}
}

// Outcome describes what it took to reach (or fail to reach) a state.
type Outcome struct {
	Target    string
	Attempted []string
	Winner    string
	Injected  bool
	Verified  bool
	// Final is the last observed selection state (Toggle only).
	Final bool
}

// Interactor evaluates an ordered strategy list against a verification predicate.
type Interactor struct {
	opts   Options
	logger *utils.Logger
}

func New(opts Options, logger *utils.Logger) *Interactor {
	if len(opts.Strategies) == 0 {
		opts.Strategies = DefaultStrategies()
	}
	if len(opts.Clicks) == 0 {
		opts.Clicks = []Technique{NativeClick, ForcedClick}
	}
	return &Interactor{opts: opts, logger: logger}
}

// Drive applies strategies in priority order until verify holds. The first
// strategy whose post-condition is observed wins and nothing after it runs.
// The returned error is non-nil only when ctx is cancelled.
func (i *Interactor) Drive(ctx context.Context, t Target, verify utils.Check) (Outcome, error) {
	out := Outcome{Target: t.Describe()}
	for _, s := range i.opts.Strategies {
		out.Attempted = append(out.Attempted, s.Name)
		if err := t.Apply(ctx, s.Technique); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			i.logger.Debug("%s: %s failed: %v", out.Target, s.Name, err)
		}
		ok, err := utils.WaitUntil(ctx, i.opts.Verify, verify)
		if err != nil {
			return out, err
		}
		if ok {
			out.Winner = s.Name
			out.Verified = true
			i.logger.Debug("%s: verified after %s", out.Target, s.Name)
			return out, nil
		}
	}
	i.logger.Debug("%s: no strategy verified (%d tried)", out.Target, len(out.Attempted))
	return out, nil
}

// Toggle brings c to the desired selection state. When every behavioral
// strategy fails and c is an Injector, the state is written directly as a
// last resort. Outcome.Final carries the observed state at the end; callers
// compare it against desired.
func (i *Interactor) Toggle(ctx context.Context, c Control, desired bool) (Outcome, error) {
	matches := func(ctx context.Context) (bool, error) {
		sel, err := c.Selected(ctx)
		if err != nil {
			return false, err
		}
		return sel == desired, nil
	}

	if ok, _ := matches(ctx); ok {
		return Outcome{Target: c.Describe(), Verified: true, Final: desired}, nil
	}

	out, err := i.Drive(ctx, c, matches)
	if err != nil {
		return out, err
	}

	if !out.Verified {
		if inj, ok := c.(Injector); ok {
			out.Attempted = append(out.Attempted, "state injection")
			if err := inj.Inject(ctx, desired); err != nil {
				i.logger.Debug("%s: state injection failed: %v", out.Target, err)
			}
			verified, err := utils.WaitUntil(ctx, i.opts.Verify, matches)
			if err != nil {
				return out, err
			}
			if verified {
				out.Winner = "state injection"
				out.Injected = true
				out.Verified = true
			}
		}
	}

	out.Final = !desired
	if sel, err := c.Selected(ctx); err == nil {
		out.Final = sel
	}
	if out.Verified {
		out.Final = desired
	}
	return out, nil
}

// Click activates t with the first click technique that does not error. It is
// for targets with no observable state of their own (day cells, confirm buttons).
func (i *Interactor) Click(ctx context.Context, t Target) error {
	var lastErr error
	for _, tech := range i.opts.Clicks {
		err := t.Apply(ctx, tech)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		i.logger.Debug("%s: %s failed: %v", t.Describe(), tech, err)
		lastErr = err
	}
	return fmt.Errorf("click %s: %w", t.Describe(), lastErr)
}
