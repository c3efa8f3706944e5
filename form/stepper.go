package form

import (
	"context"
	"fmt"
	"time"

	"hicv-scanner/interact"
	"hicv-scanner/utils"
)

// Counter is a numeric stepper with plus and minus buttons.
type Counter interface {
	Describe() string
	Value(ctx context.Context) (int, error)
	Increment() interact.Target
	Decrement() interact.Target
}

// Stepper clicks a Counter's buttons until its value equals a target.
type Stepper struct {
	ia     *interact.Interactor
	budget utils.PollOptions
	logger *utils.Logger
}

func NewStepper(ia *interact.Interactor, logger *utils.Logger) *Stepper {
	return &Stepper{
		ia:     ia,
		budget: utils.PollOptions{Attempts: 30, Interval: 100 * time.Millisecond},
		logger: logger,
	}
}

// Set returns the last observed value and an error if it never reached target.
func (s *Stepper) Set(ctx context.Context, c Counter, target int) (int, error) {
	last := -1
	step := func(ctx context.Context) error {
		v, err := c.Value(ctx)
		if err != nil {
			return err
		}
		switch {
		case v < target:
			return s.ia.Click(ctx, c.Increment())
		case v > target:
			return s.ia.Click(ctx, c.Decrement())
		}
		return nil
	}
	check := func(ctx context.Context) (bool, error) {
		v, err := c.Value(ctx)
		if err != nil {
			return false, err
		}
		last = v
		return v == target, nil
	}

	if ok, _ := check(ctx); ok {
		return last, nil
	}
	ok, err := utils.Poll(ctx, s.budget, step, check)
	if err != nil {
		return last, err
	}
	if !ok {
		return last, fmt.Errorf("%s stuck at %d, want %d", c.Describe(), last, target)
	}
	s.logger.Info("%s set to %d", c.Describe(), target)
	return last, nil
}
