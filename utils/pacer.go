package utils

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out UI actions so that consecutive clicks and key presses do
// not race the page's own animation and debounce timers.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows one action per delay. A non-positive delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next action is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
