package hicv

import (
	"context"
	"fmt"
	"time"

	"hicv-scanner/extract"
	"hicv-scanner/utils"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// resultsPage exposes the results tab to the extractor.
type resultsPage struct {
	browser *Browser
	width   int
	height  int
}

var _ extract.Page = (*resultsPage)(nil)

// ScrollStep sends a mouse wheel event at the centre of the viewport so that
// scroll-triggered lazy loading fires the same way it does for a user.
func (p *resultsPage) ScrollStep(ctx context.Context, delta float64) error {
	x, y := float64(p.width)/2, float64(p.height)/2
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, x, y).WithDeltaX(0).WithDeltaY(delta).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("wheel scroll: %w", err)
	}
	return nil
}

func (p *resultsPage) Height(ctx context.Context) (int64, error) {
	var h int64
	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.body ? document.body.scrollHeight : 0`, &h)); err != nil {
		return 0, fmt.Errorf("page height: %w", err)
	}
	return h, nil
}

// WaitQuiet waits until no new resource entries appear between two samples,
// or until d elapses. Running out of time is not an error.
func (p *resultsPage) WaitQuiet(ctx context.Context, d time.Duration) error {
	const sample = 250 * time.Millisecond
	last := int64(-1)
	_, err := utils.WaitUntil(ctx, utils.PollOptions{Timeout: d, Interval: sample}, func(ctx context.Context) (bool, error) {
		var n int64
		if err := chromedp.Run(ctx, chromedp.Evaluate(`performance.getEntriesByType('resource').length`, &n)); err != nil {
			return false, err
		}
		quiet := n == last
		last = n
		return quiet, nil
	})
	return err
}

func (p *resultsPage) Content(ctx context.Context) (string, error) {
	return p.browser.Content(ctx)
}
