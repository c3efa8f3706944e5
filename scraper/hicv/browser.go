package hicv

import (
	"context"
	"fmt"
	"time"

	"hicv-scanner/config"
	"hicv-scanner/utils"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Browser owns one Chrome process and the tab the run drives. The tab can
// change when the portal opens the booking flow in a new window.
type Browser struct {
	ctx     context.Context
	cancels []context.CancelFunc
	logger  *utils.Logger
}

// NewBrowser starts Chrome with the configured window and headless mode.
func NewBrowser(cfg *config.Config, logger *utils.Logger) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("log-level", "3"), // suppress Chrome logs
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	b := &Browser{ctx: ctx, cancels: []context.CancelFunc{cancelCtx, cancelAlloc}, logger: logger}
	if err := chromedp.Run(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return b, nil
}

// Context is the chromedp context of the current tab.
func (b *Browser) Context() context.Context { return b.ctx }

// Bind returns a context for the current tab that is also cancelled when
// ctx is done, so run deadlines reach tabs opened after the run started.
func (b *Browser) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	tab, cancel := context.WithCancel(b.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return tab, func() {
		stop()
		cancel()
	}
}

// Close shuts the browser down.
func (b *Browser) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
}

// ExpectNewTab starts listening for a tab opened by the page. Call the
// returned function after the action that may open it; it switches the
// browser to the new tab and reports whether one appeared within wait.
func (b *Browser) ExpectNewTab(wait time.Duration) func() bool {
	ch := chromedp.WaitNewTarget(b.ctx, func(info *target.Info) bool {
		return info.Type == "page"
	})
	return func() bool {
		select {
		case id := <-ch:
			ctx, cancel := chromedp.NewContext(b.ctx, chromedp.WithTargetID(id))
			b.cancels = append([]context.CancelFunc{cancel}, b.cancels...)
			b.ctx = ctx
			b.logger.Info("Switched to new tab %s", id)
			return true
		case <-time.After(wait):
			return false
		}
	}
}

// Navigate loads url in the current tab.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s failed: %w", url, err)
	}
	return nil
}

// Screenshot captures the full page as PNG.
func (b *Browser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Content returns the current document markup.
func (b *Browser) Content(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}
