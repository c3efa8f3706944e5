// Package extract recovers availability records from the rendered results
// page. Extraction runs on a markup snapshot so that the three parsing tiers
// see one consistent document.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hicv-scanner/diagnostics"
	"hicv-scanner/models"
	"hicv-scanner/utils"

	"github.com/PuerkitoBio/goquery"
)

// Page is the results page as the extractor needs it.
type Page interface {
	// ScrollStep scrolls the page down by delta pixels.
	ScrollStep(ctx context.Context, delta float64) error
	Height(ctx context.Context) (int64, error)
	// WaitQuiet waits up to d for network activity to stop.
	WaitQuiet(ctx context.Context, d time.Duration) error
	Content(ctx context.Context) (string, error)
}

// Options tunes the settle pass and the wait for priced results.
type Options struct {
	ScrollSteps int
	ScrollDelta float64
	ScrollPause time.Duration
	QuietWait   time.Duration
	CardWait    utils.PollOptions
}

// DefaultOptions returns the scroll and wait budgets used for the results page.
func DefaultOptions() Options {
	return Options{
		ScrollSteps: 24,
		ScrollDelta: 2500,
		ScrollPause: 350 * time.Millisecond,
		QuietWait:   1500 * time.Millisecond,
		CardWait:    utils.PollOptions{Timeout: 12 * time.Second, Interval: 400 * time.Millisecond},
	}
}

// Result is one extraction pass.
type Result struct {
	DateRange string
	Records   []models.AvailabilityRecord
	// Tier names the strategy that produced Records, empty when none did.
	Tier string
}

// Extractor reads availability records off a results page.
type Extractor struct {
	page   Page
	snap   diagnostics.Snapshotter
	opts   Options
	logger *utils.Logger
}

// NewExtractor creates an Extractor over page.
func NewExtractor(page Page, snap diagnostics.Snapshotter, opts Options, logger *utils.Logger) *Extractor {
	if snap == nil {
		snap = diagnostics.Nop{}
	}
	return &Extractor{page: page, snap: snap, opts: opts, logger: logger}
}

// Extract settles lazy content, waits for result cards and parses the page.
// An empty result is not an error; it leaves a no_results_debug snapshot.
func (e *Extractor) Extract(ctx context.Context) (Result, error) {
	doc, err := e.document(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{DateRange: DateRangeLabel(text(doc.Find("body")))}

	if err := e.settle(ctx); err != nil {
		return res, err
	}
	found, err := e.waitForPoints(ctx)
	if err != nil {
		return res, err
	}
	if !found {
		e.logger.Warn("Nothing mentioning points appeared")
	}

	doc, err = e.document(ctx)
	if err != nil {
		return res, err
	}
	if res.DateRange == "" {
		res.DateRange = DateRangeLabel(text(doc.Find("body")))
	}
	res.Records, res.Tier = Parse(doc, res.DateRange)

	if len(res.Records) == 0 {
		stem := e.snap.Capture(ctx, "no_results_debug")
		e.logger.Warn("No rows parsed for %q, dumped %s for review", res.DateRange, stem)
		return res, nil
	}
	e.logger.Info("Parsed %d rows for %q via %s", len(res.Records), res.DateRange, res.Tier)
	return res, nil
}

// settle scrolls until the document height stops changing.
func (e *Extractor) settle(ctx context.Context) error {
	last, err := e.page.Height(ctx)
	if err != nil {
		e.logger.Debug("page height: %v", err)
	}
	for step := 0; step < e.opts.ScrollSteps; step++ {
		if err := e.page.ScrollStep(ctx, e.opts.ScrollDelta); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Debug("scroll: %v", err)
		}
		if err := utils.Sleep(ctx, e.opts.ScrollPause); err != nil {
			return err
		}
		if err := e.page.WaitQuiet(ctx, e.opts.QuietWait); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		h, err := e.page.Height(ctx)
		if err != nil {
			h = last
		}
		if h == last {
			e.logger.Debug("results settled after %d scrolls", step+1)
			return nil
		}
		last = h
	}
	return nil
}

func (e *Extractor) waitForPoints(ctx context.Context) (bool, error) {
	return utils.WaitUntil(ctx, e.opts.CardWait, func(ctx context.Context) (bool, error) {
		doc, err := e.document(ctx)
		if err != nil {
			return false, err
		}
		return MentionsPoints(doc), nil
	})
}

// MentionsPoints reports whether anything on the page mentions points: a
// result container first, then any visible text node.
func MentionsPoints(doc *goquery.Document) bool {
	found := false
	doc.Find(cardSelector + ", " + sectionSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = pointsWordRe.MatchString(text(s))
		return !found
	})
	if found {
		return true
	}
	return len(pointTextNodes(doc.Selection, 1)) > 0
}

func (e *Extractor) document(ctx context.Context) (*goquery.Document, error) {
	markup, err := e.page.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("read results markup: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse results markup: %w", err)
	}
	return doc, nil
}
