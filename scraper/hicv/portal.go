// Package hicv drives the Holiday Inn Club member portal with chromedp: it
// logs in, opens the booking form, configures a search and hands the results
// page to the extractor.
package hicv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"hicv-scanner/calendar"
	"hicv-scanner/config"
	"hicv-scanner/diagnostics"
	"hicv-scanner/extract"
	"hicv-scanner/form"
	"hicv-scanner/interact"
	"hicv-scanner/models"
	"hicv-scanner/utils"
)

const newTabWait = 5 * time.Second

var selectionCountRe = regexp.MustCompile(`(?i)\d+|selected`)

// Portal is the site glue between the browser session and the form components.
type Portal struct {
	browser *Browser
	cfg     *config.Config
	snap    diagnostics.Snapshotter
	ia      *interact.Interactor
	pacer   *utils.Pacer
	logger  *utils.Logger
}

func NewPortal(browser *Browser, cfg *config.Config, snap diagnostics.Snapshotter, logger *utils.Logger) *Portal {
	return &Portal{
		browser: browser,
		cfg:     cfg,
		snap:    snap,
		ia:      interact.New(interact.DefaultOptions(), logger),
		pacer:   utils.NewPacer(cfg.SlowMo),
		logger:  logger,
	}
}

func (p *Portal) element(name, finder string) *Element {
	return newElement(name, finder, p.pacer, p.cfg.DefaultTimeout)
}

// Login signs in through the Okta widget and waits for the member dashboard.
func (p *Portal) Login(ctx context.Context) error {
	tab, cancel := p.browser.Bind(ctx)
	defer cancel()

	p.logger.Info("Opening login page %s", p.cfg.LoginURL)
	if err := p.browser.Navigate(tab, p.cfg.LoginURL); err != nil {
		return err
	}

	username := p.element("username", queryFinder(UsernameSelector))
	if ok, err := username.WaitPresent(tab, p.cfg.DefaultTimeout); err != nil {
		return err
	} else if !ok {
		stem := p.snap.Capture(tab, "login_failed")
		return diagnostics.Fatal("login", stem, errors.New("login form not rendered"))
	}

	if err := username.Fill(tab, p.cfg.Username); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := p.element("password", queryFinder(PasswordSelector)).Fill(tab, p.cfg.Password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := p.ia.Click(tab, p.element("sign in", queryFinder(SubmitSelector))); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	ok, err := p.bookVacation().WaitPresent(tab, p.cfg.DefaultTimeout)
	if err != nil {
		return err
	}
	if !ok {
		stem := p.snap.Capture(tab, "login_failed")
		return diagnostics.Fatal("login", stem, errors.New("dashboard did not load after sign in"))
	}
	p.logger.Info("Logged in as %s", p.cfg.Username)
	return nil
}

func (p *Portal) bookVacation() *Element {
	return p.element("book my vacation", textFinder("a, button", BookVacationPattern))
}

// OpenBooking follows "Book My Vacation", which may open a new tab, and waits
// for the booking form.
func (p *Portal) OpenBooking(ctx context.Context) error {
	tab, cancel := p.browser.Bind(ctx)
	p.acceptCookies(tab)
	switched := p.browser.ExpectNewTab(newTabWait)
	err := p.ia.Click(tab, p.bookVacation())
	cancel()
	if err != nil {
		p.logger.Warn("Book My Vacation: %v", err)
	} else if !switched() {
		p.logger.Debug("Booking flow stayed in the same tab")
	}
	return p.WaitForBookingForm(ctx)
}

// ResetBooking reloads the booking form so each query starts from a clean form.
func (p *Portal) ResetBooking(ctx context.Context) error {
	tab, cancel := p.browser.Bind(ctx)
	err := p.browser.Navigate(tab, p.cfg.BookingURL)
	cancel()
	if err != nil {
		return err
	}
	return p.WaitForBookingForm(ctx)
}

// WaitForBookingForm waits for the search form, navigating to the booking URL
// once if it does not show up.
func (p *Portal) WaitForBookingForm(ctx context.Context) error {
	tab, cancel := p.browser.Bind(ctx)
	defer cancel()

	ready := firstOf{name: "booking form", elems: []*Element{
		p.element("resorts dropdown", queryFinder(BookingFormSelector)),
		p.element("check-in prompt", textFinder("button, p, span", `^`+BookingFormFallback+`$`)),
	}}

	ok, err := ready.WaitPresent(tab, p.cfg.DefaultTimeout)
	if err != nil {
		return err
	}
	if !ok {
		p.logger.Warn("Booking form not visible, navigating to %s", p.cfg.BookingURL)
		if err := p.browser.Navigate(tab, p.cfg.BookingURL); err != nil {
			return err
		}
		if ok, err = ready.WaitPresent(tab, p.cfg.DefaultTimeout); err != nil {
			return err
		}
	}
	if !ok {
		stem := p.snap.Capture(tab, "booking_form_missing")
		return diagnostics.Fatal("booking form", stem, errors.New("booking form never rendered"))
	}
	p.acceptCookies(tab)
	p.logger.Info("Booking form ready")
	return nil
}

func (p *Portal) acceptCookies(ctx context.Context) {
	agree := p.element("cookie agree", textFinder("button", CookieAgreePattern))
	if ok, _ := agree.Present(ctx); !ok {
		return
	}
	if err := p.ia.Click(ctx, agree); err != nil {
		p.logger.Debug("Cookie banner: %v", err)
		return
	}
	p.logger.Debug("Accepted cookie banner")
}

// Configure fills the booking form for q and confirms the calendar range.
func (p *Portal) Configure(ctx context.Context, q models.DateRangeQuery) (calendar.Selection, error) {
	tab, cancel := p.browser.Bind(ctx)
	defer cancel()

	location := form.NewPanel("location",
		newListbox("location", LocationTrigger, LocationPanel, p.pacer, actionTimeout),
		p.ia, p.snap, form.DefaultPanelOptions(), p.logger)
	if _, err := location.SelectGroup(tab, p.cfg.LocationGroup); err != nil {
		return calendar.Selection{}, err
	}
	p.settleLocationButton(tab)

	if err := p.setOccupancy(tab); err != nil {
		return calendar.Selection{}, err
	}

	units := form.NewPanel("unit size",
		newListbox("unit size", UnitSizeTrigger, UnitSizePanel, p.pacer, actionTimeout),
		p.ia, p.snap, form.DefaultPanelOptions(), p.logger)
	var choices []models.SelectableOption
	for _, u := range UnitSizeOptions {
		choices = append(choices, models.SelectableOption{ID: u.ID, Label: u.Label})
	}
	if _, err := units.SelectExactly(tab, choices, p.cfg.UnitSizes); err != nil {
		return calendar.Selection{}, err
	}

	if err := p.element("nights", queryFinder(NightsInput)).Fill(tab, strconv.Itoa(q.Nights)); err != nil {
		p.logger.Warn("Nights input: %v", err)
	}
	p.pickMonth(tab, q)

	nav := calendar.NewNavigator(newOverlay(p.pacer, actionTimeout), p.ia, p.snap, calendar.DefaultOptions(), p.logger)
	return nav.Select(tab, q)
}

// settleLocationButton waits briefly for the trigger to report a selection.
func (p *Portal) settleLocationButton(ctx context.Context) {
	label := p.element("location label", queryFinder(LocationButtonText))
	var last string
	ok, _ := utils.WaitUntil(ctx, utils.PollOptions{Timeout: 3 * time.Second, Interval: 200 * time.Millisecond},
		func(ctx context.Context) (bool, error) {
			text, err := label.Text(ctx)
			if err != nil {
				return false, err
			}
			last = text
			return selectionCountRe.MatchString(text), nil
		})
	if ok {
		p.logger.Info("Location button: %s", last)
	} else {
		p.logger.Debug("Location button did not report a selection (last %q)", last)
	}
}

func (p *Portal) setOccupancy(ctx context.Context) error {
	stepper := form.NewStepper(p.ia, p.logger)
	for _, c := range []struct {
		kind   string
		target int
	}{{"adults", p.cfg.Adults}, {"children", p.cfg.Children}} {
		if _, err := stepper.Set(ctx, newCounter(c.kind, p.pacer, actionTimeout), c.target); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stem := p.snap.Capture(ctx, "occupancy_failed")
			return diagnostics.Fatal("occupancy", stem, err)
		}
	}
	return nil
}

// pickMonth sets the month and year pickers. They only position the calendar,
// which pages on its own when they fail, so failures are warnings.
func (p *Portal) pickMonth(ctx context.Context, q models.DateRangeQuery) {
	short := q.Month.String()[:3]
	if err := p.pick(ctx, MonthPicker, []*Element{
		p.element("month "+short, textFinder(PickerOptionSelector, `^`+short+`$`)),
	}); err != nil {
		p.logger.Warn("Month picker: %v", err)
	}

	y := strconv.Itoa(q.Year)
	if err := p.pick(ctx, YearPicker, []*Element{
		p.element("year label "+y, queryFinder(`label[for='year-selection-`+y+`']`)),
		p.element("year input "+y, queryFinder(`#year-selection-`+y)),
		p.element("year text "+y, textFinder(PickerOptionSelector, `^`+y+`$`)),
	}); err != nil {
		p.logger.Warn("Year picker: %v", err)
	}
}

func (p *Portal) pick(ctx context.Context, trigger string, alternatives []*Element) error {
	t := p.element(trigger, queryFinder(trigger))
	if ok, _ := t.Present(ctx); !ok {
		return fmt.Errorf("%s: %w", trigger, errNotFound)
	}
	if err := p.ia.Click(ctx, t); err != nil {
		return err
	}
	choice := firstOf{name: alternatives[0].name, elems: alternatives}
	if ok, err := choice.WaitPresent(ctx, 2*time.Second); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%s: %w", choice.name, errNotFound)
	}
	return p.ia.Click(ctx, choice)
}

// WaitForResults waits for any results anchor and snapshots the page.
func (p *Portal) WaitForResults(ctx context.Context) error {
	tab, cancel := p.browser.Bind(ctx)
	defer cancel()

	anchors := firstOf{name: "results", elems: []*Element{
		p.element("results list", queryFinder(ResultsAnchor)),
		p.element("results heading", textFinder("h1, h2, h3", ResultsHeading)),
		p.element("modify search", textFinder("button, a", ModifySearchTxt)),
		p.element("any heading", queryFinder("h2")),
	}}
	ok, err := anchors.WaitPresent(tab, 2*p.cfg.DefaultTimeout)
	if err != nil {
		return err
	}
	if !ok {
		stem := p.snap.Capture(tab, "results_wait_failed")
		return diagnostics.Fatal("results", stem, errors.New("results page never rendered"))
	}
	p.snap.Capture(tab, "member_results")
	return nil
}

// Extract runs the extractor against the current tab.
func (p *Portal) Extract(ctx context.Context) (extract.Result, error) {
	tab, cancel := p.browser.Bind(ctx)
	defer cancel()

	page := &resultsPage{browser: p.browser, width: p.cfg.WindowWidth, height: p.cfg.WindowHeight}
	return extract.NewExtractor(page, p.snap, extract.DefaultOptions(), p.logger).Extract(tab)
}
