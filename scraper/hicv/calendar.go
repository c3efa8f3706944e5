package hicv

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"hicv-scanner/calendar"
	"hicv-scanner/interact"
	"hicv-scanner/models"
	"hicv-scanner/utils"

	"github.com/chromedp/chromedp"
)

// overlay is the react-day-picker range calendar of the booking form.
type overlay struct {
	root     *Element
	openers  []interact.Target
	next     *Element
	done     *Element
	confirms []interact.Button
	pacer    *utils.Pacer
	timeout  time.Duration
}

func newOverlay(pacer *utils.Pacer, timeout time.Duration) *overlay {
	o := &overlay{
		root:    newElement("calendar", queryFinder(CalendarOverlay), pacer, timeout),
		next:    newElement("next month", queryFinder(NextMonthSelector), pacer, timeout),
		done:    newElement("done", textFinder("button", DonePattern), pacer, timeout),
		pacer:   pacer,
		timeout: timeout,
	}
	for i, sel := range CalendarOpeners {
		o.openers = append(o.openers, newElement(fmt.Sprintf("calendar opener %d", i+1), queryFinder(sel), pacer, timeout))
	}
	o.openers = append(o.openers, newElement("check-in text", textFinder("button, p, span", `^`+BookingFormFallback+`$`), pacer, timeout))

	o.confirms = []interact.Button{
		newElement("confirm cta", queryFinder(ConfirmSelector), pacer, timeout),
		newElement("confirm button", textFinder("button", ConfirmPattern), pacer, timeout),
		newElement("confirm text", textFinder("button, a, [role='button'], span", ConfirmPattern), pacer, timeout),
	}
	return o
}

var _ calendar.Overlay = (*overlay)(nil)

func (o *overlay) Visible(ctx context.Context) (bool, error) { return o.root.Present(ctx) }

func (o *overlay) Openers() []interact.Target { return o.openers }

type rawBlock struct {
	Caption string `json:"caption"`
	Cells   []struct {
		Day     int  `json:"day"`
		Enabled bool `json:"enabled"`
	} `json:"cells"`
}

// Blocks reads the visible month grids. Outside days rendered by the picker
// for neighbouring months are skipped.
func (o *overlay) Blocks(ctx context.Context) ([]models.MonthBlock, error) {
	var raw []rawBlock
	script := fmt.Sprintf(`(function(){
		var root = %s;
		if (!root) return [];
		var out = [];
		var months = root.querySelectorAll(%s);
		for (var i = 0; i < months.length && i < 2; i++) {
			var m = months[i];
			var cap = m.querySelector(%s);
			var cells = [];
			m.querySelectorAll(%s).forEach(function(btn){
				if (btn.className.indexOf('outside') >= 0) return;
				var span = btn.querySelector(%s);
				var day = parseInt(((span || btn).textContent || '').trim(), 10);
				if (isNaN(day)) return;
				var enabled = !btn.disabled && btn.getAttribute('aria-disabled') !== 'true';
				cells.push({day: day, enabled: enabled});
			});
			out.push({caption: cap ? (cap.textContent || '').trim() : '', cells: cells});
		}
		return out;
	})()`, o.root.finder, strconv.Quote(MonthBlock), strconv.Quote(MonthCaption), strconv.Quote(DayButton), strconv.Quote(DayNumber))

	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		return nil, fmt.Errorf("calendar blocks: %w", err)
	}

	blocks := make([]models.MonthBlock, 0, len(raw))
	for i, rb := range raw {
		b := models.MonthBlock{Index: i, Caption: rb.Caption}
		for _, c := range rb.Cells {
			b.Cells = append(b.Cells, models.CalendarCell{Day: c.Day, Enabled: c.Enabled, Block: i})
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (o *overlay) Next() interact.Target { return o.next }

func (o *overlay) NextDisabled(ctx context.Context) (bool, error) {
	present, err := o.next.Present(ctx)
	if err != nil || !present {
		return true, err
	}
	enabled, err := o.next.Enabled(ctx)
	return !enabled, err
}

// Day targets the enabled day button numbered day inside the given block.
func (o *overlay) Day(block, day int) interact.Target {
	finder := fmt.Sprintf(`(function(){
		var root = %s;
		if (!root) return null;
		var m = root.querySelectorAll(%s)[%d];
		if (!m) return null;
		var btns = m.querySelectorAll(%s);
		for (var i = 0; i < btns.length; i++) {
			var btn = btns[i];
			if (btn.className.indexOf('outside') >= 0 || btn.disabled) continue;
			var span = btn.querySelector(%s);
			if (((span || btn).textContent || '').trim() === %q) return btn;
		}
		return null;
	})()`, o.root.finder, strconv.Quote(MonthBlock), block, strconv.Quote(DayButton), strconv.Quote(DayNumber), strconv.Itoa(day))
	return newElement(fmt.Sprintf("day %d of block %d", day, block+1), finder, o.pacer, o.timeout)
}

func (o *overlay) Done() interact.Button { return o.done }

func (o *overlay) Confirms() []interact.Button { return o.confirms }

func (o *overlay) Markup(ctx context.Context) (string, error) {
	var html string
	script := fmt.Sprintf(`(function(){ var el = %s; return el ? el.outerHTML : ''; })()`, o.root.finder)
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &html)); err != nil {
		return "", fmt.Errorf("calendar markup: %w", err)
	}
	if html == "" {
		return "", fmt.Errorf("calendar: %w", errNotFound)
	}
	return html, nil
}
