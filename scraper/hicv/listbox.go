package hicv

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"hicv-scanner/form"
	"hicv-scanner/interact"
	"hicv-scanner/models"
	"hicv-scanner/utils"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// listbox is a checkbox dropdown rendered as ul[role=listbox] > li[role=option].
type listbox struct {
	name    string
	trigger *Element
	panel   *Element
	pacer   *utils.Pacer
	timeout time.Duration
}

func newListbox(name, triggerSel, panelSel string, pacer *utils.Pacer, timeout time.Duration) *listbox {
	return &listbox{
		name:    name,
		trigger: newElement(name+" trigger", queryFinder(triggerSel), pacer, timeout),
		panel:   newElement(name+" panel", queryFinder(panelSel), pacer, timeout),
		pacer:   pacer,
		timeout: timeout,
	}
}

var _ form.Listbox = (*listbox)(nil)

func (l *listbox) Trigger() interact.Target { return l.trigger }

func (l *listbox) Visible(ctx context.Context) (bool, error) { return l.panel.Present(ctx) }

type rawRow struct {
	Header   bool   `json:"header"`
	Name     string `json:"name"`
	ID       string `json:"id"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// Rows reads every rendered row of the panel in display order.
func (l *listbox) Rows(ctx context.Context) ([]form.Row, error) {
	var raw []rawRow
	script := fmt.Sprintf(`(function(){
		var ul = %s;
		if (!ul) return [];
		var out = [];
		ul.querySelectorAll(%s).forEach(function(li){
			var text = (li.innerText || li.textContent || '').trim();
			if (li.classList.contains(%s) || li.querySelector('.' + %s)) {
				out.push({header: true, name: text, id: li.id || ''});
				return;
			}
			var input = li.querySelector('input');
			var label = li.querySelector('label');
			out.push({
				header: false,
				id: input ? input.id : '',
				label: label ? (label.innerText || label.textContent || '').trim() : text,
				selected: (input && input.checked) || li.getAttribute('aria-selected') === 'true'
			});
		});
		return out;
	})()`, l.panel.finder, strconv.Quote(ListOptionSelector), strconv.Quote(GroupLabelClass), strconv.Quote(GroupLabelClass))

	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		return nil, fmt.Errorf("%s rows: %w", l.name, err)
	}

	rows := make([]form.Row, 0, len(raw))
	for _, r := range raw {
		if r.Header {
			rows = append(rows, form.Row{Header: true, Name: r.Name, ID: r.ID})
			continue
		}
		rows = append(rows, form.Row{Option: models.SelectableOption{ID: r.ID, Label: r.Label, Selected: r.Selected}})
	}
	return rows, nil
}

// Scroll moves the panel by fraction of its visible height.
func (l *listbox) Scroll(ctx context.Context, fraction float64) error {
	var ok bool
	script := fmt.Sprintf(`(function(){
		var ul = %s;
		if (!ul) return false;
		ul.scrollTop = ul.scrollTop + ul.clientHeight * %s;
		return true;
	})()`, l.panel.finder, strconv.FormatFloat(fraction, 'f', -1, 64))
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("%s scroll: %w", l.name, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", l.panel.name, errNotFound)
	}
	return nil
}

func (l *listbox) Option(id string) interact.Control {
	finder := fmt.Sprintf(`(function(){
		var input = document.getElementById(%[1]s);
		if (!input) return null;
		return document.querySelector('label[for="' + CSS.escape(%[1]s) + '"]') || input.closest('li') || input;
	})()`, strconv.Quote(id))
	return &option{
		Element: newElement(l.name+" option "+id, finder, l.pacer, l.timeout),
		id:      id,
	}
}

// Close dismisses the panel with Escape.
func (l *listbox) Close(ctx context.Context) error {
	if err := pressKey(ctx, kb.Escape); err != nil {
		return fmt.Errorf("%s close: %w", l.name, err)
	}
	return utils.Sleep(ctx, 200*time.Millisecond)
}

// option is one checkbox row. Clicks go to its label; state is read from the
// input and the row's aria-selected.
type option struct {
	*Element
	id string
}

var (
	_ interact.Control  = (*option)(nil)
	_ interact.Injector = (*option)(nil)
)

func (o *option) Selected(ctx context.Context) (bool, error) {
	var out struct {
		Found    bool `json:"found"`
		Selected bool `json:"selected"`
	}
	script := fmt.Sprintf(`(function(){
		var input = document.getElementById(%s);
		if (!input) return {found: false, selected: false};
		var li = input.closest('li');
		return {found: true, selected: input.checked || (li !== null && li.getAttribute('aria-selected') === 'true')};
	})()`, strconv.Quote(o.id))
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return false, fmt.Errorf("%s: %w", o.name, err)
	}
	if !out.Found {
		return false, fmt.Errorf("%s: %w", o.name, errNotFound)
	}
	return out.Selected, nil
}

// Inject sets the checkbox through the native setter so framework listeners
// observe the input and change events, and mirrors it on aria-selected.
func (o *option) Inject(ctx context.Context, selected bool) error {
	var ok bool
	script := fmt.Sprintf(`(function(){
		var input = document.getElementById(%s);
		if (!input) return false;
		var setter = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, 'checked').set;
		setter.call(input, %t);
		input.dispatchEvent(new Event('input', {bubbles: true}));
		input.dispatchEvent(new Event('change', {bubbles: true}));
		var li = input.closest('li');
		if (li) li.setAttribute('aria-selected', %q);
		return true;
	})()`, strconv.Quote(o.id), selected, strconv.FormatBool(selected))
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("%s inject: %w", o.name, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", o.name, errNotFound)
	}
	return nil
}
