package hicv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"hicv-scanner/interact"
	"hicv-scanner/utils"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

var errNotFound = errors.New("element not found")

// actionTimeout bounds one technique on a form widget.
const actionTimeout = 5 * time.Second

// Finders are JS expressions that evaluate to a DOM element or null.

func queryFinder(sel string) string {
	return fmt.Sprintf(`document.querySelector(%s)`, strconv.Quote(sel))
}

// textFinder matches the first element of candidates whose trimmed innerText
// matches pattern (case-insensitive) and is rendered.
func textFinder(candidates, pattern string) string {
	return fmt.Sprintf(`(function(){
		var re = new RegExp(%s, 'i');
		var els = document.querySelectorAll(%s);
		for (var i = 0; i < els.length; i++) {
			var el = els[i];
			if (re.test((el.innerText || el.textContent || '').trim()) && el.getClientRects().length > 0) return el;
		}
		return null;
	})()`, strconv.Quote(pattern), strconv.Quote(candidates))
}

// Element is a lazily resolved page element. Each operation re-runs the finder
// so that re-rendered nodes are picked up; actions address the node through a
// data attribute stamped on it by the finder.
type Element struct {
	name    string
	finder  string
	token   string
	pacer   *utils.Pacer
	timeout time.Duration
}

var elementSeq atomic.Int64

func newElement(name, finder string, pacer *utils.Pacer, timeout time.Duration) *Element {
	return &Element{
		name:    name,
		finder:  finder,
		token:   "e" + strconv.FormatInt(elementSeq.Add(1), 10),
		pacer:   pacer,
		timeout: timeout,
	}
}

func (e *Element) Describe() string { return e.name }

// resolve stamps the current matching node and returns a selector for it.
func (e *Element) resolve(ctx context.Context) (string, error) {
	var found bool
	script := fmt.Sprintf(`(function(){
		var el = %s;
		if (!el) return false;
		el.setAttribute('data-hicv', %s);
		return true;
	})()`, e.finder, strconv.Quote(e.token))
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return "", fmt.Errorf("%s: %w", e.name, err)
	}
	if !found {
		return "", fmt.Errorf("%s: %w", e.name, errNotFound)
	}
	return fmt.Sprintf(`[data-hicv=%q]`, e.token), nil
}

// Apply performs one activation technique, bounded by the element timeout.
func (e *Element) Apply(ctx context.Context, t interact.Technique) error {
	if err := e.pacer.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	sel, err := e.resolve(ctx)
	if err != nil {
		return err
	}

	var actions []chromedp.Action
	switch t {
	case interact.NativeClick:
		actions = []chromedp.Action{
			chromedp.ScrollIntoView(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
		}
	case interact.ForcedClick:
		actions = []chromedp.Action{
			chromedp.QueryAfter(sel, func(ctx context.Context, _ runtime.ExecutionContextID, nodes ...*cdp.Node) error {
				if len(nodes) == 0 {
					return errNotFound
				}
				return chromedp.MouseClickNode(nodes[0]).Do(ctx)
			}, chromedp.ByQuery, chromedp.NodeReady),
		}
	case interact.DoubleClick:
		actions = []chromedp.Action{chromedp.DoubleClick(sel, chromedp.ByQuery, chromedp.NodeVisible)}
	case interact.FocusEnter:
		actions = []chromedp.Action{chromedp.Focus(sel, chromedp.ByQuery), chromedp.KeyEvent(kb.Enter)}
	case interact.FocusSpace:
		actions = []chromedp.Action{chromedp.Focus(sel, chromedp.ByQuery), chromedp.KeyEvent(" ")}
	case interact.SyntheticClick:
		var ok bool
		script := fmt.Sprintf(`(function(){
			var el = document.querySelector(%s);
			if (!el) return false;
			el.dispatchEvent(new MouseEvent('click', {bubbles: true, cancelable: true, view: window}));
			return true;
		})()`, strconv.Quote(sel))
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
			return fmt.Errorf("%s: %s: %w", e.name, t, err)
		}
		if !ok {
			return fmt.Errorf("%s: %w", e.name, errNotFound)
		}
		return nil
	default:
		return fmt.Errorf("%s: unsupported technique %s", e.name, t)
	}

	if err := chromedp.Run(ctx, actions...); err != nil {
		return fmt.Errorf("%s: %s: %w", e.name, t, err)
	}
	return nil
}

// Present reports whether the element exists and is rendered.
func (e *Element) Present(ctx context.Context) (bool, error) {
	var ok bool
	script := fmt.Sprintf(`(function(){
		var el = %s;
		if (!el) return false;
		var st = window.getComputedStyle(el);
		if (st.visibility === 'hidden' || st.display === 'none') return false;
		var r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	})()`, e.finder)
	err := chromedp.Run(ctx, chromedp.Evaluate(script, &ok))
	return ok, err
}

// Enabled reports whether the element exists and is neither disabled nor aria-disabled.
func (e *Element) Enabled(ctx context.Context) (bool, error) {
	var ok bool
	script := fmt.Sprintf(`(function(){
		var el = %s;
		if (!el) return false;
		if (el.disabled) return false;
		return (el.getAttribute('aria-disabled') || '').toLowerCase() !== 'true';
	})()`, e.finder)
	err := chromedp.Run(ctx, chromedp.Evaluate(script, &ok))
	return ok, err
}

// Text returns the element's trimmed innerText.
func (e *Element) Text(ctx context.Context) (string, error) {
	var out struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
	}
	script := fmt.Sprintf(`(function(){
		var el = %s;
		if (!el) return {found: false, text: ''};
		return {found: true, text: (el.innerText || el.textContent || '').trim()};
	})()`, e.finder)
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return "", fmt.Errorf("%s: %w", e.name, err)
	}
	if !out.Found {
		return "", fmt.Errorf("%s: %w", e.name, errNotFound)
	}
	return out.Text, nil
}

// Fill clicks the element, clears it and types value.
func (e *Element) Fill(ctx context.Context, value string) error {
	if err := e.pacer.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	sel, err := e.resolve(ctx)
	if err != nil {
		return err
	}
	err = chromedp.Run(ctx,
		chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SetValue(sel, "", chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%s: fill: %w", e.name, err)
	}
	return nil
}

// WaitPresent polls until the element is rendered.
func (e *Element) WaitPresent(ctx context.Context, timeout time.Duration) (bool, error) {
	return utils.WaitUntil(ctx, utils.PollOptions{Timeout: timeout, Interval: 150 * time.Millisecond}, e.Present)
}

// firstOf resolves to the first present element among alternatives, in order.
type firstOf struct {
	name  string
	elems []*Element
}

func (f firstOf) Describe() string { return f.name }

func (f firstOf) pick(ctx context.Context) (*Element, error) {
	for _, e := range f.elems {
		if ok, err := e.Present(ctx); err == nil && ok {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", f.name, errNotFound)
}

func (f firstOf) Apply(ctx context.Context, t interact.Technique) error {
	e, err := f.pick(ctx)
	if err != nil {
		return err
	}
	return e.Apply(ctx, t)
}

func (f firstOf) Present(ctx context.Context) (bool, error) {
	_, err := f.pick(ctx)
	return err == nil, nil
}

func (f firstOf) Enabled(ctx context.Context) (bool, error) {
	e, err := f.pick(ctx)
	if err != nil {
		return false, nil
	}
	return e.Enabled(ctx)
}

func (f firstOf) WaitPresent(ctx context.Context, timeout time.Duration) (bool, error) {
	return utils.WaitUntil(ctx, utils.PollOptions{Timeout: timeout, Interval: 150 * time.Millisecond}, f.Present)
}

// pressKey sends a key to whatever has focus.
func pressKey(ctx context.Context, key string) error {
	return chromedp.Run(ctx, chromedp.KeyEvent(key))
}
