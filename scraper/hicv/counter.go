package hicv

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hicv-scanner/form"
	"hicv-scanner/interact"
	"hicv-scanner/utils"
)

// counter is an occupancy stepper: a number flanked by minus and plus buttons.
type counter struct {
	kind  string
	value *Element
	minus *Element
	plus  *Element
}

func newCounter(kind string, pacer *utils.Pacer, timeout time.Duration) *counter {
	return &counter{
		kind:  kind,
		value: newElement(kind+" count", queryFinder(fmt.Sprintf(CounterValueFormat, kind)), pacer, timeout),
		minus: newElement(kind+" minus", queryFinder(fmt.Sprintf(CounterMinusFormat, kind)), pacer, timeout),
		plus:  newElement(kind+" plus", queryFinder(fmt.Sprintf(CounterPlusFormat, kind)), pacer, timeout),
	}
}

var _ form.Counter = (*counter)(nil)

func (c *counter) Describe() string { return c.kind }

func (c *counter) Value(ctx context.Context) (int, error) {
	text, err := c.value.Text(ctx)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%s count %q: %w", c.kind, text, err)
	}
	return n, nil
}

func (c *counter) Increment() interact.Target { return c.plus }

func (c *counter) Decrement() interact.Target { return c.minus }
