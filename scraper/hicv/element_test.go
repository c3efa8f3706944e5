package hicv

import (
	"strings"
	"testing"

	"hicv-scanner/config"

	"github.com/stretchr/testify/assert"
)

func TestFindersQuoteSelectors(t *testing.T) {
	got := queryFinder(`button[data-uitest='next-month']`)
	assert.Equal(t, `document.querySelector("button[data-uitest='next-month']")`, got)

	text := textFinder("button", `^Confirm "Dates"$`)
	assert.Contains(t, text, `new RegExp("^Confirm \"Dates\"$", 'i')`)
}

func TestElementsGetDistinctTokens(t *testing.T) {
	a := newElement("a", queryFinder("#a"), nil, 0)
	b := newElement("b", queryFinder("#b"), nil, 0)
	assert.NotEqual(t, a.token, b.token)
	assert.Equal(t, "a", a.Describe())
}

func TestDefaultUnitSizesAreKnown(t *testing.T) {
	t.Setenv("HICV_USERNAME", "member@example.com")
	t.Setenv("HICV_PASSWORD", "secret")
	t.Setenv("UNIT_SIZES", "")
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}

	known := map[string]bool{}
	for _, u := range UnitSizeOptions {
		known[strings.ToLower(u.Label)] = true
	}
	for _, u := range cfg.UnitSizes {
		assert.True(t, known[strings.ToLower(u)], u)
	}
}
