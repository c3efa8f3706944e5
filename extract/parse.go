package extract

import (
	"regexp"
	"strconv"
	"strings"

	"hicv-scanner/models"
	"hicv-scanner/utils"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	cardSelector    = "[data-uitest='availability-result-card'], [data-uitest='availability-resort-result']"
	sectionSelector = "section:has(h2), article:has(h2)"

	// maxPointNodes bounds the text-node tier on very large pages.
	maxPointNodes = 60
)

// Tier names reported with each extraction.
const (
	TierCards     = "cards"
	TierSections  = "sections"
	TierTextNodes = "text nodes"
)

type fields struct {
	resort []string
	room   []string
}

var (
	cardFields = fields{
		resort: []string{"[data-uitest='resort-name']", "h2", "[class*='resort'] h2"},
		room:   []string{"[data-uitest*='unit-name']", "h3", "[class*='unit'] h3", "h4"},
	}
	sectionFields = fields{
		resort: []string{"h2"},
		room:   []string{"[data-uitest*='unit-name']", "h3", "h4"},
	}
	blockFields = fields{
		resort: []string{"h2", "header h2"},
		room:   []string{"[data-uitest*='unit-name']", "h3", "h4"},
	}
)

var (
	pointsRe     = regexp.MustCompile(`(?i)([\d,]+)\s*points`)
	bareNumberRe = regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+|\d{4,})\b`)
	pointsWordRe = regexp.MustCompile(`(?i)\bpoints\b`)

	monthNames  = `(?:January|February|March|April|May|June|July|August|September|October|November|December)`
	dateRangeRe = regexp.MustCompile(monthNames + `\s+\d{1,2}\s*-\s*` + monthNames + `\s+\d{1,2},\s*\d{4}`)
)

// ParsePoints returns the first "<number> points" figure in text, falling back
// to any large grouped or 4+ digit number. Zero means nothing was found.
func ParsePoints(text string) int {
	for _, m := range pointsRe.FindAllStringSubmatch(text, -1) {
		if n, ok := atoiGrouped(m[1]); ok {
			return n
		}
	}
	if m := bareNumberRe.FindStringSubmatch(text); m != nil {
		if n, ok := atoiGrouped(m[1]); ok {
			return n
		}
	}
	return 0
}

func atoiGrouped(s string) (int, bool) {
	digits := strings.ReplaceAll(s, ",", "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DateRangeLabel finds "January 2 - January 9, 2026" in page text, preferring
// the occurrence after the "Showing availability for" banner.
func DateRangeLabel(text string) string {
	text = collapse(text)
	if i := strings.Index(strings.ToLower(text), "showing availability for"); i >= 0 {
		if m := dateRangeRe.FindString(text[i:]); m != "" {
			return m
		}
	}
	return dateRangeRe.FindString(text)
}

// Parse runs the three extraction tiers over doc in order and returns the
// records of the first tier that yields any, deduplicated on all four fields.
func Parse(doc *goquery.Document, dateRange string) ([]models.AvailabilityRecord, string) {
	tiers := []struct {
		name string
		run  func(*goquery.Document, string) []models.AvailabilityRecord
	}{
		{TierCards, tierCards},
		{TierSections, tierSections},
		{TierTextNodes, tierTextNodes},
	}
	for _, t := range tiers {
		if records := dedup(t.run(doc, dateRange)); len(records) > 0 {
			return records, t.name
		}
	}
	return nil, ""
}

func tierCards(doc *goquery.Document, dateRange string) []models.AvailabilityRecord {
	var out []models.AvailabilityRecord
	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		if r := recordFrom(card, cardFields, dateRange); r.IsCandidate() {
			out = append(out, r)
		}
	})
	return out
}

func tierSections(doc *goquery.Document, dateRange string) []models.AvailabilityRecord {
	var out []models.AvailabilityRecord
	doc.Find(sectionSelector).Each(func(_ int, block *goquery.Selection) {
		if !pointsWordRe.MatchString(text(block)) {
			return
		}
		if r := recordFrom(block, sectionFields, dateRange); r.IsCandidate() {
			out = append(out, r)
		}
	})
	return out
}

func tierTextNodes(doc *goquery.Document, dateRange string) []models.AvailabilityRecord {
	var out []models.AvailabilityRecord
	for _, n := range pointTextNodes(doc.Selection, maxPointNodes) {
		block := enclosingBlock(n)
		if block == nil {
			continue
		}
		r := recordFrom(doc.FindNodes(block), blockFields, dateRange)
		if r.Points == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

func recordFrom(s *goquery.Selection, f fields, dateRange string) models.AvailabilityRecord {
	return models.AvailabilityRecord{
		DateRange: dateRange,
		Resort:    firstText(s, f.resort),
		Room:      firstText(s, f.room),
		Points:    ParsePoints(text(s)),
	}
}

func firstText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		found := s.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if t := text(found); t != "" {
			return t
		}
	}
	return ""
}

func dedup(records []models.AvailabilityRecord) []models.AvailabilityRecord {
	seen := utils.NewKeySet()
	var out []models.AvailabilityRecord
	for _, r := range records {
		if seen.Add(r.DateRange, r.Resort, r.Room, strconv.Itoa(r.Points)) {
			out = append(out, r)
		}
	}
	return out
}

// pointTextNodes collects up to limit text nodes mentioning "points", in
// document order.
func pointTextNodes(s *goquery.Selection, limit int) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && skipElement(n.Data) {
			return true
		}
		if n.Type == html.TextNode && strings.Contains(strings.ToLower(n.Data), "points") {
			out = append(out, n)
			if len(out) >= limit {
				return false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	for _, n := range s.Nodes {
		if !walk(n) {
			break
		}
	}
	return out
}

func enclosingBlock(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		switch p.Data {
		case "section", "article", "div":
			return p
		}
	}
	return nil
}

// text renders a selection roughly like innerText: text nodes separated by
// spaces, whitespace collapsed, scripts and styles skipped.
func text(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if skipElement(n.Data) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return collapse(b.String())
}

func skipElement(tag string) bool {
	return tag == "script" || tag == "style" || tag == "noscript"
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
