package services

import (
	"fmt"
	"io"
	"sort"

	"hicv-scanner/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// PrintScanSummaries renders one row per configured query.
func PrintScanSummaries(w io.Writer, summaries []models.ScanSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Scan passes")
	t.AppendHeader(table.Row{"Check-in", "Nights", "Records", "Tier", "Status"})
	for _, s := range summaries {
		status := "ok"
		if s.Err != nil {
			status = s.Err.Error()
		}
		tier := s.Tier
		if tier == "" {
			tier = "-"
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%s %d", s.Query.Caption(), s.Query.CheckInDay),
			s.Query.Nights, len(s.Records), tier, status,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// PrintInsightReport renders the run insights as tables.
func PrintInsightReport(w io.Writer, report *models.InsightReport) {
	overview := table.NewWriter()
	overview.SetOutputMirror(w)
	overview.SetTitle("Availability insights")
	overview.AppendRows([]table.Row{
		{"Records", report.TotalRecords},
		{"Date ranges", report.DateRanges},
		{"Average points", fmt.Sprintf("%.0f", report.AveragePoints)},
		{"Minimum points", report.MinPoints},
		{"Maximum points", report.MaxPoints},
	})
	if c := report.Cheapest; c != nil {
		overview.AppendRow(table.Row{"Cheapest stay", fmt.Sprintf("%s, %s (%s) %d pts", c.Resort, c.Room, c.DateRange, c.Points)})
	}
	overview.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	overview.SetStyle(table.StyleRounded)
	overview.Render()

	if len(report.RecordsByResort) > 0 {
		resorts := table.NewWriter()
		resorts.SetOutputMirror(w)
		resorts.AppendHeader(table.Row{"Resort", "Records"})
		for _, k := range sortedByCount(report.RecordsByResort) {
			resorts.AppendRow(table.Row{k, report.RecordsByResort[k]})
		}
		resorts.SetStyle(table.StyleRounded)
		resorts.Render()
	}

	if len(report.MinPointsByRoom) > 0 {
		rooms := table.NewWriter()
		rooms.SetOutputMirror(w)
		rooms.AppendHeader(table.Row{"Room", "Min points"})
		keys := make([]string, 0, len(report.MinPointsByRoom))
		for k := range report.MinPointsByRoom {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := report.MinPointsByRoom[keys[i]], report.MinPointsByRoom[keys[j]]
			if a != b {
				return a < b
			}
			return keys[i] < keys[j]
		})
		for _, k := range keys {
			rooms.AppendRow(table.Row{k, report.MinPointsByRoom[k]})
		}
		rooms.SetStyle(table.StyleRounded)
		rooms.Render()
	}
}

// sortedByCount orders map keys by descending count, then name.
func sortedByCount(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
