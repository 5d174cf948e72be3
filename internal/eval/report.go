package eval

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// WriteReportCSV saves one row per evaluated case.
func WriteReportCSV(path string, results []CaseResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"test_id", "query", "expected_phone", "extracted_phone",
		"status", "ambiguous", "response_time_sec", "topic",
	}); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, row := range results {
		rec := []string{
			row.TestID,
			row.Query,
			row.Expected,
			row.Extracted,
			row.Status,
			strconv.FormatBool(row.Ambiguous),
			fmt.Sprintf("%.2f", row.Elapsed.Seconds()),
			row.Topic,
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// ConfusionSummary renders a text confusion table of expected versus
// extracted phone numbers, with overall accuracy.
func ConfusionSummary(results []CaseResult) string {
	if len(results) == 0 {
		return "No results."
	}

	type cell struct{ expected, extracted string }
	counts := make(map[cell]int)
	labels := make(map[string]bool)
	correct := 0
	for _, row := range results {
		counts[cell{row.Expected, row.Extracted}]++
		labels[row.Expected] = true
		labels[row.Extracted] = true
		if row.Expected == row.Extracted {
			correct++
		}
	}

	sorted := make([]string, 0, len(labels))
	for l := range labels {
		sorted = append(sorted, l)
	}
	sort.Strings(sorted)

	var b strings.Builder
	fmt.Fprintf(&b, "CONFUSION MATRIX (total cases: %d)\n", len(results))
	fmt.Fprintf(&b, "%-16s", "expected\\extracted")
	for _, l := range sorted {
		fmt.Fprintf(&b, "%16s", l)
	}
	b.WriteString("\n")
	for _, expected := range sorted {
		fmt.Fprintf(&b, "%-16s", expected)
		for _, extracted := range sorted {
			fmt.Fprintf(&b, "%16d", counts[cell{expected, extracted}])
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nOverall accuracy: %.2f%%\n", float64(correct)/float64(len(results))*100)
	return b.String()
}
