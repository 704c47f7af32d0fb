// Package filter narrows and ranks the failing tests of an analysis the way
// the result table presents them: restricted to the selected reports,
// optionally keeping only repeated or consistent failures.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey names a ranking of the failing tests table.
type SortKey string

const (
	SortByFailureCount SortKey = "failureCount"
	SortByTestName     SortKey = "testName"
	SortByFailureRate  SortKey = "failureRate"
)

// SortKeys lists the supported rankings.
var SortKeys = []SortKey{SortByFailureCount, SortByTestName, SortByFailureRate}

// ParseSortBy validates a sort key name.
func ParseSortBy(s string) (SortKey, error) {
	for _, k := range SortKeys {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid sort key %q, valid values: %v", s, SortKeys)
}

// Options controls which failing tests are kept and how they are ranked.
type Options struct {
	// SelectedReports are the report names taken into account.
	SelectedReports []string

	// OnlyMultipleFailures keeps tests failing in more than one selected report.
	OnlyMultipleFailures bool

	// OnlyConsistentFailures keeps tests failing in every selected report.
	OnlyConsistentFailures bool

	// MinFailureCount keeps tests failing in at least that many selected
	// reports. Values lower than 2 disable the filter.
	MinFailureCount int

	SortBy SortKey
}

// Row is a failing test with the reports it failed in.
type Row struct {
	Test string `json:"test"`

	// Reports are the selected reports where the test failed.
	Reports []string `json:"reports"`

	// AllReports are all the reports where the test failed.
	AllReports []string `json:"allReports"`
}

// FailureRate is the share of selected reports where the test failed, in percent.
func (r *Row) FailureRate(selected int) float64 {
	if selected == 0 {
		return 0
	}
	return float64(len(r.Reports)) / float64(selected) * 100
}

// FilterAndSort returns the rows of failingTests kept by opts, ranked by
// opts.SortBy. Rows start ordered by test name, and ties keep that order.
func FilterAndSort(failingTests map[string][]string, opts Options) []Row {
	if len(failingTests) == 0 {
		return []Row{}
	}

	selected := make(map[string]struct{}, len(opts.SelectedReports))
	for _, name := range opts.SelectedReports {
		selected[name] = struct{}{}
	}

	names := make([]string, 0, len(failingTests))
	for name := range failingTests {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := []Row{}
	for _, name := range names {
		all := failingTests[name]
		reports := []string{}
		for _, report := range all {
			if _, ok := selected[report]; ok {
				reports = append(reports, report)
			}
		}
		if len(reports) == 0 {
			continue
		}
		rows = append(rows, Row{Test: name, Reports: reports, AllReports: all})
	}

	if opts.OnlyMultipleFailures {
		rows = keep(rows, func(r Row) bool { return len(r.Reports) > 1 })
	}
	if opts.OnlyConsistentFailures {
		rows = keep(rows, func(r Row) bool { return len(r.Reports) == len(opts.SelectedReports) })
	}
	if opts.MinFailureCount > 1 {
		rows = keep(rows, func(r Row) bool { return len(r.Reports) >= opts.MinFailureCount })
	}

	sortRows(rows, opts.SortBy, len(opts.SelectedReports))
	return rows
}

// SortFailingTestsByCount ranks every failing test by the number of reports
// it failed in, considering all reports selected.
func SortFailingTestsByCount(failingTests map[string][]string) []Row {
	seen := map[string]struct{}{}
	all := []string{}
	for _, reports := range failingTests {
		for _, r := range reports {
			if _, ok := seen[r]; !ok {
				seen[r] = struct{}{}
				all = append(all, r)
			}
		}
	}
	return FilterAndSort(failingTests, Options{SelectedReports: all, SortBy: SortByFailureCount})
}

func keep(rows []Row, fn func(Row) bool) []Row {
	kept := rows[:0]
	for _, r := range rows {
		if fn(r) {
			kept = append(kept, r)
		}
	}
	return kept
}

func sortRows(rows []Row, by SortKey, selected int) {
	switch by {
	case SortByFailureCount:
		sort.SliceStable(rows, func(i, j int) bool {
			return len(rows[i].Reports) > len(rows[j].Reports)
		})
	case SortByTestName:
		col := collate.New(language.English)
		sort.SliceStable(rows, func(i, j int) bool {
			return col.CompareString(rows[i].Test, rows[j].Test) < 0
		})
	case SortByFailureRate:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].FailureRate(selected) > rows[j].FailureRate(selected)
		})
	}
}
