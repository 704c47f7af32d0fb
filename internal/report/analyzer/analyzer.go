// Package analyzer consolidates the test results of many reports, finding the
// tests failing across them and ranking them by failure count and rate.
package analyzer

import (
	"errors"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/errorcounter"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/parser"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/tags"
)

var (
	ErrNoReports     = errors.New("no report paths provided")
	ErrInvalidSearch = errors.New("test name and report paths are required")
)

// TestStat is the failure statistic of a test across reports.
type TestStat struct {
	Name           string  `json:"name"`
	FailureCount   int     `json:"failureCount"`
	ExecutionCount int     `json:"executionCount"`
	FailureRate    float64 `json:"failureRate"`
}

// TestStats holds the same statistics in two rankings.
type TestStats struct {
	ByFailureCount []TestStat `json:"byFailureCount"`
	ByFailureRate  []TestStat `json:"byFailureRate"`
}

// RateSummary describes the distribution of the failure rates of all tests.
type RateSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Summary aggregates counters of an analysis.
type Summary struct {
	Reports      int               `json:"reports"`
	Tests        int               `json:"tests"`
	FailingTests int               `json:"failingTests"`
	FailureRate  RateSummary       `json:"failureRate"`
	Tags         []tags.SortedData `json:"tags"`
}

// TagRank renders the tags of the failing tests as
// '[total=N] [tag=n (p%)] ...'.
func (s *Summary) TagRank() string {
	return tags.ShowRanked(s.FailingTests, s.Tags)
}

// Result is the consolidated analysis of a set of reports.
type Result struct {
	// FailingTests maps a test name to the reports where it failed, in report order.
	FailingTests map[string][]string `json:"failingTests"`

	// TestStatusMap maps a test name to its status in each report.
	TestStatusMap map[string]map[string]parser.TestStatus `json:"testStatusMap"`

	TestStats TestStats `json:"testStats"`
	Summary   *Summary  `json:"summary,omitempty"`

	// ErrorCounters counts error signatures found in the details of failures.
	ErrorCounters map[string]errorcounter.Counter `json:"errorCounters,omitempty"`
}

// uniqueReports indexes reports by name. A name seen twice keeps its first
// position with the content of the last report.
func uniqueReports(reports []*parser.Report) []*parser.Report {
	index := make(map[string]int, len(reports))
	unique := make([]*parser.Report, 0, len(reports))
	for _, r := range reports {
		if r == nil {
			continue
		}
		if i, ok := index[r.Name]; ok {
			unique[i] = r
			continue
		}
		index[r.Name] = len(unique)
		unique = append(unique, r)
	}
	return unique
}

// Analyze consolidates the reports. Tests are identified by name, and each
// occurrence counts as one execution.
func Analyze(reports []*parser.Report) (*Result, error) {
	reports = uniqueReports(reports)
	if len(reports) == 0 {
		return nil, ErrNoReports
	}

	res := &Result{
		FailingTests:  make(map[string][]string),
		TestStatusMap: make(map[string]map[string]parser.TestStatus),
		ErrorCounters: make(map[string]errorcounter.Counter),
	}

	order := []string{}
	failures := make(map[string]int)
	executions := make(map[string]int)

	for _, report := range reports {
		for i := range report.Tests {
			test := &report.Tests[i]
			if _, ok := executions[test.Name]; !ok {
				order = append(order, test.Name)
			}
			executions[test.Name] += 1

			if _, ok := res.TestStatusMap[test.Name]; !ok {
				res.TestStatusMap[test.Name] = make(map[string]parser.TestStatus)
			}
			res.TestStatusMap[test.Name][report.Name] = test.Status

			if !test.Failed() {
				continue
			}
			res.FailingTests[test.Name] = append(res.FailingTests[test.Name], report.Name)
			failures[test.Name] += 1

			if counter := errorcounter.New(&test.Details, errorcounter.CommonErrorPatterns); counter != nil {
				existing := res.ErrorCounters[test.Name]
				res.ErrorCounters[test.Name] = *errorcounter.Merge(&existing, &counter)
			}
		}
	}

	testStats := make([]TestStat, 0, len(order))
	for _, name := range order {
		testStats = append(testStats, newTestStat(name, failures[name], executions[name]))
	}
	res.TestStats = TestStats{
		ByFailureCount: sortByFailureCount(testStats),
		ByFailureRate:  sortByFailureRate(testStats),
	}
	res.Summary = summarize(reports, testStats, order, failures)

	return res, nil
}

func newTestStat(name string, failures, executions int) TestStat {
	rate := 0.0
	if executions > 0 {
		rate = (float64(failures) / float64(executions)) * 100
	}
	return TestStat{
		Name:           name,
		FailureCount:   failures,
		ExecutionCount: executions,
		FailureRate:    round2(rate),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// sortByFailureCount returns a copy ranked by failure count, keeping the
// input order on ties.
func sortByFailureCount(in []TestStat) []TestStat {
	out := append([]TestStat{}, in...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FailureCount > out[j].FailureCount
	})
	return out
}

// sortByFailureRate returns a copy ranked by failure rate, keeping the
// input order on ties.
func sortByFailureRate(in []TestStat) []TestStat {
	out := append([]TestStat{}, in...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FailureRate > out[j].FailureRate
	})
	return out
}

func summarize(reports []*parser.Report, testStats []TestStat, order []string, failures map[string]int) *Summary {
	s := &Summary{
		Reports: len(reports),
		Tests:   len(testStats),
	}
	failing := []string{}
	for _, name := range order {
		if failures[name] > 0 {
			failing = append(failing, name)
		}
	}
	s.FailingTests = len(failing)
	s.Tags = tags.NewTestTags(failing).Ranked()

	rates := make(stats.Float64Data, 0, len(testStats))
	for _, ts := range testStats {
		rates = append(rates, ts.FailureRate)
	}
	if rates.Len() == 0 {
		return s
	}
	// errors are only returned for empty inputs, checked above.
	mean, _ := stats.Mean(rates)
	median, _ := stats.Median(rates)
	p90, _ := stats.Percentile(rates, 90)
	max, _ := stats.Max(rates)
	s.FailureRate = RateSummary{
		Mean:   round2(mean),
		Median: round2(median),
		P90:    round2(p90),
		Max:    round2(max),
	}
	return s
}
