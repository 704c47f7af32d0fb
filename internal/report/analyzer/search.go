package analyzer

import (
	"strings"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/parser"
)

// SearchResult holds the tests matching a search query.
type SearchResult struct {
	// Results maps a matched test name to its status in each report.
	Results map[string]map[string]parser.TestStatus `json:"results"`

	// Stats is the failure statistic of the matched tests, ranked by failure rate.
	Stats []TestStat `json:"stats"`
}

// Search looks up tests whose name contains query, ignoring case.
func Search(query string, reports []*parser.Report) (*SearchResult, error) {
	reports = uniqueReports(reports)
	query = strings.ToLower(query)
	if query == "" || len(reports) == 0 {
		return nil, ErrInvalidSearch
	}

	res := &SearchResult{
		Results: make(map[string]map[string]parser.TestStatus),
		Stats:   []TestStat{},
	}
	order := []string{}
	failures := make(map[string]int)
	executions := make(map[string]int)

	for _, report := range reports {
		for _, test := range report.Tests {
			if !strings.Contains(strings.ToLower(test.Name), query) {
				continue
			}
			if _, ok := res.Results[test.Name]; !ok {
				res.Results[test.Name] = make(map[string]parser.TestStatus)
				order = append(order, test.Name)
			}
			res.Results[test.Name][report.Name] = test.Status
			executions[test.Name] += 1
			if test.Failed() {
				failures[test.Name] += 1
			}
		}
	}

	for _, name := range order {
		res.Stats = append(res.Stats, newTestStat(name, failures[name], executions[name]))
	}
	res.Stats = sortByFailureRate(res.Stats)
	return res, nil
}
