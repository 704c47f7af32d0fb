package cmdutil

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/export"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/analyzer"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/parser"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/upload"
)

func newTable(w io.Writer, title string) table.Writer {
	tb := table.NewWriter()
	tb.SetOutputMirror(w)
	tb.SetStyle(table.StyleLight)
	tb.SetTitle(title)
	return tb
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// PrintSelection shows the files picked for a comparison.
func PrintSelection(w io.Writer, sel *upload.Selection) {
	tb := newTable(w, fmt.Sprintf("Selected files (%d, %s)", len(sel.Names()), upload.FormatFileSize(sel.TotalSize())))
	tb.AppendHeader(table.Row{"#", "File", "Size"})
	for i, f := range sel.Files() {
		tb.AppendRow(table.Row{i + 1, f.Name, upload.FormatFileSize(f.Size)})
	}
	tb.Render()
}

// PrintComparison shows the failing tests of doc, then the tests ranked by
// failure rate.
func PrintComparison(w io.Writer, doc *export.Document, topStats int) {
	if s := doc.Analysis.Summary; s != nil {
		fmt.Fprintf(w, "\n> Analyzed %d reports: %d tests, %d failing (failure rate mean %s, median %s, p90 %s)\n\n",
			s.Reports, s.Tests, s.FailingTests, percent(s.FailureRate.Mean), percent(s.FailureRate.Median), percent(s.FailureRate.P90))
		fmt.Fprintf(w, "> Failing tests by tag: %s\n\n", s.TagRank())
	}

	tb := newTable(w, fmt.Sprintf("Failing tests in %d selected reports", len(doc.Reports)))
	tb.AppendHeader(table.Row{"Test", "Failures", "Failure Rate", "Failed In"})
	for _, ft := range doc.FailingTests {
		tb.AppendRow(table.Row{ft.Test, ft.Failures, percent(ft.FailureRate), strings.Join(ft.Reports, ", ")})
	}
	if len(doc.FailingTests) == 0 {
		tb.AppendRow(table.Row{"No failing tests found", "", "", ""})
	}
	tb.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	tb.Render()

	PrintStats(w, "Tests by failure rate", doc.Analysis.TestStats.ByFailureRate, topStats)
}

// PrintStats shows at most limit statistics, all of them when limit is not
// positive.
func PrintStats(w io.Writer, title string, stats []analyzer.TestStat, limit int) {
	tb := newTable(w, title)
	tb.AppendHeader(table.Row{"Test", "Failures", "Executions", "Failure Rate"})
	for i, st := range stats {
		if limit > 0 && i == limit {
			break
		}
		tb.AppendRow(table.Row{st.Name, st.FailureCount, st.ExecutionCount, percent(st.FailureRate)})
	}
	tb.Render()
}

// PrintStatusMatrix shows the status of each test in each report, "-" when
// the test did not run in the report.
func PrintStatusMatrix(w io.Writer, statuses map[string]map[string]parser.TestStatus, tests, reports []string) {
	tb := newTable(w, "Test status by report")
	header := table.Row{"Test"}
	for _, r := range reports {
		header = append(header, r)
	}
	tb.AppendHeader(header)
	for _, test := range tests {
		row := table.Row{test}
		for _, r := range reports {
			status := string(statuses[test][r])
			if status == "" {
				status = "-"
			}
			row = append(row, status)
		}
		tb.AppendRow(row)
	}
	tb.Render()
}
