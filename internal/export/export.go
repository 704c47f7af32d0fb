// Package export saves an analysis to a directory in several formats: raw
// data (JSON and YAML), a spreadsheet of the failing tests, a failure rate
// chart and a standalone HTML report.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/assets"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/analyzer"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/filter"
)

const (
	FileNameJSON   = "analysis.json"
	FileNameYAML   = "analysis.yaml"
	FileNameSheet  = "failing-tests.xlsx"
	FileNameChart  = "failure-rates.html"
	FileNameReport = "report.html"

	ReportTemplatePath = "data/templates/report/report.html"
)

var ErrNoTemplates = errors.New("report templates are not loaded")

// FailingTest is a row of the failing tests table.
type FailingTest struct {
	Test        string   `json:"test"`
	Failures    int      `json:"failures"`
	FailureRate float64  `json:"failureRate"`
	Reports     []string `json:"reports"`
}

// Document is the exported view of an analysis.
type Document struct {
	GeneratedAt  time.Time        `json:"generatedAt"`
	Reports      []string         `json:"reports"`
	Tests        []string         `json:"tests"`
	FailingTests []FailingTest    `json:"failingTests"`
	Analysis     *analyzer.Result `json:"analysis"`
}

// NewDocument builds the exported view of res, with the failing tests
// filtered and ranked by opts.
func NewDocument(res *analyzer.Result, opts filter.Options) *Document {
	doc := &Document{
		GeneratedAt:  time.Now().UTC(),
		Reports:      append([]string{}, opts.SelectedReports...),
		Tests:        make([]string, 0, len(res.TestStatusMap)),
		FailingTests: []FailingTest{},
		Analysis:     res,
	}
	for name := range res.TestStatusMap {
		doc.Tests = append(doc.Tests, name)
	}
	sort.Strings(doc.Tests)

	for _, row := range filter.FilterAndSort(res.FailingTests, opts) {
		doc.FailingTests = append(doc.FailingTests, FailingTest{
			Test:        row.Test,
			Failures:    len(row.Reports),
			FailureRate: row.FailureRate(len(opts.SelectedReports)),
			Reports:     row.Reports,
		})
	}
	return doc
}

// Status returns the status of test in report, or an empty string when the
// test did not run there.
func (d *Document) Status(test, report string) string {
	return string(d.Analysis.TestStatusMap[test][report])
}

// Exporter writes documents to disk.
type Exporter struct {
	// Templates holds ReportTemplatePath. Defaults to the embedded assets.
	Templates fs.FS
}

func New() *Exporter {
	e := &Exporter{}
	if data := assets.GetData(); data != nil {
		e.Templates = data
	}
	return e
}

// Save writes every export of doc into dir, returning the files created.
func (e *Exporter) Save(dir string, doc *Document) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create directory %s: %w", dir, err)
	}

	writers := []struct {
		name  string
		write func(path string) error
	}{
		{FileNameJSON, func(p string) error { return writeFile(p, func(f *os.File) error { return WriteJSON(f, doc) }) }},
		{FileNameYAML, func(p string) error { return writeFile(p, func(f *os.File) error { return WriteYAML(f, doc) }) }},
		{FileNameSheet, func(p string) error { return SaveSheet(p, doc) }},
		{FileNameChart, func(p string) error { return writeFile(p, func(f *os.File) error { return WriteChart(f, doc) }) }},
		{FileNameReport, func(p string) error {
			return writeFile(p, func(f *os.File) error { return e.WriteReport(f, doc) })
		}},
	}

	files := []string{}
	for _, w := range writers {
		path := filepath.Join(dir, w.name)
		log.Debugf("Export.Save(): writing %s", path)
		if err := w.write(path); err != nil {
			return files, fmt.Errorf("unable to save %s: %w", path, err)
		}
		files = append(files, path)
	}
	return files, nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
