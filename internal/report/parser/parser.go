// Package parser reads HTML test execution reports (ExtentReports layout),
// extracting the name and status of every test item.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
	TestStatusSkip TestStatus = "skip"
)

const (
	testItemClass = "test-item"
	testNameClass = "name"
	statusAttr    = "status"
)

// TestResult is a single test entry found in a report.
type TestResult struct {
	Name   string     `json:"name"`
	Status TestStatus `json:"status"`

	// Details is the text of the test item without the name, used to count
	// error signatures of failures.
	Details string `json:"-"`
}

// Failed returns true when the test status is exactly "fail".
func (tr *TestResult) Failed() bool {
	return tr.Status == TestStatusFail
}

// Report is a parsed report file.
type Report struct {
	// Name is the base name of the report path, used as report identifier.
	Name  string
	Path  string
	Tests []TestResult
}

// Parse reads an HTML document and returns the test results in document order.
func Parse(r io.Reader) ([]TestResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML data: %w", err)
	}
	results := []TestResult{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "li" && hasClass(n, testItemClass) {
			if tr, ok := extractTestResult(n); ok {
				results = append(results, tr)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

// NewReport reads and parses the report from r, naming it after path.
func NewReport(path string, r io.Reader) (*Report, error) {
	tests, err := Parse(r)
	if err != nil {
		return nil, err
	}
	log.Debugf("Parsed report %s: %d tests", path, len(tests))
	return &Report{
		Name:  ReportName(path),
		Path:  path,
		Tests: tests,
	}, nil
}

// ParseFile opens and parses a report from the local file system.
func ParseFile(path string) (*Report, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading report file: %w", err)
	}
	defer fd.Close()
	return NewReport(path, fd)
}

// ReportName returns the identifier of a report path: its base name. It
// handles both file system paths and object URIs (s3://bucket/key).
func ReportName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return filepath.Base(path)
}

func extractTestResult(item *html.Node) (TestResult, bool) {
	nameTag := findFirst(item, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "p" && hasClass(n, testNameClass)
	})
	if nameTag == nil {
		return TestResult{}, false
	}
	tr := TestResult{
		Name:   strings.TrimSpace(extractText(nameTag)),
		Status: TestStatus(strings.ToLower(getAttr(item, statusAttr))),
	}
	tr.Details = collapseSpaces(joinText(item, nameTag, " "))
	return tr, true
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	return joinText(n, nil, "")
}

// joinText concatenates the text nodes below n with sep, ignoring the
// subtree rooted at skip.
func joinText(n *html.Node, skip *html.Node, sep string) string {
	parts := []string{}
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node == skip {
			return
		}
		switch {
		case node.Type == html.TextNode:
			parts = append(parts, node.Data)
		case node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style"):
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
