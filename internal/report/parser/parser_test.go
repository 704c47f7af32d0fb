package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	report, err := ParseFile("testdata/extent-report.html")
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "extent-report.html", report.Name)
	assert.Equal(t, "testdata/extent-report.html", report.Path)
	require.Len(t, report.Tests, 4)

	// Assert the pass test case
	assert.Equal(t, "[login] valid credentials", report.Tests[0].Name)
	assert.Equal(t, TestStatusPass, report.Tests[0].Status)
	assert.False(t, report.Tests[0].Failed())

	// Assert the failed test case, status is lower-cased and the name trimmed
	assert.Equal(t, "[checkout] pay with card", report.Tests[1].Name)
	assert.Equal(t, TestStatusFail, report.Tests[1].Status)
	assert.True(t, report.Tests[1].Failed())
	assert.Equal(t, "java.lang.AssertionError: expected [200] but found [500]", report.Tests[1].Details)

	// Assert the skipped test case
	assert.Equal(t, "[search] by keyword", report.Tests[2].Name)
	assert.Equal(t, TestStatusSkip, report.Tests[2].Status)

	// Missing status attribute results in an empty status
	assert.Equal(t, "no status attribute", report.Tests[3].Name)
	assert.Equal(t, TestStatus(""), report.Tests[3].Status)
}

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want []TestResult
	}{
		{
			name: "empty document",
			doc:  "",
			want: []TestResult{},
		},
		{
			name: "not a report",
			doc:  "<html><body><p class=\"name\">orphan</p></body></html>",
			want: []TestResult{},
		},
		{
			name: "multiple classes and nested name",
			doc: `<ul><li class="test-item collapsed" status="Pass">
				<div><div><p class="name bold">deep name</p></div></div></li></ul>`,
			want: []TestResult{{Name: "deep name", Status: TestStatusPass}},
		},
		{
			name: "first name tag wins",
			doc: `<li class="test-item" status="fail"><p class="name">first</p>
				<p class="name">second</p></li>`,
			want: []TestResult{{Name: "first", Status: TestStatusFail, Details: "second"}},
		},
		{
			name: "unclosed markup is tolerated",
			doc:  `<li class="test-item" status="pass"><p class="name">broken<li class="test-item" status="fail"><p class="name">next`,
			want: []TestResult{
				{Name: "broken", Status: TestStatusPass},
				{Name: "next", Status: TestStatusFail},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tc.doc))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReportName(t *testing.T) {
	assert.Equal(t, "a.html", ReportName("uploads/a.html"))
	assert.Equal(t, "b.html", ReportName("s3://bucket/prefix/b.html"))
	assert.Equal(t, "c.html", ReportName("c.html"))
}
