package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/config"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/export"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/analyzer"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/server"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/storage"
)

func execute(ctx context.Context, args ...string) (string, error) {
	root := NewRootCmd(viper.New())
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--log-file="))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// writeReport writes an HTML report with the given name/status pairs.
func writeReport(t *testing.T, dir, name string, statuses ...string) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("<html><body><ul>")
	for i := 0; i+1 < len(statuses); i += 2 {
		sb.WriteString(fmt.Sprintf(`<li class="test-item" status="%s"><p class="name">%s</p></li>`, statuses[i+1], statuses[i]))
	}
	sb.WriteString("</ul></body></html>")
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func writeRuns(t *testing.T) (string, string) {
	dir := t.TempDir()
	r1 := writeReport(t, dir, "run 1.html", "login", "fail", "cart", "pass", "search", "fail")
	r2 := writeReport(t, dir, "run 2.html", "login", "fail", "cart", "fail", "search", "pass")
	return r1, r2
}

func decodeDocument(t *testing.T, out string) *export.Document {
	t.Helper()
	doc := &export.Document{}
	require.NoError(t, json.Unmarshal([]byte(out), doc))
	return doc
}

func failingTests(doc *export.Document) []string {
	tests := []string{}
	for _, ft := range doc.FailingTests {
		tests = append(tests, ft.Test)
	}
	return tests
}

func TestCompareLocal(t *testing.T) {
	r1, r2 := writeRuns(t)

	out, err := execute(context.Background(), "compare", "--local", "--json", r1, r2)
	require.NoError(t, err)

	doc := decodeDocument(t, out)
	assert.Equal(t, []string{"run 1.html", "run 2.html"}, doc.Reports)
	assert.Equal(t, []string{"cart", "login", "search"}, doc.Tests)
	require.Len(t, doc.FailingTests, 3)
	assert.Equal(t, "login", doc.FailingTests[0].Test)
	assert.Equal(t, 2, doc.FailingTests[0].Failures)
	assert.Equal(t, 100.0, doc.FailingTests[0].FailureRate)
}

func TestCompareFilters(t *testing.T) {
	r1, r2 := writeRuns(t)

	out, err := execute(context.Background(), "compare", "--local", "--json", "--only-consistent", r1, r2)
	require.NoError(t, err)
	assert.Equal(t, []string{"login"}, failingTests(decodeDocument(t, out)))

	out, err = execute(context.Background(), "compare", "--local", "--json", "--select", "run 2.html", "--sort-by", "testName", r1, r2)
	require.NoError(t, err)
	assert.Equal(t, []string{"cart", "login"}, failingTests(decodeDocument(t, out)))
}

func TestCompareTable(t *testing.T) {
	r1, r2 := writeRuns(t)

	out, err := execute(context.Background(), "compare", "--local", r1, r2)
	require.NoError(t, err)
	assert.Contains(t, out, "Selected files (2,")
	assert.Contains(t, out, "Failing tests in 2 selected reports")
	assert.Contains(t, out, "run 1.html, run 2.html")
}

func TestCompareYAML(t *testing.T) {
	r1, r2 := writeRuns(t)

	out, err := execute(context.Background(), "compare", "--local", "--yaml", r1, r2)
	require.NoError(t, err)
	assert.Contains(t, out, "failingTests:")
	assert.Contains(t, out, "- test: login")
}

func TestCompareValidation(t *testing.T) {
	r1, r2 := writeRuns(t)
	r3 := writeReport(t, filepath.Dir(r1), "run 3.html", "login", "pass")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "single report",
			args: []string{"compare", "--local", r1},
			want: "Please select at least 2 files to compare",
		},
		{
			name: "too many reports",
			args: []string{"compare", "--local", "--num-reports", "2", r1, r2, r3},
			want: "You can only select up to 2 files. Please remove some files first.",
		},
		{
			name: "unknown selected report",
			args: []string{"compare", "--local", "--select", "other.html", r1, r2},
			want: "Report other.html is not part of the selection.",
		},
		{
			name: "invalid sort key",
			args: []string{"compare", "--local", "--sort-by", "date", r1, r2},
			want: "invalid sort key",
		},
		{
			name: "missing file",
			args: []string{"compare", "--local", r1, filepath.Join(t.TempDir(), "missing.html")},
			want: "missing.html",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(context.Background(), tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCompareRemote(t *testing.T) {
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	ts := httptest.NewServer(server.New(cfg, store).Handler())
	defer ts.Close()

	r1, r2 := writeRuns(t)
	out, err := execute(context.Background(), "compare", "--api-url", ts.URL, "--json", r1, r2)
	require.NoError(t, err)

	doc := decodeDocument(t, out)
	assert.Equal(t, []string{"run_1.html", "run_2.html"}, doc.Reports)
	require.NotEmpty(t, doc.FailingTests)
	assert.Equal(t, "login", doc.FailingTests[0].Test)
	assert.Equal(t, []string{"run_1.html", "run_2.html"}, doc.FailingTests[0].Reports)
}

func TestCompareRemoteUnavailable(t *testing.T) {
	t.Setenv("TRA_CLIENT_RETRY_MAX", "0")
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	r1, r2 := writeRuns(t)
	_, err := execute(context.Background(), "compare", "--api-url", url, r1, r2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Network error")
}

func TestSearchLocal(t *testing.T) {
	r1, r2 := writeRuns(t)

	out, err := execute(context.Background(), "search", "LOG", "--local", "--json", "--report", r1, "--report", r2)
	require.NoError(t, err)
	res := &analyzer.SearchResult{}
	require.NoError(t, json.Unmarshal([]byte(out), res))
	require.Len(t, res.Stats, 1)
	assert.Equal(t, "login", res.Stats[0].Name)
	assert.Equal(t, 2, res.Stats[0].FailureCount)

	out, err = execute(context.Background(), "search", "ar", "--local", "--report", r1+","+r2)
	require.NoError(t, err)
	assert.Contains(t, out, "Matching tests by failure rate")
	assert.Contains(t, out, "Test status by report")
	assert.Contains(t, out, "cart")
	assert.Contains(t, out, "search")
}

func TestSearchRequiresReports(t *testing.T) {
	_, err := execute(context.Background(), "search", "login", "--local")
	assert.ErrorIs(t, err, analyzer.ErrInvalidSearch)
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	old := writeReport(t, dir, "old.html", "login", "pass")
	recent := writeReport(t, dir, "recent.html", "login", "pass")
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	out, err := execute(context.Background(), "cleanup", "--upload-dir", dir, "--max-age", "1h", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "old.html")
	assert.NotContains(t, out, "recent.html")
	assert.FileExists(t, old)

	archive := t.TempDir()
	_, err = execute(context.Background(), "cleanup", "--upload-dir", dir, "--max-age", "1h", "--archive-to", archive)
	require.NoError(t, err)
	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)

	bundles, err := filepath.Glob(filepath.Join(archive, "uploads-*.tar.xz"))
	require.NoError(t, err)
	assert.Len(t, bundles, 1)
}

func TestServeStopsWithContext(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := execute(ctx, "serve", "--addr", "127.0.0.1:0", "--upload-dir", dir, "--cleanup=false")
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestConfigFile(t *testing.T) {
	r1, r2 := writeRuns(t)
	path := filepath.Join(t.TempDir(), "report-analyzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  max_file_size: 10B\n"), 0o644))

	// both reports are above the configured size and get dropped
	_, err := execute(context.Background(), "compare", "--local", "--config", path, r1, r2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please select files first")

	_, err = execute(context.Background(), "compare", "--local", "--config", filepath.Join(t.TempDir(), "missing.yaml"), r1, r2)
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(context.Background(), "version", "--log-level", "loud")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Report Analyzer: unknown+unknown")
}
