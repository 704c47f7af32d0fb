package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/config"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/analyzer"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/parser"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Addr:           "127.0.0.1:0",
			AllowedOrigins: []string{"*"},
			MetricsEnabled: true,
		},
		Limits: config.LimitsConfig{
			MaxFileSize:    1024 * 1024,
			MaxUploadBytes: 1024 * 1024,
			MaxReports:     10,
		},
		Cleanup: config.CleanupConfig{MaxAge: 24 * time.Hour, Interval: time.Hour},
	}
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) (*httptest.Server, string) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	require.NoError(t, err)

	s := New(cfg, store)
	s.newBatchID = func() string { return "batch-1" }
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, dir
}

func reportHTML(statuses ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><body><ul>")
	for i := 0; i+1 < len(statuses); i += 2 {
		sb.WriteString(fmt.Sprintf(`<li class="test-item" status="%s"><p class="name">%s</p></li>`, statuses[i+1], statuses[i]))
	}
	sb.WriteString("</ul></body></html>")
	return sb.String()
}

type part struct {
	field, name, body string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func uploadReports(t *testing.T, ts *httptest.Server, parts ...part) UploadResponse {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out UploadResponse
	decode(t, resp, &out)
	return out
}

func TestUpload(t *testing.T) {
	ts, dir := newTestServer(t, nil)

	out := uploadReports(t, ts,
		part{"files", "a.html", reportHTML("login", "pass")},
		part{"files", "notes.txt", "not a report"},
		part{"files", "run 1.HTML", reportHTML("login", "fail")},
	)
	assert.Equal(t, "2 files uploaded successfully", out.Message)
	assert.Equal(t, []string{filepath.Join(dir, "a.html"), filepath.Join(dir, "run_1.HTML")}, out.Files)
	assert.Equal(t, "batch-1", out.Batch)
	assert.FileExists(t, filepath.Join(dir, "run_1.HTML"))
	assert.NoFileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestUploadNoFiles(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	body, contentType := multipartBody(t, part{"other", "a.html", "x"})
	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out ErrorResponse
	decode(t, resp, &out)
	assert.Equal(t, "No files provided", out.Error)

	resp = postJSON(t, ts.URL+"/upload", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadTooLarge(t *testing.T) {
	ts, _ := newTestServer(t, func(cfg *config.Config) { cfg.Limits.MaxUploadBytes = 512 })

	body, contentType := multipartBody(t, part{"files", "big.html", strings.Repeat("x", 4096)})
	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	var out ErrorResponse
	decode(t, resp, &out)
	assert.Equal(t, "Request too large. Maximum allowed size is 512 Bytes.", out.Error)
}

func TestAnalyze(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	up := uploadReports(t, ts,
		part{"files", "r1.html", reportHTML("login", "fail", "search", "pass")},
		part{"files", "r2.html", reportHTML("login", "FAIL", "search", "fail")},
		part{"files", "r3.html", reportHTML("login", "pass")},
	)

	resp := postJSON(t, ts.URL+"/analyze", AnalyzeRequest{ReportPaths: up.Files})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res analyzer.Result
	decode(t, resp, &res)

	assert.Equal(t, map[string][]string{
		"login":  {"r1.html", "r2.html"},
		"search": {"r2.html"},
	}, res.FailingTests)
	assert.Equal(t, map[string]parser.TestStatus{
		"r1.html": parser.TestStatusFail,
		"r2.html": parser.TestStatusFail,
		"r3.html": parser.TestStatusPass,
	}, res.TestStatusMap["login"])
	require.Len(t, res.TestStats.ByFailureCount, 2)
	assert.Equal(t, analyzer.TestStat{Name: "login", FailureCount: 2, ExecutionCount: 3, FailureRate: 66.67}, res.TestStats.ByFailureCount[0])
	assert.Equal(t, analyzer.TestStat{Name: "search", FailureCount: 1, ExecutionCount: 2, FailureRate: 50}, res.TestStats.ByFailureCount[1])
}

func TestAnalyzeErrors(t *testing.T) {
	ts, dir := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/analyze", AnalyzeRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out ErrorResponse
	decode(t, resp, &out)
	assert.Equal(t, "No report paths provided", out.Error)

	missing := filepath.Join(dir, "missing.html")
	resp = postJSON(t, ts.URL+"/analyze", AnalyzeRequest{ReportPaths: []string{missing}})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	decode(t, resp, &out)
	assert.True(t, strings.HasPrefix(out.Error, "Error processing "+missing+": "), out.Error)

	resp = postJSON(t, ts.URL+"/analyze", AnalyzeRequest{ReportPaths: []string{"/etc/passwd"}})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	decode(t, resp, &out)
	assert.Contains(t, out.Error, storage.ErrOutsideStore.Error())

	raw, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestJSONBodyTooLarge(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	body := `{"testName":"login","reportPaths":["` + strings.Repeat("x", maxJSONBody) + `"]}`

	for _, endpoint := range []string{"/analyze", "/search"} {
		t.Run(endpoint, func(t *testing.T) {
			resp, err := http.Post(ts.URL+endpoint, "application/json", strings.NewReader(body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
			var out ErrorResponse
			decode(t, resp, &out)
			assert.Equal(t, "Request too large. Maximum allowed size is 1 MB.", out.Error)
		})
	}
}

func TestSearch(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	up := uploadReports(t, ts,
		part{"files", "r1.html", reportHTML("Login page", "fail", "search", "pass")},
		part{"files", "r2.html", reportHTML("Login page", "pass", "logout", "skip")},
	)

	resp := postJSON(t, ts.URL+"/search", SearchRequest{TestName: "LOG", ReportPaths: up.Files})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res analyzer.SearchResult
	decode(t, resp, &res)

	assert.Equal(t, map[string]map[string]parser.TestStatus{
		"Login page": {"r1.html": parser.TestStatusFail, "r2.html": parser.TestStatusPass},
		"logout":     {"r2.html": parser.TestStatusSkip},
	}, res.Results)
	require.Len(t, res.Stats, 2)
	assert.Equal(t, "Login page", res.Stats[0].Name)
	assert.Equal(t, float64(50), res.Stats[0].FailureRate)

	resp = postJSON(t, ts.URL+"/search", SearchRequest{TestName: "", ReportPaths: up.Files})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out ErrorResponse
	decode(t, resp, &out)
	assert.Equal(t, "Test name and report paths are required", out.Error)
}

func TestCORS(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/analyze", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")

	restricted, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000/"}
	})
	for origin, want := range map[string]string{
		"http://localhost:3000": "http://localhost:3000",
		"http://evil.example":   "",
	} {
		req, err := http.NewRequest(http.MethodGet, restricted.URL+"/health", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.Header.Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestHealthMetricsAndRouting(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	decode(t, resp, &health)
	assert.Equal(t, "ok", health["status"])

	resp = postJSON(t, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	missing, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	metricsResp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `report_analyzer_requests_total{code="200",endpoint="/health"} 1`)
	assert.Contains(t, string(body), `report_analyzer_requests_total{code="404",endpoint="other"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	ts, _ := newTestServer(t, func(cfg *config.Config) { cfg.Server.MetricsEnabled = false })
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
