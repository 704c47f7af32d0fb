// Package client is the Go client of the report analyzer API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/analyzer"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/server"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/upload"
)

const networkErrorMessage = "Network error: Unable to connect to the server. Please check your internet connection and try again."

var (
	// ErrBusy is returned when a request is made while another one is running.
	ErrBusy            = errors.New("a request is already in progress")
	ErrEmptyQuery      = errors.New("Please enter a test name to search")
	ErrNoFilesUploaded = errors.New("No files were successfully uploaded")
)

// APIError is a failed call, carrying the message shown to the user.
type APIError struct {
	// StatusCode is zero when no response was received.
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

// Client calls the analyzer API. It runs a single request at a time.
type Client struct {
	baseURL     string
	http        *retryablehttp.Client
	maxFileSize int64
	busy        atomic.Bool
}

type Option func(*Client)

// WithRetryMax sets how many times a request failing on the transport or
// with a temporary server error is retried.
func WithRetryMax(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// WithMaxFileSize sets the size reported to the user when the server refuses
// an upload as too large.
func WithMaxFileSize(n int64) Option {
	return func(c *Client) { c.maxFileSize = n }
}

// New creates a client for the API served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryLogger := log.New()
	retryLogger.SetLevel(log.WarnLevel)
	retryClient.Logger = retryLogger
	retryClient.CheckRetry = checkRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        retryClient,
		maxFileSize: upload.DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkRetry does not retry internal server errors, which are processing
// failures answered by the analyzer. Responses are always handed back to the
// caller to read the error body.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || resp == nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if resp.StatusCode == http.StatusInternalServerError {
		return false, nil
	}
	retry, _ := retryablehttp.DefaultRetryPolicy(ctx, resp, nil)
	return retry, nil
}

func (c *Client) acquire() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (c *Client) release() { c.busy.Store(false) }

// Upload sends local report files to the server.
func (c *Client) Upload(ctx context.Context, files []upload.File) (*server.UploadResponse, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()
	return c.upload(ctx, files)
}

// Analyze compares reports already stored by the server.
func (c *Client) Analyze(ctx context.Context, paths []string) (*analyzer.Result, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()
	return c.analyze(ctx, paths)
}

// Search looks up tests by name in reports stored by the server.
func (c *Client) Search(ctx context.Context, testName string, paths []string) (*analyzer.SearchResult, error) {
	if testName == "" {
		return nil, ErrEmptyQuery
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	out := &analyzer.SearchResult{}
	req := server.SearchRequest{TestName: testName, ReportPaths: paths}
	if err := c.postJSON(ctx, "/search", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Comparison is the outcome of UploadAndAnalyze.
type Comparison struct {
	Batch    string           `json:"batch"`
	Uploaded []string         `json:"uploaded"`
	Result   *analyzer.Result `json:"result"`
}

// UploadAndAnalyze validates the selection, uploads its files and analyzes
// the stored copies.
func (c *Client) UploadAndAnalyze(ctx context.Context, sel *upload.Selection) (*Comparison, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	up, err := c.upload(ctx, sel.Files())
	if err != nil {
		return nil, err
	}
	if len(up.Files) == 0 {
		return nil, &APIError{Message: "Error: " + ErrNoFilesUploaded.Error(), Err: ErrNoFilesUploaded}
	}
	log.Debugf("uploaded %d files in batch %s", len(up.Files), up.Batch)

	res, err := c.analyze(ctx, up.Files)
	if err != nil {
		return nil, err
	}
	return &Comparison{Batch: up.Batch, Uploaded: up.Files, Result: res}, nil
}

func (c *Client) analyze(ctx context.Context, paths []string) (*analyzer.Result, error) {
	out := &analyzer.Result{}
	if err := c.postJSON(ctx, "/analyze", server.AnalyzeRequest{ReportPaths: paths}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) upload(ctx context.Context, files []upload.File) (*server.UploadResponse, error) {
	for _, f := range files {
		if f.Path == "" {
			return nil, fmt.Errorf("file %s has no local path", f.Name)
		}
	}

	boundary := multipart.NewWriter(io.Discard).Boundary()
	body := func() (io.Reader, error) {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(writeMultipart(pw, boundary, files))
		}()
		return pr, nil
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", retryablehttp.ReaderFunc(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)

	out := &server.UploadResponse{}
	if err := c.do(req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeMultipart(w io.Writer, boundary string, files []upload.File) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}
	for _, f := range files {
		if err := writePart(mw, f); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, f upload.File) error {
	fd, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer fd.Close()
	part, err := mw.CreateFormFile("files", f.Name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, fd)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *retryablehttp.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return &APIError{Message: networkErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	log.Debugf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func (c *Client) responseError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		apiErr.Message = fmt.Sprintf("File size too large. Maximum allowed size is %s.", upload.FormatFileSize(c.maxFileSize))
		return apiErr
	}

	body := server.ErrorResponse{}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = "Server Error: " + body.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("Error: Request failed with status code %d", resp.StatusCode)
	return apiErr
}
