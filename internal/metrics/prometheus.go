package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles the Prometheus collectors exposed by the analyzer server.
type Collectors struct {
	registry        *prometheus.Registry
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	FilesUploaded   prometheus.Counter
	FilesRejected   prometheus.Counter
	ReportsParsed   *prometheus.CounterVec
	CleanupRemoved  prometheus.Counter
}

// NewCollectors constructs a registry with the server collectors.
func NewCollectors() *Collectors {
	reg := prometheus.NewRegistry()

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_analyzer_requests_total",
		Help: "Total API requests by endpoint and status code",
	}, []string{"endpoint", "code"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_analyzer_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	uploaded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_analyzer_files_uploaded_total",
		Help: "Report files stored by the upload endpoint",
	})

	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_analyzer_files_rejected_total",
		Help: "Report files skipped by the upload endpoint",
	})

	parsed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_analyzer_reports_parsed_total",
		Help: "Reports parsed by result",
	}, []string{"result"})

	removed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_analyzer_cleanup_removed_total",
		Help: "Expired uploads removed by the cleanup",
	})

	reg.MustRegister(reqs, durs, uploaded, rejected, parsed, removed)

	return &Collectors{
		registry:        reg,
		Requests:        reqs,
		RequestDuration: durs,
		FilesUploaded:   uploaded,
		FilesRejected:   rejected,
		ReportsParsed:   parsed,
		CleanupRemoved:  removed,
	}
}

// Registry returns the underlying Prometheus registry.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// RecordRequest records counts and duration of an API call.
func (c *Collectors) RecordRequest(endpoint string, code int, duration time.Duration) {
	if c == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	c.Requests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	c.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordUpload records stored and skipped files of an upload.
func (c *Collectors) RecordUpload(stored, rejected int) {
	if c == nil {
		return
	}
	c.FilesUploaded.Add(float64(stored))
	c.FilesRejected.Add(float64(rejected))
}

// RecordParse records a parsed report, or a failure to parse one.
func (c *Collectors) RecordParse(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.ReportsParsed.WithLabelValues(result).Inc()
}

// RecordCleanup records removed uploads.
func (c *Collectors) RecordCleanup(removed int) {
	if c == nil {
		return
	}
	c.CleanupRemoved.Add(float64(removed))
}
