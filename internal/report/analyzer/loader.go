package analyzer

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/metrics"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/parser"
)

// Source opens stored reports by path.
type Source interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// FileSource reads reports from the local file system.
type FileSource struct{}

func (FileSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// ProcessingError reports the path that could not be read or parsed.
type ProcessingError struct {
	Path string
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("Error processing %s: %v", e.Path, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Loader reads and parses reports concurrently.
type Loader struct {
	Source      Source
	Collectors  *metrics.Collectors
	Concurrency int
}

// NewLoader creates a loader reading from src.
func NewLoader(src Source, collectors *metrics.Collectors) *Loader {
	return &Loader{
		Source:      src,
		Collectors:  collectors,
		Concurrency: runtime.GOMAXPROCS(0),
	}
}

// Load parses the reports in paths, returning them in the same order. When
// more than one path fails, the error of the first one in the list is returned.
func (l *Loader) Load(ctx context.Context, paths []string) ([]*parser.Report, error) {
	reports := make([]*parser.Report, len(paths))
	errs := make([]error, len(paths))

	// every path is processed; the first error in path order wins.
	eg := &errgroup.Group{}
	if l.Concurrency > 0 {
		eg.SetLimit(l.Concurrency)
	}
	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			report, err := l.loadOne(ctx, path)
			l.Collectors.RecordParse(err)
			if err != nil {
				errs[i] = &ProcessingError{Path: path, Err: err}
				return errs[i]
			}
			reports[i] = report
			return nil
		})
	}
	waitErr := eg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return reports, nil
}

func (l *Loader) loadOne(ctx context.Context, path string) (*parser.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := l.Source.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return parser.NewReport(path, rc)
}

// Analyze loads the reports in paths and consolidates them.
func (l *Loader) Analyze(ctx context.Context, paths []string) (*Result, error) {
	if len(paths) == 0 {
		return nil, ErrNoReports
	}
	timers := metrics.NewTimers()
	timers.Set("load")
	reports, err := l.Load(ctx, paths)
	if err != nil {
		return nil, err
	}
	timers.Set("aggregate")
	res, err := Analyze(reports)
	timers.Set("done")
	log.WithFields(log.Fields{
		"reports":   len(paths),
		"load":      timers.Seconds("load"),
		"aggregate": timers.Seconds("aggregate"),
	}).Debug("analysis finished")
	return res, err
}

// Search loads the reports in paths and looks up tests matching query.
func (l *Loader) Search(ctx context.Context, query string, paths []string) (*SearchResult, error) {
	if query == "" || len(paths) == 0 {
		return nil, ErrInvalidSearch
	}
	reports, err := l.Load(ctx, paths)
	if err != nil {
		return nil, err
	}
	return Search(query, reports)
}
