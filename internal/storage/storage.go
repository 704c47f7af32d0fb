// Package storage keeps the uploaded report files, either in a local
// directory or in an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/config"
)

var (
	ErrInvalidName  = errors.New("invalid file name")
	ErrOutsideStore = errors.New("path outside of the storage")
)

// Object describes a stored report.
type Object struct {
	Path    string
	Name    string
	ModTime time.Time
	Size    int64
}

// Store is implemented by the storage backends. Paths returned by Save are
// accepted by Open and Remove.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context) ([]Object, error)
	Remove(ctx context.Context, path string) error
}

// New creates the backend selected in the configuration. A local backend
// without directory stores under DefaultDir.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendLocal, "":
		return NewLocal(strings.TrimSpace(cfg.Dir))
	case config.BackendS3:
		return NewS3(cfg.Bucket, cfg.Region, cfg.Prefix)
	}
	return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
}

// DefaultDir is the upload directory under the user cache directory.
func DefaultDir() string {
	return filepath.Join(xdg.CacheHome, "report-analyzer", "uploads")
}
