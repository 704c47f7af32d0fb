package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/upload"
)

// Local stores reports in a flat directory. A file saved with a name already
// present replaces it.
type Local struct {
	dir string
}

// NewLocal creates dir when missing.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create upload directory %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Dir() string { return l.dir }

func (l *Local) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	secure := upload.SecureFilename(name)
	if secure == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(l.dir, secure)

	fd, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("unable to create %s: %w", path, err)
	}
	if _, err := io.Copy(fd, r); err != nil {
		fd.Close()
		os.Remove(path)
		return "", fmt.Errorf("unable to write %s: %w", path, err)
	}
	if err := fd.Close(); err != nil {
		return "", fmt.Errorf("unable to close %s: %w", path, err)
	}
	log.Debugf("Local.Save(): saved %s", path)
	return path, nil
}

func (l *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.contains(path); err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (l *Local) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	objects := []Object{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			log.WithError(err).Warnf("unable to stat %s", e.Name())
			continue
		}
		objects = append(objects, Object{
			Path:    filepath.Join(l.dir, e.Name()),
			Name:    e.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return objects, nil
}

func (l *Local) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.contains(path); err != nil {
		return err
	}
	return os.Remove(path)
}

// contains refuses paths resolving outside of the upload directory.
func (l *Local) contains(path string) error {
	root, err := filepath.Abs(l.dir)
	if err != nil {
		return err
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideStore, path)
	}
	return nil
}
