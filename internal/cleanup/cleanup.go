// Package cleanup removes uploaded reports older than a maximum age,
// optionally archiving them before removal.
package cleanup

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/metrics"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/storage"
)

const DefaultMaxAge = 24 * time.Hour

// Cleaner removes expired objects from a store.
type Cleaner struct {
	Store  storage.Store
	MaxAge time.Duration

	// ArchiveTo is a directory receiving a tar.xz bundle of the expired files
	// before they are removed. Archiving is disabled when empty.
	ArchiveTo string

	Collectors *metrics.Collectors

	now func() time.Time
}

func New(store storage.Store, maxAge time.Duration) *Cleaner {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Cleaner{Store: store, MaxAge: maxAge, now: time.Now}
}

func (c *Cleaner) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Expired lists the objects last modified more than MaxAge ago.
func (c *Cleaner) Expired(ctx context.Context) ([]storage.Object, error) {
	objects, err := c.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list uploads: %w", err)
	}
	now := c.clock()
	expired := []storage.Object{}
	for _, obj := range objects {
		if now.Sub(obj.ModTime) > c.MaxAge {
			expired = append(expired, obj)
		}
	}
	return expired, nil
}

// Run removes the expired objects and returns how many were removed. A file
// that cannot be removed is logged and skipped.
func (c *Cleaner) Run(ctx context.Context) (int, error) {
	expired, err := c.Expired(ctx)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if c.ArchiveTo != "" {
		bundle, err := c.archive(ctx, expired)
		if err != nil {
			return 0, fmt.Errorf("unable to archive expired uploads: %w", err)
		}
		log.Infof("Archived %d old files to %s", len(expired), bundle)
	}

	removed := 0
	for _, obj := range expired {
		if err := c.Store.Remove(ctx, obj.Path); err != nil {
			log.WithError(err).Errorf("Error deleting %s", obj.Path)
			continue
		}
		log.Infof("Deleted old file: %s", obj.Path)
		removed++
	}
	c.Collectors.RecordCleanup(removed)
	return removed, nil
}

// Loop runs the cleanup every interval until ctx is done.
func (c *Cleaner) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := c.Run(ctx); err != nil {
			log.WithError(err).Error("cleanup failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// archive writes objects into ArchiveTo/uploads-<timestamp>.tar.xz.
func (c *Cleaner) archive(ctx context.Context, objects []storage.Object) (string, error) {
	if err := os.MkdirAll(c.ArchiveTo, 0o755); err != nil {
		return "", err
	}
	bundle := filepath.Join(c.ArchiveTo, fmt.Sprintf("uploads-%s.tar.xz", c.clock().UTC().Format("20060102T150405Z")))
	fd, err := os.Create(bundle)
	if err != nil {
		return "", err
	}

	if err := writeArchive(ctx, fd, c.Store, objects); err != nil {
		fd.Close()
		os.Remove(bundle)
		return "", err
	}
	if err := fd.Close(); err != nil {
		return "", err
	}
	return bundle, nil
}

func writeArchive(ctx context.Context, w io.Writer, store storage.Store, objects []storage.Object) error {
	xzw, err := xz.NewWriter(w)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(xzw)
	for _, obj := range objects {
		if err := addObject(ctx, tw, store, obj); err != nil {
			return fmt.Errorf("%s: %w", obj.Path, err)
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return xzw.Close()
}

func addObject(ctx context.Context, tw *tar.Writer, store storage.Store, obj storage.Object) error {
	rc, err := store.Open(ctx, obj.Path)
	if err != nil {
		return err
	}
	defer rc.Close()

	hdr := &tar.Header{
		Name:    obj.Name,
		Mode:    0o644,
		Size:    obj.Size,
		ModTime: obj.ModTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.CopyN(tw, rc, obj.Size)
	return err
}
