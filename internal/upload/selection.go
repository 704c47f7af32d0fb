// Package upload validates the report files selected for a comparison before
// they are sent to the analyzer service.
package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultMaxFileSize int64 = 100 * 1024 * 1024
	DefaultMaxReports        = 10
	MinReports               = 2
)

var (
	ErrEmptyFile     = errors.New("empty file")
	ErrFileTooLarge  = errors.New("file too large")
	ErrNotHTML       = errors.New("not an HTML file")
	ErrTotalTooLarge = errors.New("total size too large")
	ErrTooManyFiles  = errors.New("too many files")
	ErrNoFiles       = errors.New("no files selected")
	ErrTooFewFiles   = errors.New("not enough files")
	ErrInvalidFiles  = errors.New("invalid files")
	ErrUnknownReport = errors.New("unknown report")
)

// ValidationError carries the message shown to the user, matching one of the
// sentinel errors of this package with errors.Is.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == e.Kind }

func newValidationError(kind error, format string, args ...interface{}) error {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// File is a report file candidate.
type File struct {
	Name string
	Size int64

	// Path is where the file can be read from, when it is a local file.
	Path string
}

// FileFromPath builds a File from a local path.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{Name: filepath.Base(path), Size: info.Size(), Path: path}, nil
}

// Limits are the constraints enforced on a selection.
type Limits struct {
	// MaxFileSize caps each file and the sum of all files, in bytes.
	MaxFileSize int64

	// MaxReports caps the number of files in a selection.
	MaxReports int
}

func DefaultLimits() Limits {
	return Limits{MaxFileSize: DefaultMaxFileSize, MaxReports: DefaultMaxReports}
}

// checkFile returns the reason a single file is refused, or nil.
func (l Limits) checkFile(f File) error {
	if f.Size == 0 {
		return newValidationError(ErrEmptyFile, "File %s is empty. Please select a valid file.", f.Name)
	}
	if f.Size > l.MaxFileSize {
		return newValidationError(ErrFileTooLarge, "File %s is too large (%s). Maximum size is %s.",
			f.Name, FormatFileSize(f.Size), FormatFileSize(l.MaxFileSize))
	}
	if !strings.HasSuffix(strings.ToLower(f.Name), ".html") {
		return newValidationError(ErrNotHTML, "File %s is not an HTML file.", f.Name)
	}
	return nil
}

func (l Limits) checkTotal(files []File) error {
	total := totalSize(files)
	if total > l.MaxFileSize {
		return newValidationError(ErrTotalTooLarge, "Total file size (%s) exceeds maximum allowed size (%s)",
			FormatFileSize(total), FormatFileSize(l.MaxFileSize))
	}
	return nil
}

func totalSize(files []File) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// Selection is the list of files picked for a comparison, and the subset of
// report names currently selected for display.
type Selection struct {
	limits   Limits
	files    []File
	selected []string
}

func NewSelection(limits Limits) *Selection {
	return &Selection{limits: limits}
}

// Add validates files and appends the valid ones. Invalid files are reported
// individually. The whole batch is refused when the valid files exceed the
// total size, or when the selection would hold more than the maximum number of
// files. Files with a name already selected are ignored. The selected reports
// are reset to every file.
func (s *Selection) Add(files ...File) []error {
	errs := []error{}
	valid := []File{}
	for _, f := range files {
		if err := s.limits.checkFile(f); err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, f)
	}

	if err := s.limits.checkTotal(valid); err != nil {
		return append(errs, err)
	}

	merged := append(append([]File{}, s.files...), valid...)
	if len(merged) > s.limits.MaxReports {
		return append(errs, newValidationError(ErrTooManyFiles,
			"You can only select up to %d files. Please remove some files first.", s.limits.MaxReports))
	}

	seen := make(map[string]struct{}, len(merged))
	unique := make([]File, 0, len(merged))
	for _, f := range merged {
		if _, ok := seen[f.Name]; ok {
			continue
		}
		seen[f.Name] = struct{}{}
		unique = append(unique, f)
	}
	s.files = unique
	s.selected = s.Names()
	return errs
}

// Remove drops a file and unselects its report.
func (s *Selection) Remove(name string) bool {
	for i, f := range s.files {
		if f.Name != name {
			continue
		}
		s.files = append(s.files[:i], s.files[i+1:]...)
		selected := []string{}
		for _, n := range s.selected {
			if n != name {
				selected = append(selected, n)
			}
		}
		s.selected = selected
		return true
	}
	return false
}

// Files returns a copy of the selected files.
func (s *Selection) Files() []File {
	return append([]File{}, s.files...)
}

// Names returns the names of the files, in selection order.
func (s *Selection) Names() []string {
	names := make([]string, 0, len(s.files))
	for _, f := range s.files {
		names = append(names, f.Name)
	}
	return names
}

// SelectedReports returns the report names taken into account by filters.
func (s *Selection) SelectedReports() []string {
	return append([]string{}, s.selected...)
}

// SetSelectedReports narrows the reports taken into account. Every name must
// belong to the selection.
func (s *Selection) SetSelectedReports(names []string) error {
	known := make(map[string]struct{}, len(s.files))
	for _, f := range s.files {
		known[f.Name] = struct{}{}
	}
	for _, n := range names {
		if _, ok := known[n]; !ok {
			return newValidationError(ErrUnknownReport, "Report %s is not part of the selection.", n)
		}
	}
	s.selected = append([]string{}, names...)
	return nil
}

// TotalSize is the sum of the file sizes.
func (s *Selection) TotalSize() int64 {
	return totalSize(s.files)
}

// Validate checks the selection is ready to be uploaded.
func (s *Selection) Validate() error {
	if len(s.files) == 0 {
		return newValidationError(ErrNoFiles, "Please select files first")
	}
	if len(s.files) < MinReports {
		return newValidationError(ErrTooFewFiles, "Please select at least %d files to compare", MinReports)
	}
	invalid := []string{}
	for _, f := range s.files {
		if s.limits.checkFile(f) != nil {
			invalid = append(invalid, f.Name)
		}
	}
	if len(invalid) > 0 {
		return newValidationError(ErrInvalidFiles, "Some files are invalid:\n%s", strings.Join(invalid, "\n"))
	}
	return s.limits.checkTotal(s.files)
}
