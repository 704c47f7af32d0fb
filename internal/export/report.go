package export

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
)

// WriteReport renders the HTML report template with doc.
func (e *Exporter) WriteReport(w io.Writer, doc *Document) error {
	if e.Templates == nil {
		return ErrNoTemplates
	}
	datS, err := fs.ReadFile(e.Templates, ReportTemplatePath)
	if err != nil {
		return fmt.Errorf("unable to read file %q from VFS: %w", ReportTemplatePath, err)
	}

	// '[[]]' delimiters leave '{{}}' free for scripts embedded in the page.
	tmplS, err := template.New("report").Delims("[[", "]]").Funcs(template.FuncMap{
		"join":   strings.Join,
		"status": doc.Status,
	}).Parse(string(datS))
	if err != nil {
		return fmt.Errorf("unable to create template for %q: %w", ReportTemplatePath, err)
	}

	var buf bytes.Buffer
	if err := tmplS.Execute(&buf, doc); err != nil {
		return fmt.Errorf("unable to process template for %q: %w", ReportTemplatePath, err)
	}
	_, err = buf.WriteTo(w)
	return err
}
