// Package compare implements the comparison of test reports from the command
// line: the files are validated, uploaded to the analyzer API and the failing
// tests shown in a table.
package compare

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/config"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/export"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/analyzer"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/filter"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/upload"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/client"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/cmd/cmdutil"
)

type options struct {
	local          bool
	sortBy         string
	onlyMultiple   bool
	onlyConsistent bool
	minFailures    int
	selected       []string
	json           bool
	yaml           bool
	saveTo         string
	top            int
}

func NewCmdCompare() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "compare FILE...",
		Short: "Compare test reports and show the tests failing across them",
		Example: `report-analyzer compare run1.html run2.html run3.html
report-analyzer compare --only-consistent --sort-by failureRate reports/*.html
report-analyzer compare --local --save-to ./analysis run1.html run2.html`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}

	cmd.Flags().Int("num-reports", upload.DefaultMaxReports, "maximum number of reports compared at once")
	cmd.Flags().String("max-file-size", upload.FormatFileSize(upload.DefaultMaxFileSize), "maximum size of a single report")
	cmd.Flags().String("api-url", "http://localhost:5000", "report analyzer API")
	cmdutil.BindFlag(cmd, "num-reports", "limits.max_reports")
	cmdutil.BindFlag(cmd, "max-file-size", "limits.max_file_size")
	cmdutil.BindFlag(cmd, "api-url", "client.api_url")

	cmd.Flags().BoolVar(&opts.local, "local", false, "analyze the reports in-process instead of uploading them")
	cmd.Flags().StringVar(&opts.sortBy, "sort-by", string(filter.SortByFailureCount), fmt.Sprintf("ranking of the failing tests, one of %v", filter.SortKeys))
	cmd.Flags().BoolVar(&opts.onlyMultiple, "only-multiple", false, "show only tests failing in more than one report")
	cmd.Flags().BoolVar(&opts.onlyConsistent, "only-consistent", false, "show only tests failing in every selected report")
	cmd.Flags().IntVar(&opts.minFailures, "min-failures", 0, "show only tests failing in at least that many reports")
	cmd.Flags().StringSliceVar(&opts.selected, "select", nil, "reports taken into account by the filters, default all")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the analysis as JSON")
	cmd.Flags().BoolVar(&opts.yaml, "yaml", false, "print the analysis as YAML")
	cmd.Flags().StringVar(&opts.saveTo, "save-to", "", "directory receiving the JSON, YAML, spreadsheet, chart and HTML exports")
	cmd.Flags().IntVar(&opts.top, "top", 10, "tests shown in the failure rate ranking, 0 for all")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")

	return cmd
}

func (o *options) run(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.ConfigFrom(cmd.Context())
	if err != nil {
		return err
	}
	sortBy, err := filter.ParseSortBy(o.sortBy)
	if err != nil {
		return err
	}

	sel, err := newSelection(cfg.Limits.Upload(), args, o.selected)
	if err != nil {
		return err
	}

	res, reportNames, err := o.analyze(cmd.Context(), cfg, sel)
	if err != nil {
		return err
	}

	doc := export.NewDocument(res, filter.Options{
		SelectedReports:        reportNames,
		OnlyMultipleFailures:   o.onlyMultiple,
		OnlyConsistentFailures: o.onlyConsistent,
		MinFailureCount:        o.minFailures,
		SortBy:                 sortBy,
	})

	out := cmd.OutOrStdout()
	switch {
	case o.json:
		err = export.WriteJSON(out, doc)
	case o.yaml:
		err = export.WriteYAML(out, doc)
	default:
		cmdutil.PrintSelection(out, sel)
		cmdutil.PrintComparison(out, doc, o.top)
	}
	if err != nil {
		return err
	}

	if o.saveTo == "" {
		return nil
	}
	files, err := export.New().Save(o.saveTo, doc)
	if err != nil {
		return pkgerrors.Wrap(err, "unable to save the analysis")
	}
	for _, f := range files {
		log.Infof("Saved %s", f)
	}
	return nil
}

// newSelection validates the files in paths. Files failing the per-file checks
// are skipped with a warning, like the ones dropped from a upload form.
func newSelection(limits upload.Limits, paths, selected []string) (*upload.Selection, error) {
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		f, err := upload.FileFromPath(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	sel := upload.NewSelection(limits)
	for _, err := range sel.Add(files...) {
		if errors.Is(err, upload.ErrTooManyFiles) || errors.Is(err, upload.ErrTotalTooLarge) {
			return nil, err
		}
		log.Warn(err)
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if len(selected) > 0 {
		if err := sel.SetSelectedReports(selected); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

// analyze returns the analysis of the selection and the selected report
// names as they appear in it.
func (o *options) analyze(ctx context.Context, cfg *config.Config, sel *upload.Selection) (*analyzer.Result, []string, error) {
	if o.local {
		paths := []string{}
		for _, f := range sel.Files() {
			paths = append(paths, f.Path)
		}
		res, err := analyzer.NewLoader(analyzer.FileSource{}, nil).Analyze(ctx, paths)
		if err != nil {
			return nil, nil, err
		}
		return res, sel.SelectedReports(), nil
	}

	c := client.New(cfg.Client.APIURL,
		client.WithRetryMax(cfg.Client.RetryMax),
		client.WithTimeout(cfg.Client.Timeout),
		client.WithMaxFileSize(cfg.Limits.MaxFileSize),
	)
	log.Infof("Uploading %d files (%s) to %s", len(sel.Names()), upload.FormatFileSize(sel.TotalSize()), cfg.Client.APIURL)
	cmp, err := c.UploadAndAnalyze(ctx, sel)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("batch %s analyzed: %v", cmp.Batch, cmp.Uploaded)

	// the server names the reports after their secured file names
	names := []string{}
	for _, n := range sel.SelectedReports() {
		names = append(names, upload.SecureFilename(n))
	}
	return cmp.Result, names, nil
}
