// Package search looks up tests by name across reports.
package search

import (
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/export"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/analyzer"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/parser"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/client"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/cmd/cmdutil"
)

type options struct {
	reports []string
	local   bool
	json    bool
}

func NewCmdSearch() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "search NAME --report PATH...",
		Short: "Search tests by name in reports",
		Long: `Searches the tests whose name contains NAME, ignoring case, and shows their
failure rate and status in each report. Report paths are the ones returned by
the upload, or local files with --local.`,
		Example: `report-analyzer search login --report uploads/run1.html --report uploads/run2.html
report-analyzer search checkout --local --report run1.html,run2.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}

	cmd.Flags().String("api-url", "http://localhost:5000", "report analyzer API")
	cmdutil.BindFlag(cmd, "api-url", "client.api_url")

	cmd.Flags().StringSliceVarP(&opts.reports, "report", "r", nil, "report paths to search in")
	cmd.Flags().BoolVar(&opts.local, "local", false, "search local report files in-process")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")

	return cmd
}

func (o *options) run(cmd *cobra.Command, name string) error {
	cfg, err := cmdutil.ConfigFrom(cmd.Context())
	if err != nil {
		return err
	}

	var res *analyzer.SearchResult
	if o.local {
		res, err = analyzer.NewLoader(analyzer.FileSource{}, nil).Search(cmd.Context(), name, o.reports)
	} else {
		c := client.New(cfg.Client.APIURL,
			client.WithRetryMax(cfg.Client.RetryMax),
			client.WithTimeout(cfg.Client.Timeout),
		)
		res, err = c.Search(cmd.Context(), name, o.reports)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.json {
		return export.WriteJSON(out, res)
	}
	if len(res.Stats) == 0 {
		log.Infof("No test matching %q", name)
		return nil
	}
	cmdutil.PrintStats(out, "Matching tests by failure rate", res.Stats, 0)

	tests := make([]string, 0, len(res.Stats))
	for _, st := range res.Stats {
		tests = append(tests, st.Name)
	}
	cmdutil.PrintStatusMatrix(out, res.Results, tests, reportNames(res.Results))
	return nil
}

// reportNames lists the reports found in the results, sorted.
func reportNames(results map[string]map[string]parser.TestStatus) []string {
	seen := map[string]struct{}{}
	names := []string{}
	for _, byReport := range results {
		for r := range byReport {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			names = append(names, r)
		}
	}
	sort.Strings(names)
	return names
}
