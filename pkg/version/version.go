// Package version contains all identifiable versioning info for
// describing the report analyzer project.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/export"
)

var (
	projectName = "report-analyzer"
	version     = "unknown"
	commit      = "unknown"
)

var Version = VersionContext{
	Name:      projectName,
	Version:   version,
	Commit:    commit,
	GoVersion: runtime.Version(),
}

type VersionContext struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"goVersion"`
}

func (vc *VersionContext) String() string {
	return fmt.Sprintf("Report Analyzer: %s+%s (%s)", vc.Version, vc.Commit, vc.GoVersion)
}

func NewCmdVersion() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the report analyzer version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return export.WriteJSON(cmd.OutOrStdout(), Version)
			}
			fmt.Fprintln(cmd.OutOrStdout(), Version.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the version as JSON")
	return cmd
}
