// Package cleanup removes old uploads once, outside of the server loop.
package cleanup

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/cleanup"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/storage"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/upload"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/cmd/cmdutil"
)

func NewCmdCleanup() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Args:  cobra.NoArgs,
		Short: "Remove uploaded reports older than the max age",
		Example: `report-analyzer cleanup --max-age 48h
report-analyzer cleanup --archive-to /backup/reports --upload-dir /var/lib/report-analyzer`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.ConfigFrom(cmd.Context())
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.Storage)
			if err != nil {
				return errors.Wrap(err, "unable to open the upload storage")
			}

			cleaner := cleanup.New(store, cfg.Cleanup.MaxAge)
			cleaner.ArchiveTo = cfg.Cleanup.ArchiveTo

			if dryRun {
				expired, err := cleaner.Expired(cmd.Context())
				if err != nil {
					return err
				}
				tb := table.NewWriter()
				tb.SetOutputMirror(cmd.OutOrStdout())
				tb.SetStyle(table.StyleLight)
				tb.SetTitle(fmt.Sprintf("Uploads older than %s", cleaner.MaxAge))
				tb.AppendHeader(table.Row{"Path", "Modified", "Size"})
				for _, obj := range expired {
					tb.AppendRow(table.Row{obj.Path, obj.ModTime.Format("2006-01-02 15:04:05"), upload.FormatFileSize(obj.Size)})
				}
				tb.Render()
				return nil
			}

			removed, err := cleaner.Run(cmd.Context())
			if err != nil {
				return err
			}
			log.Infof("Cleanup done, %d files removed", removed)
			return nil
		},
	}

	cmd.Flags().Duration("max-age", cleanup.DefaultMaxAge, "remove uploads last modified before that age")
	cmd.Flags().String("archive-to", "", "directory receiving a tar.xz bundle of the removed files")
	cmd.Flags().String("upload-dir", "uploads", "directory storing the uploaded reports, local storage only")
	cmd.Flags().String("storage", "local", "storage backend, one of local or s3")
	cmd.Flags().String("bucket", "", "bucket storing the uploaded reports, s3 storage only")
	cmd.Flags().String("region", "us-east-1", "bucket region, s3 storage only")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the files to remove without removing them")
	cmdutil.BindFlag(cmd, "max-age", "cleanup.max_age")
	cmdutil.BindFlag(cmd, "archive-to", "cleanup.archive_to")
	cmdutil.BindFlag(cmd, "upload-dir", "storage.dir")
	cmdutil.BindFlag(cmd, "storage", "storage.backend")
	cmdutil.BindFlag(cmd, "bucket", "storage.bucket")
	cmdutil.BindFlag(cmd, "region", "storage.region")

	return cmd
}
