// Package serve runs the report analyzer API.
package serve

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/server"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/storage"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/upload"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/pkg/cmd/cmdutil"
)

func NewCmdServe() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Args:  cobra.NoArgs,
		Short: "Run the report analyzer API",
		Long: `Serves the /upload, /analyze and /search endpoints, storing uploaded reports
on the local disk or in a S3 bucket. Uploads older than the cleanup max age are
removed periodically.`,
		Example: `report-analyzer serve --addr 127.0.0.1:5000 --upload-dir /var/lib/report-analyzer
report-analyzer serve --storage s3 --bucket my-reports --region us-east-1`,
		RunE: run,
	}

	cmd.Flags().String("addr", "0.0.0.0:5000", "address to listen on")
	cmd.Flags().String("upload-dir", "uploads", "directory storing the uploaded reports, local storage only")
	cmd.Flags().String("storage", "local", "storage backend, one of local or s3")
	cmd.Flags().String("bucket", "", "bucket storing the uploaded reports, s3 storage only")
	cmd.Flags().String("region", "us-east-1", "bucket region, s3 storage only")
	cmd.Flags().String("max-file-size", upload.FormatFileSize(upload.DefaultMaxFileSize), "maximum size of a single report")
	cmd.Flags().StringSlice("allowed-origins", []string{"*"}, "origins allowed by CORS")
	cmd.Flags().Bool("cleanup", true, "periodically remove old uploads")

	cmdutil.BindFlag(cmd, "addr", "server.addr")
	cmdutil.BindFlag(cmd, "upload-dir", "storage.dir")
	cmdutil.BindFlag(cmd, "storage", "storage.backend")
	cmdutil.BindFlag(cmd, "bucket", "storage.bucket")
	cmdutil.BindFlag(cmd, "region", "storage.region")
	cmdutil.BindFlag(cmd, "max-file-size", "limits.max_file_size")
	cmdutil.BindFlag(cmd, "allowed-origins", "server.allowed_origins")
	cmdutil.BindFlag(cmd, "cleanup", "cleanup.enabled")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.ConfigFrom(cmd.Context())
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "unable to open the upload storage")
	}
	log.WithFields(log.Fields{
		"storage":       cfg.Storage.Backend,
		"max_file_size": upload.FormatFileSize(cfg.Limits.MaxFileSize),
		"max_reports":   cfg.Limits.MaxReports,
	}).Info("report storage ready")

	return server.New(cfg, store).Run(cmd.Context())
}
