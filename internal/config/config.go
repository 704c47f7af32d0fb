// Package config loads the analyzer settings from an optional YAML file,
// TRA_ prefixed environment variables and command line flags bound to viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/upload"
)

const (
	EnvPrefix  = "TRA"
	configName = "report-analyzer"
	appDirName = "report-analyzer"

	BackendLocal = "local"
	BackendS3    = "s3"

	// UploadOverhead is added to the default request body cap for the
	// multipart framing around a selection at the size limit.
	UploadOverhead = 1 << 20
)

// Config is the top-level configuration shared by the server and the CLI.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig describes the HTTP service.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Concurrency     int           `mapstructure:"concurrency"` // reports parsed in parallel, 0 means GOMAXPROCS
}

// StorageConfig selects where uploaded reports are kept.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // local or s3
	Dir     string `mapstructure:"dir"` // empty means the user cache directory
	Bucket  string `mapstructure:"bucket"`
	Region  string `mapstructure:"region"`
	Prefix  string `mapstructure:"prefix"`
}

// LimitsConfig holds the upload limits. Sizes are read as human strings
// (100MB) and resolved to bytes by Load. The request body cap defaults to the
// file size cap plus UploadOverhead.
type LimitsConfig struct {
	MaxFileSizeRaw   string `mapstructure:"max_file_size"`
	MaxUploadSizeRaw string `mapstructure:"max_upload_size"`
	MaxReports       int    `mapstructure:"max_reports"`

	MaxFileSize    int64 `mapstructure:"-"`
	MaxUploadBytes int64 `mapstructure:"-"`
}

// Upload returns the limits enforced on a selection of files.
func (l LimitsConfig) Upload() upload.Limits {
	return upload.Limits{MaxFileSize: l.MaxFileSize, MaxReports: l.MaxReports}
}

// CleanupConfig controls the removal of old uploads.
type CleanupConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	MaxAge    time.Duration `mapstructure:"max_age"`
	Interval  time.Duration `mapstructure:"interval"`
	ArchiveTo string        `mapstructure:"archive_to"`
}

// ClientConfig describes how the CLI reaches the server.
type ClientConfig struct {
	APIURL   string        `mapstructure:"api_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RetryMax int           `mapstructure:"retry_max"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads the configuration into v. When path is empty a report-analyzer.yaml
// is looked up in the working directory and the XDG config directory, and a
// missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, appDirName))
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.resolveSizes(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults populates the defaults of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.concurrency", 0)

	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.dir", "uploads")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.prefix", "uploads/")

	v.SetDefault("limits.max_file_size", "100MB")
	v.SetDefault("limits.max_upload_size", "")
	v.SetDefault("limits.max_reports", upload.DefaultMaxReports)

	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.max_age", 24*time.Hour)
	v.SetDefault("cleanup.interval", time.Hour)
	v.SetDefault("cleanup.archive_to", "")

	v.SetDefault("client.api_url", "http://localhost:5000")
	v.SetDefault("client.timeout", 5*time.Minute)
	v.SetDefault("client.retry_max", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "report-analyzer.log")
}

func (c *Config) resolveSizes() error {
	size, err := upload.ParseSize(c.Limits.MaxFileSizeRaw)
	if err != nil {
		return fmt.Errorf("limits.max_file_size: %w", err)
	}
	c.Limits.MaxFileSize = size

	c.Limits.MaxUploadBytes = size + UploadOverhead
	if strings.TrimSpace(c.Limits.MaxUploadSizeRaw) != "" {
		if c.Limits.MaxUploadBytes, err = upload.ParseSize(c.Limits.MaxUploadSizeRaw); err != nil {
			return fmt.Errorf("limits.max_upload_size: %w", err)
		}
	}
	return nil
}

// Validate performs sanity checks on the loaded values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if c.Server.Concurrency < 0 {
		return errors.New("server.concurrency must be >= 0")
	}

	switch c.Storage.Backend {
	case BackendLocal:
	case BackendS3:
		if c.Storage.Bucket == "" || c.Storage.Region == "" {
			return errors.New("storage.bucket and storage.region must be set for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of %s, %s", BackendLocal, BackendS3)
	}

	if c.Limits.MaxFileSize <= 0 {
		return errors.New("limits.max_file_size must be > 0")
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return errors.New("limits.max_upload_size must be > 0")
	}
	if c.Limits.MaxReports < upload.MinReports {
		return fmt.Errorf("limits.max_reports must be >= %d", upload.MinReports)
	}

	if c.Cleanup.Enabled {
		if c.Cleanup.MaxAge <= 0 {
			return errors.New("cleanup.max_age must be > 0")
		}
		if c.Cleanup.Interval <= 0 {
			return errors.New("cleanup.interval must be > 0")
		}
	}

	u, err := url.Parse(c.Client.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("client.api_url %q is not a valid URL", c.Client.APIURL)
	}
	if c.Client.RetryMax < 0 {
		return errors.New("client.retry_max must be >= 0")
	}
	return nil
}
