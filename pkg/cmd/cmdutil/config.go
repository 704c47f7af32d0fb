// Package cmdutil holds helpers shared by the report-analyzer commands.
package cmdutil

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/config"
)

// configKeyAnnotation marks a flag overriding a configuration key.
const configKeyAnnotation = "report-analyzer/config-key"

type configCtxKey struct{}

var ErrNoConfig = errors.New("configuration not loaded")

// BindFlag makes flag override the configuration key when it is set.
func BindFlag(cmd *cobra.Command, flag, key string) {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(flag)
	}
	if f == nil {
		panic("unknown flag " + flag)
	}
	if f.Annotations == nil {
		f.Annotations = map[string][]string{}
	}
	f.Annotations[configKeyAnnotation] = []string{key}
}

// LoadConfig binds the annotated flags of cmd to v and loads the
// configuration from the file named by the config flag.
func LoadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[configKeyAnnotation]
		if !ok || len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return nil, bindErr
	}

	path := ""
	if f := cmd.Flags().Lookup("config"); f != nil {
		path = f.Value.String()
	}
	return config.Load(v, path)
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configCtxKey{}, cfg)
}

// ConfigFrom returns the configuration loaded by the root command.
func ConfigFrom(ctx context.Context) (*config.Config, error) {
	if ctx == nil {
		return nil, ErrNoConfig
	}
	cfg, ok := ctx.Value(configCtxKey{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, ErrNoConfig
	}
	return cfg, nil
}
