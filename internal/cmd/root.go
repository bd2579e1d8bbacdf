package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/daimoniac/covdocs/internal/config"
	"github.com/daimoniac/covdocs/internal/coverity"
	"github.com/daimoniac/covdocs/internal/observability"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "covdocs",
	Short: "Coverity defect reporting for Markdown documentation",
	Long: `covdocs builds Markdown documentation trees containing coverity-list
directive blocks. Each block is replaced with a defect table, a pie chart,
or both, fed from a Coverity Connect instance. Defect text referencing
traceability items is cross-linked on the way through.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command under the given context
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default covdocs.yml, or COVDOCS_CONFIG)")
}

// setup loads and validates configuration and wires the logger and the
// Coverity service. Shared by the build and export commands.
func setup() (*config.Config, *slog.Logger, *coverity.Service, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)

	opts := []coverity.Option{coverity.WithTransport(cfg.Coverity.Transport)}
	if cfg.Coverity.Port != 0 {
		opts = append(opts, coverity.WithPort(cfg.Coverity.Port))
	}
	service := coverity.NewService(cfg.Coverity.Hostname, logger, opts...)
	service.Login(cfg.Coverity.Username, cfg.Coverity.Password)

	return cfg, logger, service, nil
}
