package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daimoniac/covdocs/internal/build"
	"github.com/daimoniac/covdocs/internal/defects"
	"github.com/daimoniac/covdocs/internal/directive"
	"github.com/daimoniac/covdocs/internal/observability"
	"github.com/daimoniac/covdocs/internal/policy"
	"github.com/daimoniac/covdocs/internal/render"
	"github.com/daimoniac/covdocs/internal/watcher"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the documentation tree",
	Long: `Build walks the configured source directory, replaces every
coverity-list directive block with its rendered output, and writes the
result to the output directory. With --watch the build reruns whenever
the source tree changes.`,
	RunE: runBuild,
}

var (
	buildWatch     bool
	buildNoSummary bool
)

func init() {
	buildCmd.Flags().BoolVar(&buildWatch, "watch", false, "rebuild on source changes")
	buildCmd.Flags().BoolVar(&buildNoSummary, "no-summary", false, "suppress the console summary table")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, service, err := setup()
	if err != nil {
		return err
	}

	logger.Info("starting covdocs build",
		"hostname", cfg.Coverity.Hostname,
		"stream", cfg.Coverity.Stream,
		"source_dir", cfg.Docs.SourceDir,
		"output_dir", cfg.Docs.OutputDir)

	if cfg.Observability.MetricsPort > 0 {
		obsServer := observability.NewServer(cfg.Observability.MetricsPort, logger)
		go func() {
			if err := obsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err.Error())
			}
		}()
	}

	if err := service.ValidateStream(ctx, cfg.Coverity.Stream); err != nil {
		return fmt.Errorf("stream validation failed: %w", err)
	}
	snapshot := service.ResolveSnapshot(ctx, cfg.Coverity.Snapshot)

	cache := defects.NewCache(service, logger)
	resolver := defects.NewColumnResolver(defects.XRef{
		Pattern: cfg.ItemPattern(),
		Relink:  cfg.Traceability.Relink,
	}, func(cid int) string {
		return service.DefectURL(cfg.Coverity.Stream, cid)
	})
	orch := directive.NewOrchestrator(cache, resolver, cfg.Coverity.Stream, snapshot, logger)
	builder := build.NewBuilder(orch, cfg.Docs.SourceDir, cfg.Docs.OutputDir, cfg.Docs.ImageDir, logger)

	var gate *policy.Engine
	if cfg.Gate.Expression != "" {
		gate, err = policy.NewEngine(logger, policy.GateConfig{
			Expression:     cfg.Gate.Expression,
			FailureMessage: cfg.Gate.FailureMessage,
		})
		if err != nil {
			return fmt.Errorf("invalid gate configuration: %w", err)
		}
	}

	runOnce := func(ctx context.Context) error {
		report, err := builder.Build(ctx)
		if err != nil {
			return err
		}

		if !buildNoSummary && len(report.Documents) > 0 {
			if err := render.Summary(os.Stdout, report.Documents); err != nil {
				logger.Warn("failed to print build summary", "error", err.Error())
			}
		}

		if gate == nil {
			return nil
		}
		records, err := cache.GetDefects(ctx, cfg.Coverity.Stream, snapshot)
		if err != nil {
			return fmt.Errorf("gate evaluation needs the defect set: %w", err)
		}
		decision, err := gate.Evaluate(ctx, cfg.Coverity.Stream, records)
		if err != nil {
			return err
		}
		if !decision.Passed {
			return fmt.Errorf("defect gate failed: %s", decision.Reason)
		}
		return nil
	}

	if buildWatch {
		w := watcher.NewWatcher(cfg.Docs.SourceDir, func(ctx context.Context) error {
			// gate failures only report in watch mode, the loop keeps going
			if err := runOnce(ctx); err != nil {
				logger.Error("rebuild failed", "error", err.Error())
			}
			return nil
		}, watcher.Config{}, logger)

		if err := runOnce(ctx); err != nil {
			logger.Error("initial build failed", "error", err.Error())
		}
		if err := w.Start(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	}

	return runOnce(ctx)
}
