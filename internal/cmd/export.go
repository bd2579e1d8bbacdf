package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daimoniac/covdocs/internal/exportstore"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the defect set to a local sqlite database",
	Long: `Export fetches the configured stream's defects and records them as a
new run in the sqlite export database for offline inspection. Builds never
read from this database.`,
	RunE: runExport,
}

var exportKeepRuns int

func init() {
	exportCmd.Flags().IntVar(&exportKeepRuns, "keep-runs", 0, "delete older runs for the stream, keeping the most recent N (0 keeps all)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, service, err := setup()
	if err != nil {
		return err
	}

	if err := service.ValidateStream(ctx, cfg.Coverity.Stream); err != nil {
		return fmt.Errorf("stream validation failed: %w", err)
	}
	snapshot := service.ResolveSnapshot(ctx, cfg.Coverity.Snapshot)

	records, err := service.FetchDefects(ctx, cfg.Coverity.Stream, snapshot)
	if err != nil {
		return err
	}

	store, err := exportstore.NewSQLiteStore(cfg.Export.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.RecordRun(ctx, cfg.Coverity.Stream, snapshot, records)
	if err != nil {
		return err
	}

	logger.Info("defect set exported",
		"run_id", run.ID,
		"stream", run.Stream,
		"snapshot", run.Snapshot,
		"defects", run.DefectCount,
		"database", cfg.Export.SQLitePath)

	if exportKeepRuns > 0 {
		deleted, err := store.CleanupExcessRuns(ctx, cfg.Coverity.Stream, exportKeepRuns)
		if err != nil {
			return err
		}
		if deleted > 0 {
			logger.Info("old export runs removed",
				"stream", cfg.Coverity.Stream,
				"deleted", deleted,
				"kept", exportKeepRuns)
		}
	}

	fmt.Printf("exported %d defects for stream %s (run %d)\n", run.DefectCount, run.Stream, run.ID)
	return nil
}
