package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/logging"
)

// newProcessCmd creates the 'process' subcommand, which drains every pending
// batch file from the source prefix and exits.
func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Processes all pending batch files",
		Long: `Scans the configured source prefix for CSV batch files, processes them
oldest-first through the fetch/parse/embed/persist pipeline, and archives
each file after its records are stored. Exits once no files remain.`,

		RunE: runProcessCommand,
	}
}

func runProcessCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	processed, err := appInstance.RunPipeline(cmd.Context())
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run pipeline: %w", err)
	}
	logging.L.Info("Pipeline run finished.", zap.Int("batches_archived", processed))
	return nil
}
