package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gdeltlens/news-pipeline/internal/logging"
)

// newServeCmd creates the 'serve' subcommand, which runs the HTTP query
// service until interrupted.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP query service",
		Long: `Serves keyword and vector search over the persisted news records on the
configured port. Blocks until SIGINT or SIGTERM.`,

		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	if err := appInstance.RunServer(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run server: %w", err)
	}
	logging.L.Info("Serve command finished.")
	return nil
}
