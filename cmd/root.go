// Package cmd defines the CLI commands for the news-pipeline executable.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/app"
	"github.com/gdeltlens/news-pipeline/internal/logging"
	"github.com/gdeltlens/news-pipeline/pkg/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. It allows
// injecting a mock app during tests.
type App interface {
	RunPipeline(ctx context.Context) (int, error)
	RunServer(ctx context.Context) error
	Close(ctx context.Context)
}

// newApp is the application factory. It is a variable so tests can replace it
// with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	logging.InitLogger(viper.GetBool("logging.development"))
	return app.New(ctx, logging.L)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "news-pipeline",
		Short: "Batch ingestion pipeline and query service for geolocated news events.",
		Long: `news-pipeline drains CSV batch files of news event records from an
object store, enriches each record with fetched article content, keywords,
an extractive summary, and a summary embedding, and persists the results to
a document store. It also serves keyword and vector search over the
persisted records.`,

		// Runs after config is loaded but before the subcommand's RunE, so
		// the application is built exactly once and shared via the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close(cmd.Context())
			}
		},
	}

	cobra.OnInitialize(config.InitConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.news-pipeline/config.yaml)")

	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	logging.InitLogger(false)

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
