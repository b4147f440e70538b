// Package app assembles the service's dependencies from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/api"
	"github.com/gdeltlens/news-pipeline/internal/batch"
	"github.com/gdeltlens/news-pipeline/internal/config"
	"github.com/gdeltlens/news-pipeline/internal/docstore"
	"github.com/gdeltlens/news-pipeline/internal/embedding"
	"github.com/gdeltlens/news-pipeline/internal/fetcher"
	"github.com/gdeltlens/news-pipeline/internal/id/uuid"
	"github.com/gdeltlens/news-pipeline/internal/metrics"
	"github.com/gdeltlens/news-pipeline/internal/news"
	"github.com/gdeltlens/news-pipeline/internal/parser"
	"github.com/gdeltlens/news-pipeline/internal/pipeline"
	memorypublisher "github.com/gdeltlens/news-pipeline/internal/publisher/memory"
	nooppublisher "github.com/gdeltlens/news-pipeline/internal/publisher/noop"
	gcppublisher "github.com/gdeltlens/news-pipeline/internal/publisher/pubsub"
	"github.com/gdeltlens/news-pipeline/internal/storage"
	memorystorage "github.com/gdeltlens/news-pipeline/internal/storage/memory"

	clocksystem "github.com/gdeltlens/news-pipeline/internal/clock/system"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	blobs        news.BlobStore
	docs         news.DocStore
	embedder     news.Embedder
	publisher    news.Publisher
	pubsubClient *pubsub.Client
}

// New loads configuration from the global Viper instance and builds every
// dependency. Any construction failure is startup-fatal for the caller.
func New(ctx context.Context, logger *zap.Logger) (*App, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	if err := a.buildBlobStore(ctx); err != nil {
		return nil, err
	}
	docs, err := docstore.NewMongoStore(ctx,
		cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection,
		cfg.Search.KeywordIndex, cfg.Search.VectorIndex, logger)
	if err != nil {
		return nil, err
	}
	a.docs = docs

	a.embedder = embedding.NewClient(embedding.Config{
		Endpoint:   cfg.Embedding.Endpoint,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		AuthToken:  cfg.Embedding.AuthToken,
	}, logger)

	if err := a.buildPublisher(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	logger.Info("Application dependencies ready",
		zap.String("storage_provider", cfg.Storage.Provider),
		zap.String("publisher_provider", cfg.Publisher.Provider))
	return a, nil
}

func (a *App) buildBlobStore(ctx context.Context) error {
	switch a.cfg.Storage.Provider {
	case "gcs":
		store, err := storage.NewGCSStore(ctx, a.cfg.Storage.GCS.BucketName)
		if err != nil {
			return fmt.Errorf("build gcs store: %w", err)
		}
		a.blobs = store
	case "memory":
		a.blobs = memorystorage.NewStore()
	default:
		return fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
	return nil
}

func (a *App) buildPublisher(ctx context.Context) error {
	switch a.cfg.Publisher.Provider {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, a.cfg.Publisher.GCP.ProjectID)
		if err != nil {
			return fmt.Errorf("build pubsub client: %w", err)
		}
		a.pubsubClient = client
		a.publisher = gcppublisher.New(client)
	case "memory":
		a.publisher = memorypublisher.New()
	case "noop", "":
		a.publisher = nooppublisher.New()
	default:
		return fmt.Errorf("unknown publisher provider: %s", a.cfg.Publisher.Provider)
	}
	return nil
}

// Config exposes the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// RunPipeline drains the source prefix once and returns the number of batches
// archived.
func (a *App) RunPipeline(ctx context.Context) (int, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	selector := batch.NewSelector(a.blobs,
		a.cfg.Storage.SourcePrefix, a.cfg.Storage.ArchivePrefix,
		a.cfg.Storage.ScratchDir, a.logger)

	fetchClient := fetcher.NewClient(fetcher.Config{
		Timeout:   a.cfg.Pipeline.FetchTimeout,
		UserAgent: a.cfg.Pipeline.UserAgent,
	}, a.logger)

	pool, err := parser.NewPool(a.cfg.Pipeline.ParseWorkers, a.cfg.Pipeline.ParseTimeout, a.logger)
	if err != nil {
		return 0, fmt.Errorf("build parse pool: %w", err)
	}
	defer pool.Release()

	merger := pipeline.NewMerger(a.embedder, a.logger)
	orch := pipeline.NewOrchestrator(
		selector, fetchClient, pool, merger, a.docs, a.publisher,
		clocksystem.New(), uuid.NewUUIDGenerator(),
		pipeline.OrchestratorConfig{
			Queue: pipeline.QueueConfig{
				FetchConcurrency: a.cfg.Pipeline.FetchConcurrency,
				QueueFactor:      a.cfg.Pipeline.QueueFactor,
				ParseWorkers:     a.cfg.Pipeline.ParseWorkers,
			},
			ScratchDir: a.cfg.Storage.ScratchDir,
			Topic:      a.cfg.Publisher.GCP.TopicID,
		},
		a.logger,
	)
	return orch.Run(ctx)
}

// RunServer starts the HTTP query service and blocks until the context is
// canceled or a signal arrives.
func (a *App) RunServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(a.docs, a.embedder, a.logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return nil
}

// Close releases external connections.
func (a *App) Close(ctx context.Context) {
	if a.docs != nil {
		if err := a.docs.Close(ctx); err != nil {
			a.logger.Warn("document store close error", zap.Error(err))
		}
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close error", zap.Error(err))
		}
	}
	if closer, ok := a.blobs.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("blob store close error", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
}
