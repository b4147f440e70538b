package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/batch"
	"github.com/gdeltlens/news-pipeline/internal/metrics"
	"github.com/gdeltlens/news-pipeline/internal/news"
)

// OrchestratorConfig parameterizes the batch loop.
type OrchestratorConfig struct {
	Queue      QueueConfig
	ScratchDir string
	// Topic, when set together with a publisher, receives one completion
	// event per archived batch.
	Topic string
}

// Orchestrator drives the batch loop: select the oldest batch file, run it
// through fetch/parse/merge/persist, archive it, repeat until none remain.
// A batch-level failure leaves the source file in place for a future scan and
// moves on; only listing errors and context cancellation stop the loop.
type Orchestrator struct {
	selector  *batch.Selector
	fetcher   news.Fetcher
	parser    news.Parser
	merger    *Merger
	docs      news.DocStore
	publisher news.Publisher
	clock     news.Clock
	ids       news.IDGenerator
	cfg       OrchestratorConfig
	logger    *zap.Logger
}

// NewOrchestrator wires the pipeline components.
func NewOrchestrator(
	selector *batch.Selector,
	fetcher news.Fetcher,
	parser news.Parser,
	merger *Merger,
	docs news.DocStore,
	publisher news.Publisher,
	clock news.Clock,
	ids news.IDGenerator,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	return &Orchestrator{
		selector:  selector,
		fetcher:   fetcher,
		parser:    parser,
		merger:    merger,
		docs:      docs,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run processes batch files until the source prefix is empty (a success
// condition) or the context ends. It returns the number of batches archived.
func (o *Orchestrator) Run(ctx context.Context) (int, error) {
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		cand, err := o.selector.SelectOldest(ctx)
		if err != nil {
			return processed, fmt.Errorf("scan source prefix: %w", err)
		}
		if cand == nil {
			o.logger.Info("No more batch files found; all available files processed",
				zap.Int("processed", processed))
			return processed, nil
		}

		o.logger.Info("Processing batch file",
			zap.String("object", cand.Object), zap.Time("stamp", cand.Timestamp))
		if err := o.processBatch(ctx, cand); err != nil {
			// The file was never archived, so the next scan picks it up
			// again; reprocessing risk is accepted.
			o.logger.Error("Batch failed; source file left for retry",
				zap.String("object", cand.Object), zap.Error(err))
			metrics.ObserveBatch("failed")
			if ctx.Err() != nil {
				return processed, ctx.Err()
			}
			continue
		}
		metrics.ObserveBatch("archived")
		processed++
	}
}

func (o *Orchestrator) processBatch(ctx context.Context, cand *batch.Candidate) error {
	runID, err := o.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}

	localCSV, err := o.selector.Download(ctx, cand)
	if err != nil {
		return err
	}
	journalPath := filepath.Join(o.cfg.ScratchDir, cand.Stamp()+"_articles.ndjson")
	// Scratch artifacts are removed regardless of outcome.
	defer o.cleanupScratch(localCSV, journalPath)

	rows, err := batch.ReadRows(localCSV)
	if err != nil {
		return fmt.Errorf("parse batch rows: %w", err)
	}
	urls := batch.DistinctURLs(rows)
	o.logger.Info("Loaded batch rows",
		zap.String("object", cand.Object),
		zap.Int("rows", len(rows)), zap.Int("distinct_urls", len(urls)))

	cand.State = news.BatchProcessing
	parsed := map[string]news.ParseResult{}
	if len(urls) > 0 {
		journal, err := CreateJournal(journalPath)
		if err != nil {
			return err
		}
		stats, runErr := RunFetchParse(ctx, o.cfg.Queue, urls, o.fetcher, o.parser, journal, o.logger)
		if closeErr := journal.Close(); closeErr != nil && runErr == nil {
			runErr = closeErr
		}
		if runErr != nil {
			return fmt.Errorf("fetch/parse stage: %w", runErr)
		}
		var skipped int
		parsed, skipped, err = ReadJournal(journalPath)
		if err != nil {
			return err
		}
		if skipped > 0 {
			o.logger.Warn("Skipped corrupt journal lines", zap.Int("skipped", skipped))
		}
		if len(parsed) != stats.Submitted {
			o.logger.Warn("Journal entry count does not match submitted URLs",
				zap.Int("journal", len(parsed)), zap.Int("submitted", stats.Submitted))
		}
	}

	records := o.merger.Merge(ctx, rows, parsed)
	if len(records) > 0 {
		if err := o.docs.InsertBatch(ctx, records); err != nil {
			return fmt.Errorf("persist batch: %w", err)
		}
		metrics.AddRecords(len(records))
		o.logger.Info("Persisted enriched records",
			zap.String("object", cand.Object), zap.Int("records", len(records)))
	} else {
		o.logger.Info("No records to persist for batch", zap.String("object", cand.Object))
	}

	if err := o.selector.Archive(ctx, cand); err != nil {
		return err
	}

	o.publishCompletion(ctx, cand, runID, len(records))
	return nil
}

// publishCompletion is best-effort: the batch is already archived, so a
// notification failure is logged rather than failing the batch.
func (o *Orchestrator) publishCompletion(ctx context.Context, cand *batch.Candidate, runID string, records int) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"run_id":    runID,
		"batch":     cand.Object,
		"records":   records,
		"timestamp": o.clock.Now().Format(time.RFC3339),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		o.logger.Warn("Failed to publish batch completion",
			zap.String("object", cand.Object), zap.Error(err))
	}
}

func (o *Orchestrator) cleanupScratch(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			o.logger.Warn("Failed to clean up scratch file",
				zap.String("path", p), zap.Error(err))
		}
	}
}
