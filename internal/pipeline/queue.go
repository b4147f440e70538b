package pipeline

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/metrics"
	"github.com/gdeltlens/news-pipeline/internal/news"
)

// QueueConfig sizes the fetch/parse stage.
type QueueConfig struct {
	// FetchConcurrency caps simultaneous in-flight fetches regardless of
	// batch size.
	FetchConcurrency int
	// QueueFactor times FetchConcurrency is the intermediate queue capacity;
	// a full queue blocks the producer rather than buffering unboundedly.
	QueueFactor int
	// ParseWorkers is the consumer pool size; zero means one per CPU.
	ParseWorkers int
}

func (c QueueConfig) normalized() QueueConfig {
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 10
	}
	if c.QueueFactor <= 0 {
		c.QueueFactor = 2
	}
	if c.ParseWorkers <= 0 {
		c.ParseWorkers = runtime.NumCPU()
	}
	return c
}

// Stats summarizes one fetch/parse run.
type Stats struct {
	Submitted   int
	Fetched     int
	FetchFailed int
	Parsed      int
	ParseFailed int
}

// RunFetchParse pushes every URL through the bounded fetch/parse stage and
// appends exactly one journal entry per URL. The producer gates fetches with a
// counting semaphore and feeds a bounded channel; consumers drain it until it
// is closed (producer done) and empty. A journal append failure fails the
// whole pass, since the journal is the durability checkpoint.
func RunFetchParse(
	ctx context.Context,
	cfg QueueConfig,
	urls []string,
	fetcher news.Fetcher,
	parser news.Parser,
	journal *Journal,
	logger *zap.Logger,
) (Stats, error) {
	cfg = cfg.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan news.FetchResult, cfg.FetchConcurrency*cfg.QueueFactor)

	// Producer: bounded concurrent fetches, results pushed in arrival order.
	go func() {
		defer close(results)
		sem := make(chan struct{}, cfg.FetchConcurrency)
		var fwg sync.WaitGroup
		for _, url := range urls {
			if ctx.Err() != nil {
				break
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
			fwg.Add(1)
			go func(u string) {
				defer fwg.Done()
				defer func() { <-sem }()
				metrics.IncFetchInflight()
				res := fetcher.Fetch(ctx, u)
				metrics.DecFetchInflight()
				if res.Absent() {
					metrics.ObserveFetch("failed")
				} else {
					metrics.ObserveFetch("ok")
				}
				select {
				case results <- res:
				case <-ctx.Done():
				}
			}(url)
		}
		fwg.Wait()
	}()

	// Consumers: parse each arrival and journal it immediately.
	var (
		mu       sync.Mutex
		stats    = Stats{Submitted: len(urls)}
		firstErr error
	)
	var cwg sync.WaitGroup
	for i := 0; i < cfg.ParseWorkers; i++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for res := range results {
				var parsed news.ParseResult
				if res.Absent() {
					parsed = news.ParseResult{URL: res.URL, Failure: res.Failure}
				} else {
					parsed = parser.Parse(ctx, res.URL, res.HTML)
				}

				if err := journal.Append(parsed); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					cancel()
					return
				}

				mu.Lock()
				if res.Absent() {
					stats.FetchFailed++
				} else {
					stats.Fetched++
				}
				if parsed.Failure != nil {
					stats.ParseFailed++
					metrics.ObserveParse("failed")
				} else {
					stats.Parsed++
					metrics.ObserveParse("ok")
				}
				mu.Unlock()
			}
		}()
	}
	cwg.Wait()

	if firstErr != nil {
		return stats, firstErr
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	logger.Info("Fetch/parse stage complete",
		zap.Int("submitted", stats.Submitted),
		zap.Int("fetched", stats.Fetched),
		zap.Int("fetch_failed", stats.FetchFailed),
		zap.Int("parsed", stats.Parsed),
		zap.Int("parse_failed", stats.ParseFailed),
	)
	return stats, nil
}
