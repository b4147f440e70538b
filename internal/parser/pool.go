package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/news"
)

// Pool dispatches extraction to a fixed set of isolated workers. A panic or a
// hang inside one extraction is absorbed into a parse failure on that item
// instead of propagating to the caller.
type Pool struct {
	pool    *ants.Pool
	timeout time.Duration
	logger  *zap.Logger
}

// NewPool creates a worker pool of the given size. Timeout bounds a single
// extraction; it defaults to 30s.
func NewPool(size int, timeout time.Duration, logger *zap.Logger) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create parse pool: %w", err)
	}
	return &Pool{pool: p, timeout: timeout, logger: logger}, nil
}

// Parse runs extraction on a pool worker and awaits its result. An empty HTML
// sentinel (upstream fetch failure) short-circuits to a failure marker without
// touching the pool.
func (p *Pool) Parse(ctx context.Context, url, html string) news.ParseResult {
	if html == "" {
		return news.ParseResult{URL: url, Failure: &news.Failure{Kind: news.FailureFetch}}
	}

	done := make(chan news.ParseResult, 1)
	task := func() {
		res := news.ParseResult{URL: url}
		defer func() {
			if r := recover(); r != nil {
				res = news.ParseResult{URL: url, Failure: &news.Failure{
					Kind:   news.FailureParse,
					Detail: fmt.Sprintf("panic: %v", r),
				}}
			}
			done <- res
		}()
		article, err := Extract(url, html)
		if err != nil {
			res.Failure = news.NewFailure(news.FailureParse, err)
			return
		}
		res.Article = &article
	}

	if err := p.pool.Submit(task); err != nil {
		return news.ParseResult{URL: url, Failure: news.NewFailure(news.FailureParse, err)}
	}

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return news.ParseResult{URL: url, Failure: news.NewFailure(news.FailureParse, ctx.Err())}
	case <-time.After(p.timeout):
		p.logger.Warn("Parse timed out", zap.String("url", url), zap.Duration("timeout", p.timeout))
		return news.ParseResult{URL: url, Failure: &news.Failure{
			Kind:   news.FailureParse,
			Detail: fmt.Sprintf("timeout after %s", p.timeout),
		}}
	}
}

// Release shuts the pool down.
func (p *Pool) Release() {
	p.pool.Release()
}
