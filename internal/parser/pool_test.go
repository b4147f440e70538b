package parser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gdeltlens/news-pipeline/internal/news"
)

func TestPoolParseSuccess(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(2, time.Second, nil)
	require.NoError(t, err)
	defer pool.Release()

	res := pool.Parse(context.Background(), "http://example.com/a", samplePage)
	require.Nil(t, res.Failure)
	require.NotNil(t, res.Article)
	require.Equal(t, "Flooding Displaces Thousands in Coastal Region", res.Article.Title)
}

func TestPoolParseEmptyHTMLShortCircuits(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(1, time.Second, nil)
	require.NoError(t, err)
	defer pool.Release()

	res := pool.Parse(context.Background(), "http://example.com/b", "")
	require.NotNil(t, res.Failure)
	require.Equal(t, news.FailureFetch, res.Failure.Kind)
	require.Nil(t, res.Article)
}

func TestPoolParseExtractionErrorIsFailure(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(1, time.Second, nil)
	require.NoError(t, err)
	defer pool.Release()

	res := pool.Parse(context.Background(), "http://example.com/c", "<html><body></body></html>")
	require.NotNil(t, res.Failure)
	require.Equal(t, news.FailureParse, res.Failure.Kind)
	require.Contains(t, res.Failure.Detail, "no extractable content")
}

func TestPoolParseCanceledContext(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(1, time.Minute, nil)
	require.NoError(t, err)
	defer pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := pool.Parse(ctx, "http://example.com/d", samplePage)
	// Either the worker finished first or cancellation won; both are valid,
	// but a cancellation must surface as a parse failure, not a hang.
	if res.Failure != nil {
		require.Equal(t, news.FailureParse, res.Failure.Kind)
	}
}
