package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gdeltlens/news-pipeline/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

func newEmbedServer(t *testing.T, dims int, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		require.Equal(t, "/embed", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Model string `json:"model"`
			Text  string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Text)

		vec := make([]float32, dims)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
}

func TestEmbedSuccess(t *testing.T) {
	t.Parallel()

	srv := newEmbedServer(t, 768, nil)
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, Model: "all-mpnet-base-v2", Dimensions: 768}, nil)
	vec, ok := client.Embed(context.Background(), "a summary of the news")
	require.True(t, ok)
	require.Len(t, vec, 768)
}

func TestEmbedEmptyInput(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := newEmbedServer(t, 768, &requests)
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, Dimensions: 768}, nil)
	vec, ok := client.Embed(context.Background(), "   ")
	require.False(t, ok)
	require.Nil(t, vec)
	require.Zero(t, requests.Load())
}

func TestEmbedWarmsUpOnce(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := newEmbedServer(t, 16, &requests)
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, Dimensions: 16}, nil)
	_, ok := client.Embed(context.Background(), "first")
	require.True(t, ok)
	_, ok = client.Embed(context.Background(), "second")
	require.True(t, ok)

	// Warmup probe plus one request per Embed call.
	require.Equal(t, int64(3), requests.Load())
}

func TestEmbedDimensionMismatch(t *testing.T) {
	t.Parallel()

	srv := newEmbedServer(t, 5, nil)
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, Dimensions: 768}, nil)
	vec, ok := client.Embed(context.Background(), "some text")
	require.False(t, ok)
	require.Nil(t, vec)
}

func TestEmbedRetriesWarmupAfterFailure(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// The endpoint is down for the first call and healthy afterwards.
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		vec := make([]float32, 16)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, Dimensions: 16}, nil)
	_, ok := client.Embed(context.Background(), "first")
	require.False(t, ok)

	vec, ok := client.Embed(context.Background(), "second")
	require.True(t, ok)
	require.Len(t, vec, 16)

	// Failed warmup, retried warmup, then the second call's request.
	require.Equal(t, int64(3), requests.Load())
}

func TestEmbedCanceledCallerDoesNotDisableClient(t *testing.T) {
	t.Parallel()

	srv := newEmbedServer(t, 16, nil)
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, Dimensions: 16}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := client.Embed(ctx, "first")
	require.False(t, ok)

	vec, ok := client.Embed(context.Background(), "second")
	require.True(t, ok)
	require.Len(t, vec, 16)
}

func TestEmbedSendsAuthHeader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		vec := make([]float32, 4)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, Dimensions: 4, AuthToken: "sekrit"}, nil)
	_, ok := client.Embed(context.Background(), "text")
	require.True(t, ok)
}
