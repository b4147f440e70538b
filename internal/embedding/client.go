// Package embedding provides a client for a sentence-transformers inference
// endpoint. The underlying model is expensive to warm up, so the first call
// performs a handshake and every later call reuses the session. A failed
// handshake is retried on the next call rather than cached.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/metrics"
	"github.com/gdeltlens/news-pipeline/internal/news"
)

// Config parameterizes the embedding provider.
type Config struct {
	Endpoint   string
	Model      string
	Dimensions int
	AuthToken  string
	Timeout    time.Duration
}

// Client implements news.Embedder over HTTP. Failures are absorbed: Embed
// returns (nil, false) rather than an error so the merge path records an
// explicit marker and moves on.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	warmMu sync.Mutex
	warm   bool
}

// NewClient builds a Client. The model is not contacted until first use.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed converts text to a fixed-dimension vector. Empty input and all
// internal failures return (nil, false).
func (c *Client) Embed(ctx context.Context, text string) ([]float32, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	if !c.ensureWarm() {
		metrics.ObserveEmbedding("unavailable")
		return nil, false
	}

	vec, err := c.request(ctx, text)
	if err != nil {
		c.logger.Warn("Embedding request failed",
			zap.String("text_prefix", prefix(text, 50)), zap.Error(err))
		metrics.ObserveEmbedding("failed")
		return nil, false
	}
	if len(vec) != c.cfg.Dimensions {
		c.logger.Warn("Embedding dimensionality mismatch",
			zap.Int("got", len(vec)), zap.Int("want", c.cfg.Dimensions))
		metrics.ObserveEmbedding("failed")
		return nil, false
	}
	metrics.ObserveEmbedding("ok")
	return vec, true
}

// ensureWarm loads the remote model if no prior call has succeeded yet.
// The handshake runs on its own context so a caller's deadline cannot
// leave the client stuck in a cold state.
func (c *Client) ensureWarm() bool {
	c.warmMu.Lock()
	defer c.warmMu.Unlock()
	if c.warm {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	if err := c.warmUp(ctx); err != nil {
		return false
	}
	c.warm = true
	return true
}

// warmUp loads the remote model and verifies its dimensionality.
func (c *Client) warmUp(ctx context.Context) error {
	c.logger.Info("Initializing embedding model; first call may take a moment",
		zap.String("model", c.cfg.Model))
	vec, err := c.request(ctx, "warmup")
	if err != nil {
		c.logger.Error("Embedding model unavailable", zap.Error(err))
		return err
	}
	if len(vec) != c.cfg.Dimensions {
		err := fmt.Errorf("model returned %d dimensions, want %d", len(vec), c.cfg.Dimensions)
		c.logger.Error("Embedding model misconfigured", zap.Error(err))
		return err
	}
	c.logger.Info("Embedding model ready")
	return nil
}

func (c *Client) request(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.cfg.Model, Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.Endpoint, "/")+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: status %d", resp.StatusCode)
	}
	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embed decode: %w", err)
	}
	return out.Embedding, nil
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var _ news.Embedder = (*Client)(nil)
