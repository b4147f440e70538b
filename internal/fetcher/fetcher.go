// Package fetcher retrieves article HTML over HTTP with robust charset
// handling. All failures are returned as absence markers on the FetchResult so
// one bad URL can never stop a batch.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/news"
)

const maxBodyBytes = 10 << 20

// Config controls HTTP client behavior.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Client fetches one URL per call using a shared http.Client.
type Client struct {
	http      *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewClient wires an HTTP client; the timeout defaults to 20s.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Fetch retrieves the URL and decodes the body. Non-2xx responses, non-text
// content types, and undecodable bodies all yield an absence result.
func (c *Client) Fetch(ctx context.Context, url string) news.FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return news.FetchResult{URL: url, Failure: news.NewFailure(news.FailureFetch, err)}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Fetch failed", zap.String("url", url), zap.Error(err))
		return news.FetchResult{URL: url, Failure: news.NewFailure(news.FailureFetch, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return news.FetchResult{URL: url, Failure: &news.Failure{
			Kind:   news.FailureFetch,
			Detail: fmt.Sprintf("status %d", resp.StatusCode),
		}}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return news.FetchResult{URL: url, Failure: news.NewFailure(news.FailureFetch, err)}
	}

	// Only text/html and text/plain bodies are decodable article content;
	// a missing Content-Type gives no such guarantee, so it is skipped too.
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") &&
		!strings.Contains(contentType, "text/plain") {
		c.logger.Debug("Skipping non-text content",
			zap.String("url", url), zap.String("content_type", contentType))
		return news.FetchResult{URL: url, Failure: &news.Failure{
			Kind:   news.FailureFetch,
			Detail: fmt.Sprintf("non-text content type %q", contentType),
		}}
	}

	text, charsetUsed, ok := decodeBody(raw, declaredCharset(contentType))
	if !ok {
		c.logger.Warn("Critical decode failure", zap.String("url", url))
		return news.FetchResult{URL: url, Failure: &news.Failure{
			Kind:   news.FailureFetch,
			Detail: "decode failure",
		}}
	}

	return news.FetchResult{URL: url, HTML: text, Charset: charsetUsed}
}

// declaredCharset extracts the charset parameter from a Content-Type header.
func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}
