// Package api exposes the HTTP query interface over the document store.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/logging"
	"github.com/gdeltlens/news-pipeline/internal/metrics"
	"github.com/gdeltlens/news-pipeline/internal/news"
)

// Keyword search limits. Requests outside the range are clamped, not rejected.
const (
	keywordLimitDefault = 2000
	keywordLimitMax     = 2000
	keywordLimitMin     = 100
)

// Vector search limits.
const (
	vectorLimitDefault = 500
	vectorLimitMax     = 500
	vectorLimitMin     = 50
)

// Server wires HTTP handlers to the document store and the embedding client.
type Server struct {
	router   chi.Router
	docs     news.DocStore
	embedder news.Embedder
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. A nil docs or
// embedder is tolerated at construction; the affected endpoints answer 503
// until the dependency is available.
func NewServer(docs news.DocStore, embedder news.Embedder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = logging.L
	}
	s := &Server{
		docs:     docs,
		embedder: embedder,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/news", s.getNews)
		r.Get("/vector_search", s.vectorSearch)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not ready")
		return
	}
	if err := s.docs.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "document store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// getNews answers keyword searches. Without a q parameter it becomes a pure
// filter query over geolocated documents. fetchAll=true removes the limit but
// only when no other filter is present, to bound worst-case result size.
func (s *Server) getNews(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not ready")
		return
	}

	params := r.URL.Query()
	q := news.KeywordQuery{
		Query:    params.Get("q"),
		DateFrom: params.Get("from"),
		DateTo:   params.Get("to"),
		Limit:    clampLimit(params.Get("limit"), keywordLimitDefault, keywordLimitMin, keywordLimitMax),
	}
	if params.Get("fetchAll") == "true" && q.Query == "" && q.DateFrom == "" && q.DateTo == "" {
		q.FetchAll = true
	}

	page, err := s.docs.KeywordSearch(r.Context(), q)
	if err != nil {
		s.logger.Error("Keyword search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writePage(w, page)
}

// vectorSearch embeds the query text and answers a similarity search.
func (s *Server) vectorSearch(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil || s.embedder == nil {
		writeError(w, http.StatusServiceUnavailable, "vector search not ready")
		return
	}

	params := r.URL.Query()
	text := params.Get("q")
	if text == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit := clampLimit(params.Get("limit"), vectorLimitDefault, vectorLimitMin, vectorLimitMax)

	vector, ok := s.embedder.Embed(r.Context(), text)
	if !ok {
		s.logger.Error("Query embedding failed", zap.String("q", text))
		writeError(w, http.StatusInternalServerError, "failed to embed query")
		return
	}

	page, err := s.docs.VectorSearch(r.Context(), news.VectorQuery{Vector: vector, Limit: limit})
	if err != nil {
		s.logger.Error("Vector search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writePage(w, page)
}

// clampLimit parses a limit parameter, substituting def when missing or
// malformed and clamping the result into [min, max].
func clampLimit(raw string, def, min, max int) int {
	limit := def
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if limit < min {
		limit = min
	}
	if limit > max {
		limit = max
	}
	return limit
}

type pageResponse struct {
	Results      []news.SearchResult `json:"results"`
	Count        int                 `json:"count"`
	// LimitApplied serializes as null when no truncation happened; the key
	// is always present in the payload.
	LimitApplied *int `json:"limit_applied"`
}

func writePage(w http.ResponseWriter, page news.SearchPage) {
	results := page.Results
	if results == nil {
		results = []news.SearchResult{}
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Results:      results,
		Count:        page.Count,
		LimitApplied: page.LimitApplied,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.ObserveHTTPRequest(r.Method, route, ww.status, time.Since(start))
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.L.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
