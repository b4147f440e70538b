// Package metrics exposes Prometheus collectors for the ingestion pipeline and
// query service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineFetchesTotal    *prometheus.CounterVec
	pipelineFetchInflight   prometheus.Gauge
	pipelineParsesTotal     *prometheus.CounterVec
	pipelineBatchesTotal    *prometheus.CounterVec
	pipelineRecordsTotal    prometheus.Counter
	embeddingRequestsTotal  *prometheus.CounterVec
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDurationSecs *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pipelineFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_fetches_total",
				Help: "Total number of URL fetches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		pipelineFetchInflight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_fetch_inflight",
				Help: "Number of fetches currently in flight.",
			},
		)

		pipelineParsesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_parses_total",
				Help: "Total number of articles parsed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		pipelineBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_batches_total",
				Help: "Total number of batch files processed, labeled by status.",
			},
			[]string{"status"},
		)

		pipelineRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_records_total",
				Help: "Total number of enriched records persisted.",
			},
		)

		embeddingRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedding_requests_total",
				Help: "Total number of embedding requests, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch increments the fetch counter for the given outcome.
func ObserveFetch(outcome string) {
	pipelineFetchesTotal.WithLabelValues(outcome).Inc()
}

// IncFetchInflight increments the in-flight fetch gauge.
func IncFetchInflight() {
	pipelineFetchInflight.Inc()
}

// DecFetchInflight decrements the in-flight fetch gauge.
func DecFetchInflight() {
	pipelineFetchInflight.Dec()
}

// ObserveParse increments the parse counter for the given outcome.
func ObserveParse(outcome string) {
	pipelineParsesTotal.WithLabelValues(outcome).Inc()
}

// ObserveBatch increments the batch counter for the given status.
func ObserveBatch(status string) {
	pipelineBatchesTotal.WithLabelValues(status).Inc()
}

// AddRecords adds to the persisted record counter.
func AddRecords(n int) {
	pipelineRecordsTotal.Add(float64(n))
}

// ObserveEmbedding increments the embedding counter for the given outcome.
func ObserveEmbedding(outcome string) {
	embeddingRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecs.WithLabelValues(method, route).Observe(duration.Seconds())
}
