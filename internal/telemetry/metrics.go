// Package telemetry exposes Prometheus collectors for the crawl engine and
// an optional HTTP listener serving them.
package telemetry

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlerPagesTotal     *prometheus.CounterVec
	crawlerRetriesTotal   prometheus.Counter
	crawlerRobotsDenied   prometheus.Counter
	cacheLookupsTotal     *prometheus.CounterVec
	fetchDurationSeconds  prometheus.Histogram
	crawlerActiveWorkers  prometheus.Gauge
	pagesScoredByClass    *prometheus.CounterVec
	httpRequestsTotal     *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attuario_pages_total",
				Help: "Total number of pages crawled, labeled by outcome and HTTP status.",
			},
			[]string{"outcome", "status"},
		)

		crawlerRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "attuario_fetch_retries_total",
				Help: "Total number of fetch retry attempts.",
			},
		)

		crawlerRobotsDenied = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "attuario_robots_denied_total",
				Help: "Total number of URLs skipped due to robots.txt rules.",
			},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attuario_cache_lookups_total",
				Help: "Total response cache lookups, labeled by result (hit/miss).",
			},
			[]string{"result"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "attuario_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "attuario_active_workers",
				Help: "Number of workers currently fetching a page.",
			},
		)

		pagesScoredByClass = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attuario_pages_scored_total",
				Help: "Total number of pages scored, labeled by classification.",
			},
			[]string{"class"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attuario_http_requests_total",
				Help: "Requests served by the metrics listener, labeled by method, route and status.",
			},
			[]string{"method", "route", "status"},
		)
	})
}

// ObservePage increments the crawl page counter for the given outcome.
func ObservePage(outcome string, statusCode int, duration time.Duration) {
	Init()
	crawlerPagesTotal.WithLabelValues(outcome, strconv.Itoa(statusCode)).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveRetry increments the retry counter.
func ObserveRetry() {
	Init()
	crawlerRetriesTotal.Inc()
}

// ObserveRobotsDenied increments the robots denial counter.
func ObserveRobotsDenied() {
	Init()
	crawlerRobotsDenied.Inc()
}

// ObserveCacheLookup records a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	crawlerActiveWorkers.Dec()
}

// ObserveScore increments the scored-pages counter for a classification.
func ObserveScore(class string) {
	Init()
	pagesScoredByClass.WithLabelValues(class).Inc()
}

// ObserveHTTPRequest records one request served by the metrics listener.
func ObserveHTTPRequest(method, route string, status int) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
