package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes recorded by list screens.
const (
	FetchApplied   = "applied"
	FetchStale     = "stale"
	FetchUnmounted = "unmounted"
	FetchError     = "error"
)

// MetricsService encapsulates Prometheus instrumentation and keeps a few
// counters for the admin snapshot.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	fetches         *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	openScreens     prometheus.Gauge

	requestCount   uint64
	backendCalls   uint64
	staleDiscards  uint64
	mutationCount  uint64
	cacheHitCount  uint64
	cacheMissCount uint64
	openCount      int64
}

// MetricsSnapshot is a lightweight summary for the admin endpoint.
type MetricsSnapshot struct {
	RequestsTotal  uint64    `json:"requestsTotal"`
	BackendCalls   uint64    `json:"backendCalls"`
	StaleDiscards  uint64    `json:"staleDiscards"`
	MutationsTotal uint64    `json:"mutationsTotal"`
	CacheHitRatio  float64   `json:"cacheHitRatio"`
	OpenScreens    int64     `json:"openScreens"`
	Goroutines     int       `json:"goroutines"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// NewMetricsService registers the gateway collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of gateway HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of gateway HTTP requests",
	}, []string{"method", "path", "status"})

	backendDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_duration_seconds",
		Help:    "Duration of calls to the CDRP backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "collection", "status"})

	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "screen_fetches_total",
		Help: "List fetches by screen kind and outcome",
	}, []string{"kind", "outcome"})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "screen_mutations_total",
		Help: "Dispatched mutations by screen kind, operation and outcome",
	}, []string{"kind", "operation", "outcome"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "detail_cache_latency_seconds",
		Help:    "Latency for detail cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "detail_cache_hits_total",
		Help: "Total detail cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "detail_cache_misses_total",
		Help: "Total detail cache misses",
	})

	openScreens := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "open_screens",
		Help: "Number of mounted screens",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, backendDuration, fetches, mutations,
		cacheLatency, cacheHits, cacheMisses, openScreens, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		backendDuration: backendDuration,
		fetches:         fetches,
		mutations:       mutations,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		openScreens:     openScreens,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records gateway request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// ObserveBackendCall implements backend.Observer. Status 0 means the call
// never got a response.
func (m *MetricsService) ObserveBackendCall(method, collection string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if collection == "" {
		collection = "other"
	}
	m.backendDuration.WithLabelValues(method, collection, strconv.Itoa(status)).Observe(duration.Seconds())
	atomic.AddUint64(&m.backendCalls, 1)
}

// RecordFetch counts a list fetch outcome.
func (m *MetricsService) RecordFetch(kind, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(kind, outcome).Inc()
	if outcome == FetchStale {
		atomic.AddUint64(&m.staleDiscards, 1)
	}
}

// RecordMutation counts a dispatched mutation.
func (m *MetricsService) RecordMutation(kind, operation, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind, operation, outcome).Inc()
	atomic.AddUint64(&m.mutationCount, 1)
}

// RecordCacheOperation records a detail cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ScreenOpened increments the mounted screen gauge.
func (m *MetricsService) ScreenOpened() {
	if m == nil {
		return
	}
	m.openScreens.Inc()
	atomic.AddInt64(&m.openCount, 1)
}

// ScreenClosed decrements the mounted screen gauge.
func (m *MetricsService) ScreenClosed() {
	if m == nil {
		return
	}
	m.openScreens.Dec()
	atomic.AddInt64(&m.openCount, -1)
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return MetricsSnapshot{
		RequestsTotal:  atomic.LoadUint64(&m.requestCount),
		BackendCalls:   atomic.LoadUint64(&m.backendCalls),
		StaleDiscards:  atomic.LoadUint64(&m.staleDiscards),
		MutationsTotal: atomic.LoadUint64(&m.mutationCount),
		CacheHitRatio:  ratio,
		OpenScreens:    atomic.LoadInt64(&m.openCount),
		Goroutines:     runtime.NumGoroutine(),
		GeneratedAt:    time.Now().UTC(),
	}
}
