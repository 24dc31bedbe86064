package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and ledger activity.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	paymentsRecorded   *prometheus.CounterVec
	fastProcessUnits   *prometheus.CounterVec
	feeCascades        *prometheus.CounterVec
	settlementRequests *prometheus.CounterVec
	bookingConflicts   prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	paymentsRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payments_recorded_total",
		Help: "Payments recorded, split by method and whether the call was an idempotent replay",
	}, []string{"method", "replayed"})

	fastProcessUnits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_fast_process_units_total",
		Help: "Fast-process units by kind and outcome",
	}, []string{"unit", "outcome"})

	feeCascades := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_fee_cascades_total",
		Help: "Teacher default-fee cascades by outcome",
	}, []string{"outcome"})

	settlementRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_change_requests_total",
		Help: "Settlement change requests by kind and lifecycle event",
	}, []string{"kind", "event"})

	bookingConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_conflicts_total",
		Help: "Booking writes rejected by the hall overlap rule",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		paymentsRecorded, fastProcessUnits, feeCascades, settlementRequests, bookingConflicts, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		paymentsRecorded:   paymentsRecorded,
		fastProcessUnits:   fastProcessUnits,
		feeCascades:        feeCascades,
		settlementRequests: settlementRequests,
		bookingConflicts:   bookingConflicts,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// PaymentRecorded counts a RecordPayment outcome.
func (m *MetricsService) PaymentRecorded(method string, replayed bool) {
	if m == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(method, fmt.Sprintf("%t", replayed)).Inc()
}

// FastProcessUnit counts one attendance or payment unit of a fast-process run.
func (m *MetricsService) FastProcessUnit(unit string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.fastProcessUnits.WithLabelValues(unit, outcome).Inc()
}

// FeeCascade counts a cascade attempt.
func (m *MetricsService) FeeCascade(ok bool) {
	if m == nil {
		return
	}
	outcome := "committed"
	if !ok {
		outcome = "rolled_back"
	}
	m.feeCascades.WithLabelValues(outcome).Inc()
}

// SettlementRequest counts change request lifecycle events (filed, approved, rejected).
func (m *MetricsService) SettlementRequest(kind, event string) {
	if m == nil {
		return
	}
	m.settlementRequests.WithLabelValues(kind, event).Inc()
}

// BookingConflict counts a rejected booking write.
func (m *MetricsService) BookingConflict() {
	if m == nil {
		return
	}
	m.bookingConflicts.Inc()
}
