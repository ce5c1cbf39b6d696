package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	matchesComputed    prometheus.Counter
	ownershipConflicts prometheus.Counter
	budgetRejections   *prometheus.CounterVec
	slaBreaches        *prometheus.CounterVec
	feesCalculated     prometheus.Counter
}

// NewMetricsService registers the engine's Prometheus collectors.
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	matchesComputed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matches_computed_total",
		Help: "Total agency match computations",
	})

	ownershipConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ownership_conflicts_total",
		Help: "Total candidate submissions rejected for existing ownership",
	})

	budgetRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "budget_rejections_total",
		Help: "Total budget transactions rejected by the ledger guards",
	}, []string{"reason"})

	slaBreaches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sla_breaches_total",
		Help: "Total SLA breaches opened or escalated",
	}, []string{"severity"})

	feesCalculated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "placement_fees_calculated_total",
		Help: "Total placement fee calculations",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		matchesComputed, ownershipConflicts, budgetRejections, slaBreaches, feesCalculated, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		matchesComputed:    matchesComputed,
		ownershipConflicts: ownershipConflicts,
		budgetRejections:   budgetRejections,
		slaBreaches:        slaBreaches,
		feesCalculated:     feesCalculated,
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

// ObserveHTTPRequest records request timing and counts.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation counts a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// IncMatchComputed counts one match computation.
func (m *MetricsService) IncMatchComputed() {
	if m == nil {
		return
	}
	m.matchesComputed.Inc()
}

// IncOwnershipConflict counts one rejected duplicate submission.
func (m *MetricsService) IncOwnershipConflict() {
	if m == nil {
		return
	}
	m.ownershipConflicts.Inc()
}

// IncBudgetRejection counts one guarded ledger rejection by reason
// ("exceeded" or "locked").
func (m *MetricsService) IncBudgetRejection(reason string) {
	if m == nil {
		return
	}
	m.budgetRejections.WithLabelValues(reason).Inc()
}

// IncSLABreach counts one breach by severity.
func (m *MetricsService) IncSLABreach(severity string) {
	if m == nil {
		return
	}
	m.slaBreaches.WithLabelValues(severity).Inc()
}

// IncFeeCalculated counts one placement fee calculation.
func (m *MetricsService) IncFeeCalculated() {
	if m == nil {
		return
	}
	m.feesCalculated.Inc()
}
