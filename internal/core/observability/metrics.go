package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "outcome"},
	)

	providerPagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_pages_total",
			Help: "Result pages fetched from the places provider.",
		},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Duration of cache backend operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)
)

// Collectors lists every collector owned by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		providerPagesTotal,
		cacheResults,
		cacheOpDurationSeconds,
	}
}

// Register adds the collectors to reg; already registered collectors are ignored.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, err error, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream, result(err)).Observe(durationSeconds)
}

func IncProviderPage() {
	providerPagesTotal.Inc()
}

func IncCacheHit() {
	cacheResults.WithLabelValues("hit").Inc()
}

func IncCacheMiss() {
	cacheResults.WithLabelValues("miss").Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpDurationSeconds.WithLabelValues(op, result(err)).Observe(durationSeconds)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
