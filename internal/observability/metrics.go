package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/pasture-weather-service/internal/traffic"
	"github.com/kjstillabower/pasture-weather-service/internal/weathergen"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	// HTTP request rate. Watch for: sudden drops (service down) or spikes.
	HTTPRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "httpRequestsTotal",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "statusCode"})

	// HTTP latency per route template.
	HTTPRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "httpRequestDurationSeconds",
		Help:    "HTTP request latency in seconds (per request)",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Name: "httpRequestsInFlight",
		Help: "Number of HTTP requests currently being served",
	})

	// Generation outcomes: success, invalid (rejected input), error.
	GenerationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "generationsTotal",
		Help: "Weather series generations by outcome",
	}, []string{"outcome"})

	// Pure generation time, excluding cache and encoding.
	GenerationDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "generationDurationSeconds",
		Help:    "Time spent generating a weather series",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	})

	// Generated day records. rate() gives simulated days per second.
	GeneratedDaysTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "generatedDaysTotal",
		Help: "Total number of daily weather records generated",
	})

	// Segments by climate type. Label set is the closed catalogue.
	SegmentsByClimateTypeTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentsByClimateTypeTotal",
		Help: "Generated segments by climate type",
	}, []string{"climateType"})

	// Cache hits per cache type. Misses = generationsTotal{outcome="success"} for reproducible requests.
	CacheHitsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "cacheHitsTotal",
		Help: "Total number of cache hits",
	}, []string{"cacheType"})

	// Cache backend failures by operation (get, set) and error type (timeout, connection, unknown).
	CacheErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "cacheErrorsTotal",
		Help: "Cache backend errors by operation and error type",
	}, []string{"operation", "errorType"})

	CacheOperationDurationSeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cacheOperationDurationSeconds",
		Help:    "Cache operation latency in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
	}, []string{"operation", "result"})

	// Concurrent misses on one key. Watch for: bursts on new presets.
	CacheStampedeDetectedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "cacheStampedeDetectedTotal",
		Help: "Cache misses that overlapped another miss for the same key",
	})

	CacheStampedeConcurrency = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "cacheStampedeConcurrency",
		Help:    "Concurrent misses for a key when a stampede is detected",
		Buckets: []float64{2, 3, 5, 10, 20, 50},
	})

	// Requests answered by a generation shared with concurrent identical requests.
	RequestCoalescingHitsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "requestCoalescingHitsTotal",
		Help: "Requests whose generation was shared with an identical concurrent request",
	})

	RequestCoalescingWaitSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "requestCoalescingWaitSeconds",
		Help:    "Time coalesced callers waited for the shared result",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
	})

	CacheWarmingTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "cacheWarmingTotal",
		Help: "Preset warming passes started",
	})

	CacheWarmingErrorsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "cacheWarmingErrorsTotal",
		Help: "Preset warming passes with at least one failure",
	})

	CacheWarmingDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "cacheWarmingDurationSeconds",
		Help:    "Duration of preset warming passes",
		Buckets: prometheus.DefBuckets,
	})

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "rateLimitDeniedTotal",
		Help: "Total number of requests denied by rate limiter (429)",
	})

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	for _, info := range weathergen.Catalogue() {
		SegmentsByClimateTypeTotal.WithLabelValues(string(info.Type))
	}
}

// RecordSegments counts each segment under its climate type. Types outside the
// catalogue never reach here; generation rejects them first.
func RecordSegments(segments []weathergen.Segment) {
	for _, s := range segments {
		SegmentsByClimateTypeTotal.WithLabelValues(string(s.ClimateType)).Inc()
	}
}

// RegisterRateLimitGauges exposes request and denial counts over the overload window.
// Call once from main after config load.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rateLimitRequestsInWindow",
			Help: "Requests on the rate-limited path in the sliding window",
		}, func() float64 { return float64(traffic.Requests(window)) })
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rateLimitRejectsInWindow",
			Help: "429 responses in the sliding window",
		}, func() float64 { return float64(traffic.Denials(window)) })
	})
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
