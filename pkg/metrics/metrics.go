package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of the journaling service on its own registry.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Turn metrics
	Turns        *prometheus.CounterVec
	TurnDuration prometheus.Histogram
	Transitions  *prometheus.CounterVec

	// Topic cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter

	// Memory service metrics
	MemoryLookups *prometheus.CounterVec
}

// NewCollector creates a collector with a fresh registry. Each call is
// independent, so tests can create as many as they need.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Processed turns by outcome",
			},
			[]string{"outcome"},
		),
		TurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Turn processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_transitions_total",
				Help:      "Phase transitions by source and target phase",
			},
			[]string{"from", "to"},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "topic_cache_hits_total",
				Help:      "Total number of topic cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "topic_cache_misses_total",
				Help:      "Total number of topic cache misses",
			},
		),
		CacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "topic_cache_evictions_total",
				Help:      "Expired topic cache entries evicted on read",
			},
		),
		MemoryLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memory_lookups_total",
				Help:      "Long-term memory lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		c.HTTPRequests,
		c.HTTPDuration,
		c.Turns,
		c.TurnDuration,
		c.Transitions,
		c.CacheHits,
		c.CacheMisses,
		c.CacheEvictions,
		c.MemoryLookups,
	)

	return c
}

// Registry returns the registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
