// Package metrics collects and exposes Prometheus metrics
// for the sitemap pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments.
// A nil *Collector is a valid no-op, which keeps tests
// and the CLI free of a registry.
type Collector struct {
	registry      *prometheus.Registry
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	builds        prometheus.Counter
	buildFailures prometheus.Counter
	buildSeconds  prometheus.Histogram
	pings         *prometheus.CounterVec
}

// New creates a collector with its own registry
func New() *Collector {

	c := &Collector{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "news_sitemap_cache_hits_total",
			Help: "Sitemap served straight from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "news_sitemap_cache_misses_total",
			Help: "Sitemap requests that fell through to a build.",
		}),
		builds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "news_sitemap_builds_total",
			Help: "Completed sitemap builds.",
		}),
		buildFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "news_sitemap_build_failures_total",
			Help: "Sitemap builds that ended in the empty-document fallback.",
		}),
		buildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "news_sitemap_build_duration_seconds",
			Help:    "Duration of sitemap builds.",
			Buckets: prometheus.DefBuckets,
		}),
		pings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "news_sitemap_pings_total",
			Help: "Outbound search-engine pings by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}

	c.registry.MustRegister(
		c.cacheHits, c.cacheMisses,
		c.builds, c.buildFailures, c.buildSeconds,
		c.pings,
	)

	return c
}

// Handler exposes the metrics over HTTP
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordCacheHit() {
	if c != nil {
		c.cacheHits.Inc()
	}
}

func (c *Collector) RecordCacheMiss() {
	if c != nil {
		c.cacheMisses.Inc()
	}
}

func (c *Collector) RecordBuild(took time.Duration) {
	if c != nil {
		c.builds.Inc()
		c.buildSeconds.Observe(took.Seconds())
	}
}

func (c *Collector) RecordBuildFailure() {
	if c != nil {
		c.buildFailures.Inc()
	}
}

func (c *Collector) RecordPing(endpoint, outcome string) {
	if c != nil {
		c.pings.WithLabelValues(endpoint, outcome).Inc()
	}
}
