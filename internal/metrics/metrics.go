package metrics

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates pipeline counters. A nil *Collector is valid and all
// methods are no-ops, so metrics stay optional (enabled via METRICS_ADDR).
type Collector struct {
	reg *prometheus.Registry

	RoutesProcessed prometheus.Counter
	RoutesSkipped   prometheus.Counter
	RoutesFailed    prometheus.Counter

	ChunksMerged  prometheus.Counter
	ChunksDropped prometheus.Counter

	OSRMRequests prometheus.Counter
	OSRMRetries  prometheus.Counter
	OSRMFailures prometheus.Counter
	OSRMLatency  prometheus.Histogram

	mu      sync.Mutex
	latency WelfordState
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RoutesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapper_routes_processed_total",
			Help: "Total routes with an assembled geometry artifact.",
		}),
		RoutesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapper_routes_skipped_total",
			Help: "Total routes skipped for having fewer than 2 stops.",
		}),
		RoutesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapper_routes_failed_total",
			Help: "Total routes abandoned on unexpected read/parse errors.",
		}),
		ChunksMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapper_chunks_merged_total",
			Help: "Total stop chunks merged into route geometries.",
		}),
		ChunksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapper_chunks_dropped_total",
			Help: "Total stop chunks that contributed no geometry.",
		}),
		OSRMRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapper_osrm_requests_total",
			Help: "Total OSRM route requests issued.",
		}),
		OSRMRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapper_osrm_retries_total",
			Help: "Total OSRM transport-failure retries.",
		}),
		OSRMFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapper_osrm_failures_total",
			Help: "Total OSRM requests that yielded no usable geometry.",
		}),
		OSRMLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "snapper_osrm_latency_seconds",
			Help:    "Latency of individual OSRM HTTP attempts.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	reg.MustRegister(
		c.RoutesProcessed, c.RoutesSkipped, c.RoutesFailed,
		c.ChunksMerged, c.ChunksDropped,
		c.OSRMRequests, c.OSRMRetries, c.OSRMFailures,
		c.OSRMLatency,
	)

	return c
}

// ObserveOSRMLatency records one OSRM attempt duration in both the
// histogram and the running Welford summary.
func (c *Collector) ObserveOSRMLatency(d time.Duration) {
	if c == nil {
		return
	}
	c.OSRMLatency.Observe(d.Seconds())

	c.mu.Lock()
	c.latency.Update(d.Seconds())
	c.mu.Unlock()
}

// LatencySummary returns mean and standard deviation of OSRM attempt
// latencies in seconds, for the end-of-run summary line.
func (c *Collector) LatencySummary() (mean, stddev float64, count int) {
	if c == nil {
		return 0, 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency.Mean, c.latency.StdDev(), c.latency.Count
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
