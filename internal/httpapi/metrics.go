package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/orchestrator"
)

// Metrics holds the Prometheus collectors for one process. It implements
// orchestrator.Observer.
type Metrics struct {
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	stages     *prometheus.HistogramVec
	batchItems *prometheus.CounterVec
	http       *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelfly_requests_total",
			Help: "Processed requests by task and outcome.",
		}, []string{"task", "outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelfly_stage_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"task", "stage"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelfly_batch_items_total",
			Help: "Batch items by outcome.",
		}, []string{"outcome"}),
		http: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelfly_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.stages,
		m.batchItems,
		m.http,
	)
	return m
}

// StageDone implements orchestrator.Observer.
func (m *Metrics) StageDone(task orchestrator.Task, stage orchestrator.State, elapsed time.Duration) {
	m.stages.WithLabelValues(string(task), string(stage)).Observe(elapsed.Seconds())
}

// RequestDone implements orchestrator.Observer.
func (m *Metrics) RequestDone(task orchestrator.Task, err error) {
	m.requests.WithLabelValues(string(task), outcome(err)).Inc()
}

// BatchDone records the per-item outcomes of a batch.
func (m *Metrics) BatchDone(res *orchestrator.BatchResult) {
	ok := float64(res.ProcessedCount)
	m.batchItems.WithLabelValues("success").Add(ok)
	m.batchItems.WithLabelValues("failure").Add(float64(res.TotalRequested) - ok)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// instrument records the latency of every routed request.
func (m *Metrics) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.http.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
