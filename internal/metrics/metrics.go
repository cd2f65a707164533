// Package metrics exposes Prometheus instrumentation for map sessions, the
// report refresh loop and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/civic-map/internal/mapview"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "civicmap"

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultCountBuckets        = []float64{0, 10, 50, 100, 500, 1000, 5000, 10000}
)

// Metrics holds every collector the service records into
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive     *prometheus.GaugeVec
	SessionTransitions *prometheus.CounterVec
	MarkerSyncs        prometheus.Counter
	MarkersPlaced      prometheus.Histogram
	HeatApplies        prometheus.Counter
	HeatPoints         prometheus.Histogram
	OverlayFailures    *prometheus.CounterVec

	ReportFetches *prometheus.CounterVec
	ReportsCached prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a private registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		SessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active", Help: "Live map sessions by lifecycle state",
		}, []string{"state"}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "session_transitions_total", Help: "Map session state transitions",
		}, []string{"to"}),
		MarkerSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "marker_syncs_total", Help: "Marker overlay rebuilds",
		}),
		MarkersPlaced: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "markers_placed", Help: "Markers placed per rebuild", Buckets: DefaultCountBuckets,
		}),
		HeatApplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "heat_applies_total", Help: "Heat overlay point updates",
		}),
		HeatPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "heat_points", Help: "Points per heat overlay update", Buckets: DefaultCountBuckets,
		}),
		OverlayFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "overlay_failures_total", Help: "Failed overlay operations",
		}, []string{"op"}),
		ReportFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "report_fetches_total", Help: "Report refreshes by outcome",
		}, []string{"result"}),
		ReportsCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "reports_cached", Help: "Reports in the current snapshot",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration",
			Buckets: DefaultHTTPDurationBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		m.SessionsActive, m.SessionTransitions, m.MarkerSyncs, m.MarkersPlaced,
		m.HeatApplies, m.HeatPoints, m.OverlayFailures, m.ReportFetches, m.ReportsCached,
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
	)
	return m
}

// Registry returns the registry backing the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency. Paths are the route
// templates so session ids do not explode label cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// SessionObserver returns a mapview.Observer recording into m
func (m *Metrics) SessionObserver() mapview.Observer {
	return sessionObserver{m}
}

type sessionObserver struct{ m *Metrics }

// Unmounted and disposed sessions are not counted as active.
func tracked(s mapview.State) bool {
	return s != mapview.StateUnmounted && s != mapview.StateDisposed
}

func (o sessionObserver) StateChanged(from, to mapview.State) {
	if tracked(from) {
		o.m.SessionsActive.WithLabelValues(from.String()).Dec()
	}
	if tracked(to) {
		o.m.SessionsActive.WithLabelValues(to.String()).Inc()
	}
	o.m.SessionTransitions.WithLabelValues(to.String()).Inc()
}

func (o sessionObserver) MarkersSynced(markers int) {
	o.m.MarkerSyncs.Inc()
	o.m.MarkersPlaced.Observe(float64(markers))
}

func (o sessionObserver) HeatApplied(points int) {
	o.m.HeatApplies.Inc()
	o.m.HeatPoints.Observe(float64(points))
}

func (o sessionObserver) OverlayFailed(op string) {
	o.m.OverlayFailures.WithLabelValues(op).Inc()
}
