// Package metrics holds the Prometheus collectors of the cart service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cart_service"

// Metrics owns a registry so that tests can build independent instances.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight  prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	cartMutations *prometheus.CounterVec
	linesPruned   prometheus.Counter
	ordersCreated prometheus.Counter
	checkouts     *prometheus.CounterVec
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart mutations by operation and result.",
		}, []string{"operation", "result"}),
		linesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cart_lines_pruned_total",
			Help: "Cart lines dropped because their product left the catalog.",
		}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders confirmed from a cart.",
		}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Payment checkout sessions by result.",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.cartMutations,
		m.linesPruned,
		m.ordersCreated,
		m.checkouts,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations by route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// CartMutation counts one cart operation. A nil receiver is a no-op so that
// services can run without metrics in tests.
func (m *Metrics) CartMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(operation, result(err)).Inc()
}

func (m *Metrics) LinesPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.linesPruned.Add(float64(n))
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) CheckoutSession(err error) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
