package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's Prometheus metrics. It implements
// domain.DispatchObserver.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	notificationsTotal  *prometheus.CounterVec
	postsAnalyzedTotal  prometheus.Counter
	rateUpdatesTotal    prometheus.Counter
}

// New creates a collector on its own registry, prefixing metric names with
// serviceName.
func New(serviceName string) *Collector {
	prefix := strings.ReplaceAll(serviceName, "-", "_")

	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_notifications_total",
				Help: "Push notifications dispatched, by kind and result",
			},
			[]string{"kind", "result"},
		),
		postsAnalyzedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_posts_analyzed_total",
			Help: "Feed posts run through the rate-update detector",
		}),
		rateUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_rate_updates_found_total",
			Help: "Feed posts classified as rate updates",
		}),
	}

	c.registry.MustRegister(
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.notificationsTotal,
		c.postsAnalyzedTotal,
		c.rateUpdatesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, endpoint string, status int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func (c *Collector) NotificationDispatched(kind string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.notificationsTotal.WithLabelValues(kind, result).Inc()
}

func (c *Collector) FeedScanned(postsAnalyzed, rateUpdatesFound int) {
	c.postsAnalyzedTotal.Add(float64(postsAnalyzed))
	c.rateUpdatesTotal.Add(float64(rateUpdatesFound))
}
