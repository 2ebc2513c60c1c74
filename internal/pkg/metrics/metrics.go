package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundlines",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "soundlines",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Fetch worker metrics
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "soundlines",
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Duration of data source fetch calls",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"collection"})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundlines",
		Subsystem: "fetch",
		Name:      "errors_total",
		Help:      "Fetches that produced no result, by failing stage",
	}, []string{"collection", "stage"})

	ResultsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundlines",
		Subsystem: "fetch",
		Name:      "results_sent_total",
		Help:      "Result messages sent to the owning side",
	}, []string{"collection"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "soundlines",
		Subsystem: "fetch",
		Name:      "queue_depth",
		Help:      "Messages waiting on each channel",
	}, []string{"channel"})

	FetchedItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "soundlines",
		Subsystem: "fetch",
		Name:      "fetched_items",
		Help:      "Elements decoded by the last successful fetch",
	}, []string{"collection"})

	WorkerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "soundlines",
		Subsystem: "fetch",
		Name:      "worker_running",
		Help:      "1 while the fetch worker loop is running",
	})

	// Snapshot metrics
	SnapshotSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "soundlines",
		Subsystem: "snapshot",
		Name:      "size",
		Help:      "Number of elements in the current snapshot",
	}, []string{"collection"})

	SnapshotReplacements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundlines",
		Subsystem: "snapshot",
		Name:      "replacements_total",
		Help:      "Snapshot collections replaced by the owning side",
	}, []string{"collection"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundlines",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundlines",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "soundlines",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "soundlines",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "soundlines",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics copies pool statistics into the db gauges. stat is
// expected to be a *pgxpool.Stat; other values are ignored.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
