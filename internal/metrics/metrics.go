// Package metrics provides Prometheus instrumentation for the fraud guardian.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudguardian",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudguardian",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DecisionsTotal counts scored transactions by decision.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudguardian",
			Name:      "decisions_total",
			Help:      "Total scored transactions by decision (allow, block).",
		},
		[]string{"decision"},
	)

	// FlaggedTotal counts transactions above the flag threshold.
	FlaggedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudguardian",
		Name:      "flagged_total",
		Help:      "Total transactions whose composite score exceeded the flag threshold.",
	})

	// AnalyzerScore observes per-analyzer partial scores.
	AnalyzerScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudguardian",
			Name:      "analyzer_score",
			Help:      "Partial scores emitted per signal analyzer.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"analyzer"},
	)

	// AICallsTotal counts AI backend calls by result (ok, error, short_circuit).
	AICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudguardian",
			Name:      "ai_calls_total",
			Help:      "Total AI pattern analysis calls by result.",
		},
		[]string{"result"},
	)

	// DegradedMode is 1 while the AI analyzer is substituted.
	DegradedMode = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguardian",
		Name:      "degraded_mode",
		Help:      "1 when the AI pattern analyzer is unavailable and the degraded substitute is in use.",
	})

	// ForwardFailuresTotal counts ledger submissions that failed after an
	// allow decision.
	ForwardFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudguardian",
		Name:      "forward_failures_total",
		Help:      "Total approved transactions that could not be forwarded to the ledger writer.",
	})

	// AlertsTotal counts block alert webhook deliveries by result.
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudguardian",
			Name:      "alerts_total",
			Help:      "Total block alert webhook deliveries by result.",
		},
		[]string{"result"},
	)

	// ActiveStreamClients tracks connected WebSocket clients.
	ActiveStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguardian",
		Name:      "active_stream_clients",
		Help:      "Number of currently connected decision-stream clients.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguardian", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguardian", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguardian", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguardian", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DecisionsTotal,
		FlaggedTotal,
		AnalyzerScore,
		AICallsTotal,
		DegradedMode,
		ForwardFailuresTotal,
		AlertsTotal,
		ActiveStreamClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits
// when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
