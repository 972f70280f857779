// Package metrics provides Prometheus instrumentation for the dropwatch service.
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
			Namespace: "dropwatch",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dropwatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// UploadsTotal counts uploaded files by outcome.
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dropwatch",
			Name:      "uploads_total",
			Help:      "Total uploaded files by processing outcome.",
		},
		[]string{"status"},
	)

	// UploadRowsTotal counts normalized rows by record type.
	UploadRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dropwatch",
			Name:      "upload_rows_total",
			Help:      "Total rows normalized into canonical records by type.",
		},
		[]string{"type"},
	)

	// UploadRowsSkippedTotal counts rows dropped during normalization.
	UploadRowsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dropwatch",
			Name:      "upload_rows_skipped_total",
			Help:      "Total rows skipped during normalization by type.",
		},
		[]string{"type"},
	)

	// AnalysesTotal counts full risk analysis runs.
	AnalysesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "analyses_total",
		Help:      "Total risk analysis runs.",
	})

	// AnalysisDuration observes how long a full analysis run takes.
	AnalysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dropwatch",
		Name:      "analysis_duration_seconds",
		Help:      "Duration of a full risk analysis run in seconds.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	})

	// HighRiskStudents tracks the high-risk student count from the latest run.
	HighRiskStudents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropwatch",
		Name:      "high_risk_students",
		Help:      "Number of high-risk students in the most recent analysis.",
	})

	// AlertsGeneratedTotal counts risk alerts generated for high-risk students.
	AlertsGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "alerts_generated_total",
		Help:      "Total risk alerts generated.",
	})

	// NotificationsTotal counts notification deliveries by channel and result.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dropwatch",
			Name:      "notifications_total",
			Help:      "Total notification deliveries by channel and result.",
		},
		[]string{"channel", "result"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dropwatch",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropwatch", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropwatch", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropwatch", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropwatch", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UploadsTotal,
		UploadRowsTotal,
		UploadRowsSkippedTotal,
		AnalysesTotal,
		AnalysisDuration,
		HighRiskStudents,
		AlertsGeneratedTotal,
		NotificationsTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
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
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
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

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
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
