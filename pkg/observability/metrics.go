package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Membership metrics
	InvitationsTotal       *prometheus.CounterVec
	PermissionDenialsTotal prometheus.Counter
	AuditDropsTotal        prometheus.Counter
	RateLimitRejections    *prometheus.CounterVec

	// Database pool metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers the metric set on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenancy_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenancy_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		InvitationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenancy_invitations_total",
				Help: "Invitation lifecycle events by outcome",
			},
			[]string{"event"},
		),
		PermissionDenialsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tenancy_permission_denials_total",
				Help: "Total number of denied permission and invariant checks",
			},
		),
		AuditDropsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tenancy_audit_drops_total",
				Help: "Audit events dropped because the trail was unavailable",
			},
		),
		RateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenancy_ratelimit_rejections_total",
				Help: "Invitation creations rejected by the rate limiter",
			},
			[]string{"scope"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenancy_db_connections_active",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenancy_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.InvitationsTotal,
		m.PermissionDenialsTotal,
		m.AuditDropsTotal,
		m.RateLimitRejections,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// ObserveDBStats copies the connection pool gauges from db. Intended to be
// called on a ticker or cron, the pool stats are pull-only.
func (m *Metrics) ObserveDBStats(db *sql.DB) {
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with request count and
// duration. The path label is collapsed to the route shape to keep
// cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			path := collapsePath(r.URL.Path)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// collapsePath replaces id-like path segments with placeholders so every
// organization does not mint its own label value.
func collapsePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if looksLikeID(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// looksLikeID reports whether a path segment is a UUID or an opaque token
// rather than a route word.
func looksLikeID(seg string) bool {
	if len(seg) >= 32 {
		return true
	}
	if len(seg) == 0 {
		return false
	}
	hyphens := 0
	for _, c := range seg {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		case c == '-':
			hyphens++
		default:
			return false
		}
	}
	return hyphens == 4 && len(seg) == 36
}

// MetricsHandler serves the registry in Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
