// Package telemetry provides application-level observability for the Project
// Data Registry.
//
// All metrics register against the default Prometheus registry and are served
// by the side-channel HTTP server main.go starts on
// PDR_TELEMETRY_METRICS_PROMETHEUS_PORT (default 9090) at /metrics. The
// endpoint is not mounted on the Gin router and is absent from the API
// surface.
//
// HTTP metrics are labelled by the Gin route template (c.FullPath(), e.g.
// /api/v1/projects/:projectId/entities/:entity/mutations), never the raw URL,
// so user-supplied path segments such as project ids or entity names cannot
// blow up label cardinality.
//
// Handlers increment the exported vars directly:
//
//	telemetry.MutationsTotal.WithLabelValues(entity, action).Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, recorded by the metrics middleware.
//
// HTTPRequestsTotal counts requests by {method, path, status}, where path is
// the route template. HTTPRequestDuration observes latency by {method, path}
// with buckets from 5 ms to 30 s; use histogram_quantile for percentiles,
// e.g.
//
//	histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Mutation metrics, recorded by the submodule dispatcher after each save.
//
// MutationsTotal counts dispatched bundles by {entity, action}, where entity
// is the submodule name ("dscr", "lender-commitments") and action is CREATE,
// UPDATE, or DELETE as derived from the bundle shape. MutationRowsTotal
// counts the individual row writes inside each bundle by {entity, kind};
// dividing by MutationsTotal gives average bundle size. Typical query:
//
//	sum by (entity) (rate(record_mutations_total[1h]))
var (
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_mutations_total",
			Help: "Total number of dispatched record mutation bundles, by entity and action type.",
		},
		[]string{"entity", "action"},
	)

	MutationRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_mutation_rows_total",
			Help: "Total number of individual row writes applied by the dispatcher, by entity and write kind.",
		},
		[]string{"entity", "kind"},
	)
)

// Audit metrics, recorded by the background audit writer. Audit writes never
// fail the originating save, so alerting on
// increase(audit_write_failures_total[30m]) > 0 is the only way to notice a
// broken trail.
var (
	AuditEntriesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_entries_written_total",
			Help: "Total number of audit log entries successfully persisted.",
		},
	)

	AuditWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of failed background audit log writes.",
		},
	)
)

// DBOpenConnections tracks the open connections held by the sql.DB pool,
// sampled every 30 seconds by StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a goroutine that samples pool statistics
// every 30 seconds and updates DBOpenConnections. The goroutine exits when
// the database becomes unreachable, which covers shutdown via the deferred
// db.Close in main. Call once after the pool is connected.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector stopping, database unreachable", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
