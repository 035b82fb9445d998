package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	AssignmentsTotal   *prometheus.CounterVec
	AssignmentRetries  prometheus.Counter
	CapacityConflicts  prometheus.Counter
	UnassignmentsTotal prometheus.Counter
	LeadsCreated       prometheus.Counter
	BulkBatchSize      prometheus.Histogram

	// Ledger metrics
	LedgerOpDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBConnections   prometheus.Gauge

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		AssignmentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_assignments_total",
				Help: "Total number of lead assignment attempts",
			},
			[]string{"mode", "outcome"}, // mode: auto, manual, bulk; outcome: assigned, no_eligible_agent, rejected
		),
		AssignmentRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lead_assignment_retries_total",
			Help: "Total number of auto-assignment retries after a capacity conflict",
		}),
		CapacityConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capacity_conflicts_total",
			Help: "Total number of capacity increments rejected at the ceiling",
		}),
		UnassignmentsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lead_unassignments_total",
			Help: "Total number of leads unassigned",
		}),
		LeadsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leads_created_total",
			Help: "Total number of leads ingested",
		}),
		BulkBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bulk_assign_batch_size",
			Help:    "Number of leads per bulk assignment request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		LedgerOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_op_duration_seconds",
				Help:    "Capacity ledger operation duration in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"operation"}, // increment, decrement, count, prune
		),

		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		}),

		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // Use route pattern, not actual path (e.g., /api/v1/leads/:id)

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)

			return err
		}
	}
}

// RecordAssignment increments the assignment counter for a mode and outcome
func (m *Metrics) RecordAssignment(mode, outcome string) {
	m.AssignmentsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordAssignmentRetry increments the retry counter
func (m *Metrics) RecordAssignmentRetry() {
	m.AssignmentRetries.Inc()
}

// RecordCapacityConflict increments the capacity conflict counter
func (m *Metrics) RecordCapacityConflict() {
	m.CapacityConflicts.Inc()
}

// RecordUnassignment increments the unassignment counter
func (m *Metrics) RecordUnassignment() {
	m.UnassignmentsTotal.Inc()
}

// RecordLeadCreated increments the leads created counter
func (m *Metrics) RecordLeadCreated() {
	m.LeadsCreated.Inc()
}

// RecordBulkBatch observes the size of a bulk assignment batch
func (m *Metrics) RecordBulkBatch(size int) {
	m.BulkBatchSize.Observe(float64(size))
}

// RecordLedgerOp records a capacity ledger operation duration
func (m *Metrics) RecordLedgerOp(operation string, duration time.Duration) {
	m.LedgerOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDBQuery records database query duration
func (m *Metrics) RecordDBQuery(operation string, duration time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnections updates active database connections gauge
func (m *Metrics) UpdateDBConnections(count float64) {
	m.DBConnections.Set(count)
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
