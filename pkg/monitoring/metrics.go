package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Ledger transaction metrics
	ledgerTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Total number of ledger transactions",
		},
		[]string{"operation", "status", "service"},
	)

	ledgerTransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_transaction_duration_seconds",
			Help:    "Duration of ledger transactions in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"operation", "service"},
	)

	// Circuit breaker state: 1 when open, 0 when closed
	ledgerBreakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledger_circuit_breaker_open",
			Help: "Whether the ledger circuit breaker is open",
		},
		[]string{"service"},
	)

	// Zero-knowledge proof metrics
	zkProofsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zk_proofs_total",
			Help: "Total number of zero-knowledge proof operations",
		},
		[]string{"circuit_type", "operation", "status", "service"},
	)

	// Access grant metrics
	grantDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grant_decisions_total",
			Help: "Total number of access grant authorization decisions",
		},
		[]string{"decision", "service"},
	)

	// Database metrics
	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"query_type", "service"},
	)

	// Audit log metrics
	auditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit events",
		},
		[]string{"event_type", "success", "service"},
	)

	// System metrics
	systemErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"error_type", "service", "component"},
	)
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		ledgerTransactionsTotal,
		ledgerTransactionDuration,
		ledgerBreakerOpen,
		zkProofsTotal,
		grantDecisionsTotal,
		dbQueryDuration,
		auditEventsTotal,
		systemErrors,
	)

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordLedgerTransaction records ledger transaction metrics
func (m *MetricsCollector) RecordLedgerTransaction(operation, status string, duration time.Duration) {
	ledgerTransactionsTotal.WithLabelValues(operation, status, m.serviceName).Inc()
	ledgerTransactionDuration.WithLabelValues(operation, m.serviceName).Observe(duration.Seconds())
}

// RecordBreakerState records whether the ledger circuit breaker is open
func (m *MetricsCollector) RecordBreakerState(open bool) {
	value := 0.0
	if open {
		value = 1.0
	}
	ledgerBreakerOpen.WithLabelValues(m.serviceName).Set(value)
}

// RecordProofOperation records proof generation or verification metrics
func (m *MetricsCollector) RecordProofOperation(circuitType, operation, status string) {
	zkProofsTotal.WithLabelValues(circuitType, operation, status, m.serviceName).Inc()
}

// RecordGrantDecision records an access grant authorization decision
func (m *MetricsCollector) RecordGrantDecision(allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	grantDecisionsTotal.WithLabelValues(decision, m.serviceName).Inc()
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(queryType, m.serviceName).Observe(duration.Seconds())
}

// RecordAuditEvent records audit event metrics
func (m *MetricsCollector) RecordAuditEvent(eventType string, success bool) {
	successStr := strconv.FormatBool(success)
	auditEventsTotal.WithLabelValues(eventType, successStr, m.serviceName).Inc()
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	systemErrors.WithLabelValues(errorType, m.serviceName, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapper.statusCode)

		m.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
