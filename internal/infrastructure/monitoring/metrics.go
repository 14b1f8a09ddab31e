package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "credit_engine"

// Decision outcomes recorded by RecordLoanDecision.
const (
	OutcomeApproved     = "approved"
	OutcomeDebtCeiling  = "debt_ceiling"
	OutcomePolicy       = "policy_rejected"
	OutcomeUnaffordable = "unaffordable"
)

type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	CustomersRegisteredTotal prometheus.Counter
	LoanDecisionsTotal       *prometheus.CounterVec
	CreditScore              *prometheus.HistogramVec
	ImportRowsTotal          *prometheus.CounterVec
}

var (
	HTTP = HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status_code"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
	}

	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Histogram of database query latencies.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		CustomersRegisteredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "customers_registered_total",
				Help:      "Total number of customers successfully registered.",
			},
		),
		LoanDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loan_decisions_total",
				Help:      "Loan eligibility decisions by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		CreditScore: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "credit_score",
				Help:      "Distribution of computed credit scores.",
				Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
			[]string{"operation"},
		),
		ImportRowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_rows_total",
				Help:      "Rows processed by the bulk import job.",
			},
			[]string{"entity", "status"},
		),
	}
)

func RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	HTTP.RequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	HTTP.RequestDuration.WithLabelValues(method, path, statusCode).Observe(duration.Seconds())
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordCustomerRegistered() {
	Business.CustomersRegisteredTotal.Inc()
}

func RecordLoanDecision(operation, outcome string) {
	Business.LoanDecisionsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordCreditScore(operation string, score int) {
	Business.CreditScore.WithLabelValues(operation).Observe(float64(score))
}

func RecordImportRows(entity, status string, n int) {
	if n <= 0 {
		return
	}
	Business.ImportRowsTotal.WithLabelValues(entity, status).Add(float64(n))
}
