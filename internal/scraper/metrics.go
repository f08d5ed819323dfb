package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a scrape run.
type Metrics struct {
	Registry          *prometheus.Registry
	AttemptsTotal     *prometheus.CounterVec
	TasksTotal        *prometheus.CounterVec
	ProxyReportsTotal *prometheus.CounterVec
	PersistedTotal    prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_attempts_total",
			Help: "Total extraction attempts by retailer and outcome.",
		},
		[]string{"retailer", "outcome"},
	)
	tasks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_tasks_total",
			Help: "Total tasks by final outcome.",
		},
		[]string{"outcome"},
	)
	proxyReports := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_reports_total",
			Help: "Total health reports fed back into the proxy pool.",
		},
		[]string{"result"},
	)
	persisted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_observations_persisted_total",
			Help: "Total price observations written to the ledger.",
		},
	)

	registry.MustRegister(attempts, tasks, proxyReports, persisted)

	return &Metrics{
		Registry:          registry,
		AttemptsTotal:     attempts,
		TasksTotal:        tasks,
		ProxyReportsTotal: proxyReports,
		PersistedTotal:    persisted,
	}
}

// IncAttempt counts one extraction attempt.
func (m *Metrics) IncAttempt(retailer, outcome string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(retailer, outcome).Inc()
}

// IncTask counts one finished task.
func (m *Metrics) IncTask(outcome string) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(outcome).Inc()
}

// IncProxyReport counts one proxy health report.
func (m *Metrics) IncProxyReport(result string) {
	if m == nil {
		return
	}
	m.ProxyReportsTotal.WithLabelValues(result).Inc()
}

// IncPersisted counts one persisted observation.
func (m *Metrics) IncPersisted() {
	if m == nil {
		return
	}
	m.PersistedTotal.Inc()
}
