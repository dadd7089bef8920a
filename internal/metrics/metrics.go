// Package metrics регистрирует метрики Prometheus сервиса биллинга.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics счётчики платежей, смен тарифа и решений о квотах.
type Metrics struct {
	paymentsCreated *prometheus.CounterVec
	paymentsStatus  *prometheus.CounterVec
	paymentsAmount  *prometheus.HistogramVec
	planTransitions *prometheus.CounterVec
	admissions      *prometheus.CounterVec
	tokensIssued    *prometheus.CounterVec
}

// NewRegistry создаёт реестр со стандартными метриками процесса и рантайма.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// New регистрирует метрики в registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		paymentsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesfy_payments_created_total",
				Help: "The total number of created payments",
			},
			[]string{"plan"},
		),
		paymentsStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesfy_payments_status_total",
				Help: "The total number of payment status transitions",
			},
			[]string{"status", "mode"},
		),
		paymentsAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filesfy_payments_amount",
				Help:    "Settled payment amounts in minor units",
				Buckets: prometheus.ExponentialBuckets(100, 10, 5),
			},
			[]string{"currency"},
		),
		planTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesfy_plan_transitions_total",
				Help: "The total number of plan transitions",
			},
			[]string{"plan"},
		),
		admissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesfy_recovery_admissions_total",
				Help: "Quota decisions per item",
			},
			[]string{"plan", "outcome"},
		),
		tokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesfy_tokens_issued_total",
				Help: "Issued entitlement tokens by login method",
			},
			[]string{"method"},
		),
	}
}

// IncPaymentCreated увеличивает счётчик созданных платежей.
func (m *Metrics) IncPaymentCreated(plan string) {
	m.paymentsCreated.WithLabelValues(plan).Inc()
}

// IncPaymentStatus учитывает переход платежа в status.
func (m *Metrics) IncPaymentStatus(status, mode string) {
	m.paymentsStatus.WithLabelValues(status, mode).Inc()
}

// ObservePaymentAmount записывает сумму оплаченного платежа.
func (m *Metrics) ObservePaymentAmount(amount int64, currency string) {
	m.paymentsAmount.WithLabelValues(currency).Observe(float64(amount))
}

// IncPlanTransition учитывает смену тарифа.
func (m *Metrics) IncPlanTransition(plan string) {
	m.planTransitions.WithLabelValues(plan).Inc()
}

// ObserveAdmission учитывает решение по одному файлу.
func (m *Metrics) ObserveAdmission(plan, outcome string) {
	m.admissions.WithLabelValues(plan, outcome).Inc()
}

// IncTokenIssued учитывает выданный токен.
func (m *Metrics) IncTokenIssued(method string) {
	m.tokensIssued.WithLabelValues(method).Inc()
}
