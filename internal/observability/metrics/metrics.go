package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)

// Metrics exposes engine-level instruments on the default registry.
type Metrics struct {
	QuotesTotal     *prometheus.CounterVec
	PaymentsTotal   *prometheus.CounterVec
	PaymentDuration prometheus.Histogram
	Compensations   prometheus.Counter
	AdapterFailures *prometheus.CounterVec
	Reconciliations prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		QuotesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_quotes_total",
			Help: "Quote decisions by result and denial reason.",
		}, []string{"result", "reason"}),
		PaymentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_payments_total",
			Help: "Payments by terminal status.",
		}, []string{"status"}),
		PaymentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tollgate_payment_duration_seconds",
			Help:    "Wall time of Pay calls including adapter round-trips.",
			Buckets: prometheus.DefBuckets,
		}),
		Compensations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tollgate_treasury_compensations_total",
			Help: "Treasury credit-backs after post-debit failures.",
		}),
		AdapterFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_adapter_failures_total",
			Help: "External adapter call failures by adapter.",
		}, []string{"adapter"}),
		Reconciliations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tollgate_reconciliations_needed_total",
			Help: "Payments escalated for manual reconciliation.",
		}),
	}
}

func (m *Metrics) RecordQuote(allowed bool, reason string) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.QuotesTotal.WithLabelValues(result, reason).Inc()
}

func (m *Metrics) RecordPayment(status string) {
	if m == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePayDuration(seconds float64) {
	if m == nil {
		return
	}
	m.PaymentDuration.Observe(seconds)
}

func (m *Metrics) RecordCompensation() {
	if m == nil {
		return
	}
	m.Compensations.Inc()
}

func (m *Metrics) RecordAdapterFailure(adapter string) {
	if m == nil {
		return
	}
	m.AdapterFailures.WithLabelValues(adapter).Inc()
}

func (m *Metrics) RecordReconciliation() {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
}
