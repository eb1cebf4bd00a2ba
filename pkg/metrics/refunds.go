package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Save outcomes reported on refund_saves_total.
const (
	OutcomeSaved             = "saved"
	OutcomeInvalid           = "invalid"
	OutcomeNotRevisable      = "not_revisable"
	OutcomeTransactionFailed = "transaction_failed"
	OutcomeRestockFailed     = "restock_failed"
	OutcomeError             = "error"
)

// RefundMetrics records refund calculations, saves and restocks.
type RefundMetrics struct {
	saves     *prometheus.CounterVec
	amount    *prometheus.CounterVec
	restocked prometheus.Counter
	calculate *prometheus.HistogramVec
}

// NewRefundMetrics registers the refund metrics on the provided registerer.
func NewRefundMetrics(reg prometheus.Registerer) *RefundMetrics {
	if reg == nil {
		return &RefundMetrics{}
	}
	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_saves_total",
		Help: "Refund save attempts by outcome.",
	}, []string{"outcome"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_amount_minor_total",
		Help: "Refunded amount in minor currency units.",
	}, []string{"currency"})
	restocked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refund_restocked_units_total",
		Help: "Units returned to stock by refunds.",
	})
	calculate := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refund_calculate_duration_seconds",
		Help:    "Duration of refund calculations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(saves, amount, restocked, calculate)
	return &RefundMetrics{
		saves:     saves,
		amount:    amount,
		restocked: restocked,
		calculate: calculate,
	}
}

// IncSave counts a save attempt with the given outcome.
func (m *RefundMetrics) IncSave(outcome string) {
	if m == nil || m.saves == nil {
		return
	}
	m.saves.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddRefunded adds a refunded amount for currency.
func (m *RefundMetrics) AddRefunded(currency string, minor int64) {
	if m == nil || m.amount == nil || minor <= 0 {
		return
	}
	m.amount.WithLabelValues(normalizeLabel(currency)).Add(float64(minor))
}

// AddRestocked counts units returned to stock.
func (m *RefundMetrics) AddRestocked(units int) {
	if m == nil || m.restocked == nil || units <= 0 {
		return
	}
	m.restocked.Add(float64(units))
}

// ObserveCalculate records how long a calculation took; valid reports whether
// it passed validation.
func (m *RefundMetrics) ObserveCalculate(duration time.Duration, valid bool) {
	if m == nil || m.calculate == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.calculate.WithLabelValues(result).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
