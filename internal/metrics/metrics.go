package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeReplay  = "replay"
)

// Metrics holds the use-case RED instruments shared by the services.
type Metrics struct {
	UseCaseRequests      *prometheus.CounterVec
	UseCaseDuration      *prometheus.HistogramVec
	ReservationFailures  *prometheus.CounterVec
	PaymentVerifications *prometheus.CounterVec
}

// New creates the instruments and registers them on reg when reg is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UseCaseRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usecase_requests_total",
				Help: "Total number of use case invocations.",
			},
			[]string{"use_case", "outcome"},
		),
		UseCaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usecase_duration_seconds",
				Help:    "Duration of use case execution in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"use_case"},
		),
		ReservationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_reservation_failures_total",
				Help: "Reservations rejected for insufficient stock.",
			},
			[]string{"product_id"},
		),
		PaymentVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_verifications_total",
				Help: "Gateway signature verifications by outcome.",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.UseCaseRequests, m.UseCaseDuration, m.ReservationFailures, m.PaymentVerifications)
	}
	return m
}

// Observe records one use-case execution. A nil receiver is a no-op.
func (m *Metrics) Observe(useCase, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.UseCaseRequests.WithLabelValues(useCase, outcome).Inc()
	m.UseCaseDuration.WithLabelValues(useCase).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ReservationFailed(productID string) {
	if m == nil {
		return
	}
	m.ReservationFailures.WithLabelValues(productID).Inc()
}

func (m *Metrics) Verification(outcome string) {
	if m == nil {
		return
	}
	m.PaymentVerifications.WithLabelValues(outcome).Inc()
}

// Outcome maps an error into the outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
