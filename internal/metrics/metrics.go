// Package metrics exposes Prometheus collectors for the capsule gate and
// the expiration sweeper.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mnhsh/time-capsule/internal/capsule"
	"github.com/mnhsh/time-capsule/internal/sweeper"
)

const namespace = "time_capsule"

type Metrics struct {
	// GateDecisions counts gate outcomes.
	// Labels: operation (create, read, list, update, delete), outcome.
	GateDecisions *prometheus.CounterVec

	SweepsTotal     *prometheus.CounterVec
	CapsulesExpired prometheus.Counter
	ExpiryFailures  prometheus.Counter
	SweepDuration   prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GateDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Capsule operations by outcome.",
		}, []string{"operation", "outcome"}),
		SweepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Expiration sweeps by status.",
		}, []string{"status"}),
		CapsulesExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "capsules_expired_total",
			Help:      "Capsules flagged expired by the sweeper.",
		}),
		ExpiryFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "expiry_failures_total",
			Help:      "Capsules the sweeper failed to flag.",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "duration_seconds",
			Help:      "Duration of expiration sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveGate records the outcome of a gate operation.
func (m *Metrics) ObserveGate(operation string, err error) {
	m.GateDecisions.WithLabelValues(operation, Outcome(err)).Inc()
}

func (m *Metrics) ObserveSweep(res sweeper.Result, err error) {
	if err != nil {
		m.SweepsTotal.WithLabelValues("error").Inc()
	} else {
		m.SweepsTotal.WithLabelValues("success").Inc()
	}
	m.CapsulesExpired.Add(float64(res.Expired))
	m.ExpiryFailures.Add(float64(res.Failed))
	m.SweepDuration.Observe(res.Duration().Seconds())
}

// Outcome maps a gate error to a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, capsule.ErrNotFound):
		return "not_found"
	case errors.Is(err, capsule.ErrForbidden):
		return "forbidden"
	case errors.Is(err, capsule.ErrGone):
		return "gone"
	case errors.Is(err, capsule.ErrNotYetUnlockable):
		return "not_yet_unlockable"
	case errors.Is(err, capsule.ErrAlreadyUnlockable):
		return "already_unlockable"
	case errors.Is(err, capsule.ErrInvalidSecret):
		return "invalid_secret"
	case errors.Is(err, capsule.ErrInvalidSchedule):
		return "invalid_schedule"
	case errors.Is(err, capsule.ErrConflict):
		return "conflict"
	case errors.Is(err, capsule.ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "error"
	}
}
