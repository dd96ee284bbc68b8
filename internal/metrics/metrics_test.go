package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/mnhsh/time-capsule/internal/capsule"
	"github.com/mnhsh/time-capsule/internal/sweeper"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "not_yet_unlockable", Outcome(&capsule.NotYetUnlockableError{}))
	assert.Equal(t, "storage_unavailable",
		Outcome(fmt.Errorf("get: %w: %w", capsule.ErrStorageUnavailable, errors.New("boom"))))
	assert.Equal(t, "forbidden", Outcome(capsule.ErrForbidden))
	assert.Equal(t, "error", Outcome(errors.New("other")))
}

func TestObserveGate(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveGate("read", nil)
	m.ObserveGate("read", capsule.ErrGone)
	m.ObserveGate("read", capsule.ErrGone)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues("read", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues("read", "gone")))
}

func TestObserveSweep(t *testing.T) {
	m := New(prometheus.NewRegistry())
	start := time.Now()
	m.ObserveSweep(sweeper.Result{StartTime: start, EndTime: start.Add(time.Second), Found: 3, Expired: 2, Failed: 1}, nil)
	m.ObserveSweep(sweeper.Result{}, errors.New("db down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepsTotal.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CapsulesExpired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExpiryFailures))
}
