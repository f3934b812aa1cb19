package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilReceiverIsSafe(t *testing.T) {
	// Repositories accept a nil *Metrics in tests; every method must be a
	// no-op then.
	var m *Metrics
	m.ObserveQuery("listing", "GetPaged", time.Millisecond)
	m.IncTxCommit()
	m.IncTxAbort()
	m.IncDispatch("inprocess", "ok")
	m.IncDanglingJoin()
}

func TestCounters(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.IncTxCommit()
	m.IncTxCommit()
	m.IncTxAbort()
	m.IncDanglingJoin()
	m.IncDispatch("crossprocess", "error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TxCommits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxAborts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DanglingJoins))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventDispatches.WithLabelValues("crossprocess", "error")))
}
