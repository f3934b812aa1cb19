package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the persistence layer.
// Components accept a possibly-nil *Metrics; every method is nil-safe so
// tests can skip wiring.
type Metrics struct {
	QueryDuration   *prometheus.HistogramVec
	TxCommits       prometheus.Counter
	TxAborts        prometheus.Counter
	EventDispatches *prometheus.CounterVec
	DanglingJoins   prometheus.Counter
}

// New registers all instruments on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-supplied registerer so test suites can use
// throwaway registries.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lendit_query_duration_seconds",
			Help:    "Duration of lean read-repository queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"repository", "operation"}),
		TxCommits: factory.NewCounter(prometheus.CounterOpts{
			Name: "lendit_tx_commits_total",
			Help: "Unit-of-work transactions committed.",
		}),
		TxAborts: factory.NewCounter(prometheus.CounterOpts{
			Name: "lendit_tx_aborts_total",
			Help: "Unit-of-work transactions aborted.",
		}),
		EventDispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lendit_event_dispatches_total",
			Help: "Domain event dispatch attempts by bus and outcome.",
		}, []string{"bus", "outcome"}),
		DanglingJoins: factory.NewCounter(prometheus.CounterOpts{
			Name: "lendit_join_dangling_total",
			Help: "Joined query rows excluded because the referenced document is missing.",
		}),
	}
}

func (m *Metrics) ObserveQuery(repository, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(repository, operation).Observe(d.Seconds())
}

func (m *Metrics) IncTxCommit() {
	if m == nil {
		return
	}
	m.TxCommits.Inc()
}

func (m *Metrics) IncTxAbort() {
	if m == nil {
		return
	}
	m.TxAborts.Inc()
}

func (m *Metrics) IncDispatch(bus, outcome string) {
	if m == nil {
		return
	}
	m.EventDispatches.WithLabelValues(bus, outcome).Inc()
}

func (m *Metrics) IncDanglingJoin() {
	if m == nil {
		return
	}
	m.DanglingJoins.Inc()
}
