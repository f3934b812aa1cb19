package events

import (
	"context"

	"github.com/rs/zerolog"

	"lendit/internal/platform/metrics"
	"lendit/pkg/domain"
)

// Dispatcher delivers committed events to both buses. In-process handlers
// run synchronously and always; cross-process publishing is best-effort —
// a broker failure is logged and counted, never returned, because the
// transaction that produced the events has already committed.
type Dispatcher struct {
	local   Bus
	remote  Publisher
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher builds a Dispatcher. remote may be nil when no cross-process
// bus is configured.
func NewDispatcher(local Bus, remote Publisher, log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		local:   local,
		remote:  remote,
		log:     log.With().Str("component", "dispatcher").Logger(),
		metrics: m,
	}
}

// DispatchAll delivers the events in recorded order.
func (d *Dispatcher) DispatchAll(ctx context.Context, evs []domain.Event) {
	for _, e := range evs {
		if d.local != nil {
			_ = d.local.Dispatch(ctx, e)
			d.metrics.IncDispatch("inprocess", "ok")
		}
		if d.remote == nil {
			continue
		}
		if err := d.remote.Publish(ctx, e); err != nil {
			d.metrics.IncDispatch("crossprocess", "error")
			d.log.Error().
				Err(err).
				Str("event", e.EventName()).
				Str("eventId", e.EventID()).
				Str("aggregateId", e.AggregateID()).
				Msg("cross-process dispatch failed")
			continue
		}
		d.metrics.IncDispatch("crossprocess", "ok")
	}
}
