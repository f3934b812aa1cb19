// Package events carries committed domain events to subscribers: a
// synchronous in-process bus for local handlers and a cross-process
// publisher (Kafka or Redis pub/sub) for other services. Delivery after
// commit is best-effort by design; a publish failure never unwinds the
// transaction that already changed the data.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"lendit/pkg/domain"
)

// Handler processes one event. Handlers must not block; the in-process bus
// fans out synchronously on the dispatching goroutine.
type Handler func(ctx context.Context, e domain.Event)

// Bus is the in-process subscription surface.
type Bus interface {
	Dispatch(ctx context.Context, e domain.Event) error
	Register(name string, h Handler)
}

// Publisher is the cross-process delivery surface. Register lives on the
// consumer side of the broker, not here.
type Publisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// InProcess is a synchronous fan-out bus. Handlers registered under an event
// name receive matching events; handlers registered under "*" receive all.
// A panicking handler is recovered and logged so one bad subscriber cannot
// poison dispatch for the rest.
type InProcess struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      zerolog.Logger
}

func NewInProcess(log zerolog.Logger) *InProcess {
	return &InProcess{
		handlers: map[string][]Handler{},
		log:      log.With().Str("bus", "inprocess").Logger(),
	}
}

func (b *InProcess) Register(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

func (b *InProcess) Dispatch(ctx context.Context, e domain.Event) error {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[e.EventName()])+len(b.handlers["*"]))
	targets = append(targets, b.handlers[e.EventName()]...)
	targets = append(targets, b.handlers["*"]...)
	b.mu.RUnlock()

	for _, h := range targets {
		b.invoke(ctx, h, e)
	}
	return nil
}

func (b *InProcess) invoke(ctx context.Context, h Handler, e domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", e.EventName()).
				Str("eventId", e.EventID()).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	h(ctx, e)
}
