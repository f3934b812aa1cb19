package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendit/pkg/domain"
)

// capturePublisher stands in for a broker; it can be told to fail.
type capturePublisher struct {
	published []domain.Event
	err       error
}

func (p *capturePublisher) Publish(_ context.Context, e domain.Event) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, e)
	return nil
}

func TestInProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches to name and catch-all handlers", func(t *testing.T) {
		bus := NewInProcess(zerolog.Nop())
		var named, all int
		bus.Register("listing.published", func(context.Context, domain.Event) { named++ })
		bus.Register("*", func(context.Context, domain.Event) { all++ })

		require.NoError(t, bus.Dispatch(ctx, domain.NewBaseEvent("listing.published", "l1")))
		require.NoError(t, bus.Dispatch(ctx, domain.NewBaseEvent("listing.retired", "l1")))

		assert.Equal(t, 1, named)
		assert.Equal(t, 2, all)
	})

	t.Run("a panicking handler does not poison the rest", func(t *testing.T) {
		bus := NewInProcess(zerolog.Nop())
		var reached bool
		bus.Register("boom", func(context.Context, domain.Event) { panic("handler bug") })
		bus.Register("boom", func(context.Context, domain.Event) { reached = true })

		require.NoError(t, bus.Dispatch(ctx, domain.NewBaseEvent("boom", "a1")))
		assert.True(t, reached)
	})
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to both buses in order", func(t *testing.T) {
		bus := NewInProcess(zerolog.Nop())
		var local []string
		bus.Register("*", func(_ context.Context, e domain.Event) { local = append(local, e.EventName()) })
		remote := &capturePublisher{}

		d := NewDispatcher(bus, remote, zerolog.Nop(), nil)
		d.DispatchAll(ctx, []domain.Event{
			domain.NewBaseEvent("first", "a1"),
			domain.NewBaseEvent("second", "a1"),
		})

		assert.Equal(t, []string{"first", "second"}, local)
		require.Len(t, remote.published, 2)
		assert.Equal(t, "first", remote.published[0].EventName())
	})

	t.Run("cross-process failure is swallowed and local delivery continues", func(t *testing.T) {
		bus := NewInProcess(zerolog.Nop())
		var local int
		bus.Register("*", func(context.Context, domain.Event) { local++ })
		remote := &capturePublisher{err: errors.New("broker down")}

		d := NewDispatcher(bus, remote, zerolog.Nop(), nil)
		d.DispatchAll(ctx, []domain.Event{
			domain.NewBaseEvent("first", "a1"),
			domain.NewBaseEvent("second", "a1"),
		})

		assert.Equal(t, 2, local)
		assert.Empty(t, remote.published)
	})

	t.Run("nil remote means in-process only", func(t *testing.T) {
		bus := NewInProcess(zerolog.Nop())
		var local int
		bus.Register("*", func(context.Context, domain.Event) { local++ })

		d := NewDispatcher(bus, nil, zerolog.Nop(), nil)
		d.DispatchAll(ctx, []domain.Event{domain.NewBaseEvent("only", "a1")})
		assert.Equal(t, 1, local)
	})
}

func TestEncode(t *testing.T) {
	type published struct {
		domain.BaseEvent
		Title string `json:"title"`
	}
	e := published{
		BaseEvent: domain.NewBaseEvent("listing.published", "l1"),
		Title:     "City Bike",
	}

	data, err := encode(e)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "listing.published", env.Name)
	assert.Equal(t, "l1", env.AggregateID)
	assert.NotEmpty(t, env.ID)

	var payload struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "City Bike", payload.Title)
}
