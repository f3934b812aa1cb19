package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event recorded on an aggregate during a mutation and
// dispatched after the enclosing transaction commits.
type Event interface {
	EventID() string
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// BaseEvent carries the fields every event shares. Embed it in concrete
// event types.
type BaseEvent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Aggregate string    `json:"aggregateId"`
	At        time.Time `json:"occurredAt"`
}

// NewBaseEvent stamps a fresh event with a uuid and the current time.
func NewBaseEvent(name, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Name:      name,
		Aggregate: aggregateID,
		At:        time.Now().UTC(),
	}
}

func (e BaseEvent) EventID() string { return e.ID }

func (e BaseEvent) EventName() string { return e.Name }

func (e BaseEvent) AggregateID() string { return e.Aggregate }

func (e BaseEvent) OccurredAt() time.Time { return e.At }

// Recorder buffers events in the order they were recorded. The unit of work
// drains it after commit; an aborted transaction drains it to the floor.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

// Drain returns the buffered events and resets the buffer.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
