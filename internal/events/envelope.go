package events

import (
	"encoding/json"
	"fmt"
	"time"

	"lendit/pkg/domain"
)

// envelope is the wire shape shared by the Kafka and Redis publishers. The
// payload is the concrete event's own JSON encoding so subscribers can
// decode fields this layer knows nothing about.
type envelope struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AggregateID string          `json:"aggregateId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

func encode(e domain.Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s payload: %w", e.EventID(), err)
	}
	data, err := json.Marshal(envelope{
		ID:          e.EventID(),
		Name:        e.EventName(),
		AggregateID: e.AggregateID(),
		OccurredAt:  e.OccurredAt(),
		Payload:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.EventID(), err)
	}
	return data, nil
}
