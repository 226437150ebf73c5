package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the frame written to a live connection and carried over the broker.
// ID is stable across both delivery paths so a connection can drop duplicates.
type Envelope struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	Data       json.RawMessage `json:"data,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Event:      event,
		Data:       raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("envelope missing event name")
	}
	return env, nil
}

// ErrorPayload is the body of an "error" event.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}
