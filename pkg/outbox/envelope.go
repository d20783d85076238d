package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
)

// CurrentEnvelopeVersion is stamped on every new envelope.
const CurrentEnvelopeVersion = 1

// Pub/Sub attribute names set by the relay on every message.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
	AttrCreatedAt     = "created_at"
)

var ErrEmptyEventData = errors.New("envelope carries no event data")

// ActorRef identifies the user whose request produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload holds and what subscribers
// receive as the message body. Data is the event-specific payload.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ActorID is uuid.Nil for system-initiated events.
func (e PayloadEnvelope) ActorID() uuid.UUID {
	if e.Actor == nil {
		return uuid.Nil
	}
	return e.Actor.UserID
}

// DecodeEnvelope parses a stored or delivered envelope and rejects one
// without an event id or data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("envelope event id %q: %w", env.EventID, err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, ErrEmptyEventData
	}
	return env, nil
}

// MessageAttributes are the routing attributes published alongside row.
func MessageAttributes(row models.OutboxEvent, env PayloadEnvelope) map[string]string {
	return map[string]string{
		AttrEventID:       env.EventID,
		AttrEventType:     string(row.EventType),
		AttrAggregateType: string(row.AggregateType),
		AttrAggregateID:   row.AggregateID.String(),
		AttrCreatedAt:     row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
