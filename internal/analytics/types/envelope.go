package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/campusmart/campusmart-backend/pkg/enums"
)

var ErrEmptyPayload = errors.New("empty payload")

// Envelope is a delivered outbox event as the analytics router sees it.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Payload       json.RawMessage
}

// Decode unmarshals the event data into dst. JSON null counts as empty.
func (e Envelope) Decode(dst any) error {
	raw := bytes.TrimSpace(e.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ErrEmptyPayload
	}
	return json.Unmarshal(raw, dst)
}
