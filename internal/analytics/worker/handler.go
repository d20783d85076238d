// Package worker feeds delivered order events into the analytics router.
package worker

import (
	"context"
	"errors"

	"github.com/campusmart/campusmart-backend/internal/analytics/router"
	"github.com/campusmart/campusmart-backend/internal/analytics/types"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/pubsub/consumer"
)

// ConsumerName scopes the processed-event ledger of the analytics worker.
const ConsumerName = "analytics"

type rowRouter interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// Handler acks events analytics does not track and rejects payloads that do
// not decode. Writer failures are returned so the message is redelivered.
type Handler struct {
	rows rowRouter
	logg *logger.Logger
}

var _ consumer.Handler = (*Handler)(nil)

func NewHandler(rows rowRouter, logg *logger.Logger) (*Handler, error) {
	if rows == nil {
		return nil, errors.New("analytics router is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Handler{rows: rows, logg: logg}, nil
}

func (h *Handler) Handle(ctx context.Context, ev consumer.Event) error {
	err := h.rows.Handle(ctx, EnvelopeFor(ev))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, router.ErrUnsupportedEventType):
		h.logg.Debug(ctx, "event type not tracked by analytics")
		return nil
	case errors.Is(err, router.ErrMalformedPayload):
		return consumer.Permanent(err)
	default:
		return err
	}
}

// EnvelopeFor is the analytics view of a delivered event.
func EnvelopeFor(ev consumer.Event) types.Envelope {
	return types.Envelope{
		EventID:       ev.EventID.String(),
		EventType:     ev.EventType,
		AggregateType: ev.AggregateType,
		AggregateID:   ev.AggregateID,
		OccurredAt:    ev.OccurredAt,
		Payload:       ev.Envelope.Data,
	}
}
