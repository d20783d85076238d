package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/pubsub/consumer"
)

// ConsumerName scopes the processed-event ledger of the notifications worker.
const ConsumerName = "user-notifications"

type writer interface {
	CreateMany(ctx context.Context, notifications []models.Notification) error
}

// EventHandler stores the notifications each order, bargain or review event produces.
type EventHandler struct {
	repo writer
	logg *logger.Logger
}

var _ consumer.Handler = (*EventHandler)(nil)

func NewEventHandler(repo writer, logg *logger.Logger) (*EventHandler, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &EventHandler{repo: repo, logg: logg}, nil
}

// Handle rejects payloads that do not decode; they will not improve on redelivery.
func (h *EventHandler) Handle(ctx context.Context, ev consumer.Event) error {
	notes, err := BuildFromEnvelope(ev.EventType, ev.Envelope)
	if err != nil {
		return consumer.Permanent(fmt.Errorf("build %s notifications: %w", ev.EventType, err))
	}
	if len(notes) == 0 {
		return nil
	}
	if err := h.repo.CreateMany(ctx, notes); err != nil {
		return fmt.Errorf("store notifications: %w", err)
	}
	h.logg.Info(h.logg.WithField(ctx, "recipients", len(notes)), "notifications stored")
	return nil
}
