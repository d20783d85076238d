// Package router maps delivered order events to marketplace_events rows.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusmart/campusmart-backend/internal/analytics/types"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/outbox/payloads"
)

var (
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	ErrMalformedPayload     = errors.New("malformed analytics payload")
)

// Writer delivers BigQuery rows.
type Writer interface {
	Insert(ctx context.Context, row types.MarketplaceEventRow) error
}

// rowBuilder decodes an envelope payload into the row it produces.
type rowBuilder func(types.Envelope) (types.MarketplaceEventRow, error)

type Router struct {
	writer   Writer
	builders map[enums.OutboxEventType]rowBuilder
	logg     *logger.Logger
}

func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{
		writer: writer,
		logg:   logg,
		builders: map[enums.OutboxEventType]rowBuilder{
			enums.EventOrderCreated: decoded(orderCreatedRow),
			enums.EventOrderDelivered: decoded(func(env types.Envelope, ev *payloads.OrderStatusEvent) (types.MarketplaceEventRow, error) {
				return orderStatusRow(env, ev, true)
			}),
			enums.EventOrderCanceled: decoded(func(env types.Envelope, ev *payloads.OrderStatusEvent) (types.MarketplaceEventRow, error) {
				return orderStatusRow(env, ev, false)
			}),
		},
	}, nil
}

// Supports reports whether eventType produces a row.
func (r *Router) Supports(eventType enums.OutboxEventType) bool {
	_, ok := r.builders[eventType]
	return ok
}

// Handle builds the row for envelope and inserts it.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	build, ok := r.builders[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	row, err := build(envelope)
	if err != nil {
		return err
	}
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"event_type": string(envelope.EventType),
		"order_id":   deref(row.OrderID),
	})
	if err := r.writer.Insert(logCtx, row); err != nil {
		return fmt.Errorf("insert %s row: %w", envelope.EventType, err)
	}
	r.logg.Debug(logCtx, "marketplace row inserted")
	return nil
}

func decoded[T any](build func(types.Envelope, *T) (types.MarketplaceEventRow, error)) rowBuilder {
	return func(env types.Envelope) (types.MarketplaceEventRow, error) {
		var event T
		if err := env.Decode(&event); err != nil {
			return types.MarketplaceEventRow{}, fmt.Errorf("%w: decode %s: %v", ErrMalformedPayload, env.EventType, err)
		}
		return build(env, &event)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
