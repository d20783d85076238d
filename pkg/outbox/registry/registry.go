// Package registry maps outbox event types to the Pub/Sub topic and payload
// type each one is published with.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/outbox/payloads"
)

// ErrUnroutable marks rows that can never be published as stored.
var ErrUnroutable = errors.New("outbox row cannot be routed")

// Route describes where one event type goes and what its data decodes into.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

// Resolved is a row that passed routing checks, with its decoded payload.
type Resolved struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type Registry struct {
	routes map[enums.OutboxEventType]Route
}

// New builds the routing table. Order events go to the orders topic; bargain
// and review events go to the market topic.
func New(cfg config.PubSubConfig) (*Registry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	if cfg.MarketTopic == "" {
		return nil, errors.New("market topic is required")
	}

	orderCreated := func() any { return &payloads.OrderCreatedEvent{} }
	orderStatus := func() any { return &payloads.OrderStatusEvent{} }
	bargain := func() any { return &payloads.BargainEvent{} }
	review := func() any { return &payloads.ReviewSubmittedEvent{} }

	table := []Route{
		{enums.EventOrderCreated, enums.AggregateOrder, cfg.OrdersTopic, orderCreated},
		{enums.EventOrderDelivered, enums.AggregateOrder, cfg.OrdersTopic, orderStatus},
		{enums.EventOrderCanceled, enums.AggregateOrder, cfg.OrdersTopic, orderStatus},
		{enums.EventOrderOTPRegenerated, enums.AggregateOrder, cfg.OrdersTopic, orderStatus},
		{enums.EventBargainProposed, enums.AggregateCartItem, cfg.MarketTopic, bargain},
		{enums.EventBargainResponded, enums.AggregateCartItem, cfg.MarketTopic, bargain},
		{enums.EventReviewSubmitted, enums.AggregateReview, cfg.MarketTopic, review},
	}

	r := &Registry{routes: make(map[enums.OutboxEventType]Route, len(table))}
	for _, route := range table {
		r.routes[route.EventType] = route
	}
	return r, nil
}

// Lookup returns the route for eventType.
func (r *Registry) Lookup(eventType enums.OutboxEventType) (Route, bool) {
	route, ok := r.routes[eventType]
	return route, ok
}

// Resolve checks row against its route and decodes the envelope and payload.
// Every error wraps ErrUnroutable.
func (r *Registry) Resolve(row models.OutboxEvent) (*Resolved, error) {
	route, ok := r.routes[row.EventType]
	if !ok {
		return nil, unroutable("unsupported event type %q", row.EventType)
	}
	if route.AggregateType != row.AggregateType {
		return nil, unroutable("%s expects aggregate %s, row has %s", row.EventType, route.AggregateType, row.AggregateType)
	}
	if row.AggregateID == uuid.Nil {
		return nil, unroutable("%s row has no aggregate id", row.EventType)
	}

	env, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, unroutable("%s: %v", row.EventType, err)
	}
	payload := route.newPayload()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, unroutable("decode %s data: %v", row.EventType, err)
	}
	return &Resolved{Route: route, Envelope: env, Payload: payload}, nil
}

func unroutable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnroutable, fmt.Sprintf(format, args...))
}
