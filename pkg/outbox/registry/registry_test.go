package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/outbox/payloads"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(config.PubSubConfig{OrdersTopic: "orders-topic", MarketTopic: "market-topic"})
	require.NoError(t, err)
	return reg
}

func envelopeBytes(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.CurrentEnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return out
}

func TestResolveDecodesOrderStatus(t *testing.T) {
	reg := testRegistry(t)
	orderID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderDelivered,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: envelopeBytes(t, payloads.OrderStatusEvent{
			OrderID: orderID, ItemID: uuid.New(), BuyerID: uuid.New(), SellerID: uuid.New(),
			Status: enums.OrderStatusDelivered,
		}),
	})
	require.NoError(t, err)
	require.Equal(t, "orders-topic", resolved.Route.Topic)

	payload, ok := resolved.Payload.(*payloads.OrderStatusEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	require.Equal(t, orderID, payload.OrderID)
	require.Equal(t, enums.OrderStatusDelivered, payload.Status)
	require.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestMarketEventsUseMarketTopic(t *testing.T) {
	reg := testRegistry(t)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventBargainProposed, enums.EventBargainResponded, enums.EventReviewSubmitted,
	} {
		route, ok := reg.Lookup(eventType)
		require.True(t, ok, eventType)
		require.Equal(t, "market-topic", route.Topic, eventType)
	}
	route, ok := reg.Lookup(enums.EventOrderOTPRegenerated)
	require.True(t, ok)
	require.Equal(t, "orders-topic", route.Topic)
}

func TestResolveRejectsUnroutableRows(t *testing.T) {
	reg := testRegistry(t)
	valid := envelopeBytes(t, payloads.OrderCreatedEvent{OrderID: uuid.New()})

	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType: "item_archived", AggregateType: enums.AggregateOrder,
			AggregateID: uuid.New(), Payload: valid,
		},
		"aggregate mismatch": {
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateReview,
			AggregateID: uuid.New(), Payload: valid,
		},
		"missing aggregate id": {
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder,
			Payload: valid,
		},
		"null data": {
			EventType: enums.EventOrderCanceled, AggregateType: enums.AggregateOrder,
			AggregateID: uuid.New(), Payload: json.RawMessage(`{"version":1,"eventId":"` + uuid.NewString() + `","data":null}`),
		},
		"bad envelope": {
			EventType: enums.EventOrderCanceled, AggregateType: enums.AggregateOrder,
			AggregateID: uuid.New(), Payload: json.RawMessage(`not json`),
		},
		"data type mismatch": {
			EventType: enums.EventReviewSubmitted, AggregateType: enums.AggregateReview,
			AggregateID: uuid.New(), Payload: envelopeBytes(t, map[string]any{"rating": "five"}),
		},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(row)
			require.ErrorIs(t, err, ErrUnroutable)
		})
	}
}

func TestNewRequiresBothTopics(t *testing.T) {
	_, err := New(config.PubSubConfig{OrdersTopic: "orders"})
	require.Error(t, err)
	_, err = New(config.PubSubConfig{MarketTopic: "market"})
	require.Error(t, err)
}
