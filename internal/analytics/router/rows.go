package router

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/internal/analytics/types"
	analyticswriter "github.com/campusmart/campusmart-backend/internal/analytics/writer"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/outbox/payloads"
)

// orderCreatedRow records a checkout. It never carries revenue.
func orderCreatedRow(env types.Envelope, ev *payloads.OrderCreatedEvent) (types.MarketplaceEventRow, error) {
	row, err := baseRow(env, ev)
	if err != nil {
		return row, err
	}
	row.OrderID = idColumn(ev.OrderID)
	row.ItemID = idColumn(ev.ItemID)
	row.BuyerID = idColumn(ev.BuyerID)
	row.SellerID = idColumn(ev.SellerID)
	row.Status = textColumn(string(enums.OrderStatusPending))
	row.Quantity = intColumn(ev.Quantity)
	row.UnitPriceCents = intColumn(ev.UnitPriceCents)
	if ev.BargainedPriceCents != nil {
		row.BargainedPriceCents = intColumn(*ev.BargainedPriceCents)
	}
	return row, nil
}

// orderStatusRow records a delivery or cancellation. Revenue is set only for
// deliveries so each order is counted once.
func orderStatusRow(env types.Envelope, ev *payloads.OrderStatusEvent, revenue bool) (types.MarketplaceEventRow, error) {
	row, err := baseRow(env, ev)
	if err != nil {
		return row, err
	}
	row.OrderID = idColumn(ev.OrderID)
	row.ItemID = idColumn(ev.ItemID)
	row.BuyerID = idColumn(ev.BuyerID)
	row.SellerID = idColumn(ev.SellerID)
	row.Status = textColumn(string(ev.Status))
	if revenue {
		row.GrossRevenueCents = intColumn(ev.TotalCents)
	}
	if ev.Reason != nil {
		row.CancelReason = textColumn(*ev.Reason)
	}
	return row, nil
}

func baseRow(env types.Envelope, event any) (types.MarketplaceEventRow, error) {
	payload, err := analyticswriter.JSONColumn(event)
	if err != nil {
		return types.MarketplaceEventRow{}, fmt.Errorf("%w: encode payload column: %v", ErrMalformedPayload, err)
	}
	return types.MarketplaceEventRow{
		EventID:    env.EventID,
		EventType:  string(env.EventType),
		OccurredAt: env.OccurredAt.UTC(),
		Payload:    payload,
	}, nil
}

func idColumn(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	s := id.String()
	return &s
}

func textColumn(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func intColumn(v int) *int64 {
	n := int64(v)
	return &n
}
