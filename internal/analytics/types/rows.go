package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// MarketplaceEventRow mirrors the marketplace_events BigQuery schema.
// One row per order lifecycle event; revenue columns are only set on delivery.
type MarketplaceEventRow struct {
	EventID             string
	EventType           string
	OccurredAt          time.Time
	OrderID             *string
	ItemID              *string
	BuyerID             *string
	SellerID            *string
	Status              *string
	Quantity            *int64
	UnitPriceCents      *int64
	BargainedPriceCents *int64
	GrossRevenueCents   *int64
	CancelReason        *string
	Payload             cbigquery.NullJSON
}

// MarketplaceEventsSchema is the table layout the worker creates when the
// table is missing. Rows are partitioned by day on occurred_at.
var MarketplaceEventsSchema = cbigquery.Schema{
	{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
	{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
	{Name: "order_id", Type: cbigquery.StringFieldType},
	{Name: "item_id", Type: cbigquery.StringFieldType},
	{Name: "buyer_id", Type: cbigquery.StringFieldType},
	{Name: "seller_id", Type: cbigquery.StringFieldType},
	{Name: "status", Type: cbigquery.StringFieldType},
	{Name: "quantity", Type: cbigquery.IntegerFieldType},
	{Name: "unit_price_cents", Type: cbigquery.IntegerFieldType},
	{Name: "bargained_price_cents", Type: cbigquery.IntegerFieldType},
	{Name: "gross_revenue_cents", Type: cbigquery.IntegerFieldType},
	{Name: "cancel_reason", Type: cbigquery.StringFieldType},
	{Name: "payload", Type: cbigquery.JSONFieldType},
}

// MarketplaceEventsPartitionField is the column marketplace_events is partitioned on.
const MarketplaceEventsPartitionField = "occurred_at"

// Save implements bigquery.ValueSaver. The event id doubles as the insert id
// so a redelivered event is deduplicated by the streaming API.
func (r *MarketplaceEventRow) Save() (map[string]cbigquery.Value, string, error) {
	values := map[string]cbigquery.Value{
		"event_id":              r.EventID,
		"event_type":            r.EventType,
		"occurred_at":           r.OccurredAt.UTC(),
		"order_id":              nullable(r.OrderID),
		"item_id":               nullable(r.ItemID),
		"buyer_id":              nullable(r.BuyerID),
		"seller_id":             nullable(r.SellerID),
		"status":                nullable(r.Status),
		"quantity":              nullable(r.Quantity),
		"unit_price_cents":      nullable(r.UnitPriceCents),
		"bargained_price_cents": nullable(r.BargainedPriceCents),
		"gross_revenue_cents":   nullable(r.GrossRevenueCents),
		"cancel_reason":         nullable(r.CancelReason),
		"payload":               nil,
	}
	if r.Payload.Valid {
		values["payload"] = r.Payload.JSONVal
	}
	return values, r.EventID, nil
}

func nullable[T any](v *T) cbigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}
