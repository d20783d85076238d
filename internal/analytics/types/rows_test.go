package types

import (
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"
)

func TestMarketplaceEventRowSaveUsesEventIDAsInsertID(t *testing.T) {
	order := "order-1"
	revenue := int64(2400)
	row := &MarketplaceEventRow{
		EventID:           "evt-1",
		EventType:         "order_delivered",
		OccurredAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600)),
		OrderID:           &order,
		GrossRevenueCents: &revenue,
		Payload:           cbigquery.NullJSON{Valid: true, JSONVal: `{"total_cents":2400}`},
	}

	values, insertID, err := row.Save()
	require.NoError(t, err)
	require.Equal(t, "evt-1", insertID)
	require.Equal(t, "order-1", values["order_id"])
	require.Equal(t, int64(2400), values["gross_revenue_cents"])
	require.Nil(t, values["buyer_id"])
	require.Nil(t, values["cancel_reason"])
	require.Equal(t, `{"total_cents":2400}`, values["payload"])
	require.Equal(t, time.UTC, values["occurred_at"].(time.Time).Location())
}

func TestMarketplaceEventsSchemaCoversSavedColumns(t *testing.T) {
	values, _, err := (&MarketplaceEventRow{}).Save()
	require.NoError(t, err)
	require.Len(t, MarketplaceEventsSchema, len(values))
	for _, field := range MarketplaceEventsSchema {
		require.Contains(t, values, field.Name)
	}
}
