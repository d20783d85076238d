package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRejectsUnknownValues(t *testing.T) {
	got, err := ParseOrderStatus("delivered")
	require.NoError(t, err)
	require.Equal(t, OrderStatusDelivered, got)

	_, err = ParseOrderStatus("Delivered")
	require.EqualError(t, err, `invalid order status "Delivered"`)
	_, err = ParseOutboxEventType("item_archived")
	require.Error(t, err)
	require.False(t, NotificationType("email").IsValid())
	require.True(t, AggregateCartItem.IsValid())
}

func TestParseItemCategoriesNormalizesAndDedupes(t *testing.T) {
	got, err := ParseItemCategories([]string{" Books", "electronics", "BOOKS"})
	require.NoError(t, err)
	require.Equal(t, []ItemCategory{ItemCategoryBooks, ItemCategoryElectronics}, got)

	_, err = ParseItemCategories([]string{"books", "pets"})
	require.Error(t, err)
}

func TestTerminalStatuses(t *testing.T) {
	require.False(t, OrderStatusPending.IsTerminal())
	require.True(t, OrderStatusDelivered.IsTerminal())
	require.True(t, OrderStatusCancelled.IsTerminal())
}
