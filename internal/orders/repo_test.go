package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/db/sqlitetest"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
)

var repoNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func seedOrder(t *testing.T, db *gorm.DB, buyer, seller, item uuid.UUID, otp string, createdAt time.Time) models.Order {
	t.Helper()
	expires := createdAt.Add(24 * time.Hour)
	order := models.Order{
		ID:             uuid.New(),
		ItemID:         item,
		BuyerID:        buyer,
		SellerID:       seller,
		Quantity:       1,
		UnitPriceCents: 2500,
		Status:         enums.OrderStatusPending,
		DeliveryOTP:    &otp,
		OTPExpiresAt:   &expires,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	require.NoError(t, NewRepository(db).CreateOrders(context.Background(), []models.Order{order}))
	return order
}

func TestRepositoryMarkDeliveredIsConditional(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db, uuid.New(), uuid.New(), uuid.New(), "123456", repoNow)

	ok, err := repo.MarkDelivered(ctx, order.ID, "654321", repoNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "wrong code must not match")

	ok, err = repo.MarkDelivered(ctx, order.ID, "123456", repoNow.Add(25*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "expired code must not match")

	ok, err = repo.MarkDelivered(ctx, order.ID, "123456", repoNow.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkDelivered(ctx, order.ID, "123456", repoNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "second delivery must not match")

	stored, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	assert.Nil(t, stored.DeliveryOTP)
	assert.Nil(t, stored.OTPExpiresAt)
	require.NotNil(t, stored.DeliveredAt)
}

func TestRepositoryMarkCanceledOnlyFromPending(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	buyer := uuid.New()
	order := seedOrder(t, db, buyer, uuid.New(), uuid.New(), "111111", repoNow)
	reason := "changed my mind"

	ok, err := repo.MarkCanceled(ctx, order.ID, buyer, &reason, repoNow)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkCanceled(ctx, order.ID, buyer, nil, repoNow)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelReason)
	assert.Equal(t, reason, *stored.CancelReason)
	require.NotNil(t, stored.CanceledBy)
	assert.Equal(t, buyer, *stored.CanceledBy)
	assert.Nil(t, stored.DeliveryOTP)
}

func TestRepositoryReplaceOTP(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db, uuid.New(), uuid.New(), uuid.New(), "111111", repoNow)

	newExpiry := repoNow.Add(48 * time.Hour)
	ok, err := repo.ReplaceOTP(ctx, order.ID, "222222", newExpiry, repoNow)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkDelivered(ctx, order.ID, "111111", repoNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "replaced code must stop matching")

	_, err = repo.MarkCanceled(ctx, order.ID, order.BuyerID, nil, repoNow)
	require.NoError(t, err)
	ok, err = repo.ReplaceOTP(ctx, order.ID, "333333", newExpiry, repoNow)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositoryListOrdersScopesAndPaginates(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	me, other := uuid.New(), uuid.New()

	first := seedOrder(t, db, me, other, uuid.New(), "100000", repoNow)
	second := seedOrder(t, db, other, me, uuid.New(), "200000", repoNow.Add(time.Minute))
	third := seedOrder(t, db, me, other, uuid.New(), "300000", repoNow.Add(2*time.Minute))
	seedOrder(t, db, other, uuid.New(), uuid.New(), "400000", repoNow.Add(3*time.Minute))

	rows, err := repo.ListOrders(ctx, ListQuery{UserID: me, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []uuid.UUID{third.ID, second.ID, first.ID}, []uuid.UUID{rows[0].ID, rows[1].ID, rows[2].ID})

	cursor := &pagination.Cursor{CreatedAt: rows[0].CreatedAt, ID: rows[0].ID}
	rows, err = repo.ListOrders(ctx, ListQuery{UserID: me, Limit: 10, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].ID)

	_, err = repo.MarkCanceled(ctx, first.ID, me, nil, repoNow)
	require.NoError(t, err)
	status := enums.OrderStatusCancelled
	rows, err = repo.ListOrders(ctx, ListQuery{UserID: me, Status: &status, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)
}

func TestRepositoryFindPendingByItem(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	item, seller := uuid.New(), uuid.New()

	a := seedOrder(t, db, uuid.New(), seller, item, "111111", repoNow)
	b := seedOrder(t, db, uuid.New(), seller, item, "222222", repoNow.Add(time.Minute))
	seedOrder(t, db, uuid.New(), seller, uuid.New(), "333333", repoNow)
	_, err := repo.MarkCanceled(ctx, a.ID, a.BuyerID, nil, repoNow)
	require.NoError(t, err)

	rows, err := repo.FindPendingByItem(ctx, item)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b.ID, rows[0].ID)
}
