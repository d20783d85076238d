package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/internal/orderhistory"
	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrders(ctx context.Context, orders []models.Order) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, query ListQuery) ([]models.Order, error)
	FindPendingByItem(ctx context.Context, itemID uuid.UUID) ([]models.Order, error)
	// ReplaceOTP swaps the delivery code of a pending order. It reports false when the order is no longer pending.
	ReplaceOTP(ctx context.Context, orderID uuid.UUID, otp string, expiresAt, now time.Time) (bool, error)
	// MarkDelivered transitions a pending order whose stored code equals otp and has not expired at now.
	MarkDelivered(ctx context.Context, orderID uuid.UUID, otp string, now time.Time) (bool, error)
	// MarkCanceled transitions a pending order to cancelled.
	MarkCanceled(ctx context.Context, orderID, actorID uuid.UUID, reason *string, now time.Time) (bool, error)
}

// CartLines exposes the buyer's checkout lines inside the caller's transaction.
type CartLines interface {
	CheckoutLines(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]models.CartItem, error)
	RemoveLines(ctx context.Context, tx *gorm.DB, lineIDs []uuid.UUID) error
}

// Catalog reads and retires items inside the caller's transaction.
type Catalog interface {
	// LockForCheckout loads the items, holding a share lock where the database supports it.
	LockForCheckout(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) (map[uuid.UUID]models.Item, error)
	// MarkSold flips an available item to unavailable. It reports false when the item was already unavailable.
	MarkSold(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (bool, error)
}

// HumanVerifier checks a client-supplied captcha token.
type HumanVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type historyStore interface {
	Record(ctx context.Context, entry orderhistory.Transition) error
	History(ctx context.Context, orderID uuid.UUID) ([]orderhistory.Transition, error)
}

type transitionMetrics interface {
	IncTransition(to string)
	IncOTPRejection(reason string)
}
