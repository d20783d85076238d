package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindLine(ctx context.Context, lineID uuid.UUID) (*models.CartItem, error)
	FindByUserItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error)
	Create(ctx context.Context, line *models.CartItem) error
	Save(ctx context.Context, line *models.CartItem) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	DeleteOwned(ctx context.Context, userID, lineID uuid.UUID) (bool, error)
	SetSavedForLater(ctx context.Context, userID, lineID uuid.UUID, saved bool, now time.Time) (bool, error)
	ProposeBargain(ctx context.Context, userID, lineID uuid.UUID, priceCents int, message *string, now time.Time) (bool, error)
	RespondBargain(ctx context.Context, lineID uuid.UUID, status enums.BargainStatus, now time.Time) (bool, error)
	PendingBargainsForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.CartItem, error)
}

// ItemLookup reads catalog items for cart rendering and validation.
type ItemLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
