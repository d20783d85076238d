package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
)

// Repository exposes persistence operations for cart lines and their bargains.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindLine loads a single cart line.
func (r *Repository) FindLine(ctx context.Context, lineID uuid.UUID) (*models.CartItem, error) {
	var line models.CartItem
	if err := r.db.WithContext(ctx).Where("id = ?", lineID).First(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// FindByUserItem returns the user's line for the item.
func (r *Repository) FindByUserItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error) {
	var line models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// Create inserts a new cart line.
func (r *Repository) Create(ctx context.Context, line *models.CartItem) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// Save persists every column of the line.
func (r *Repository) Save(ctx context.Context, line *models.CartItem) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// ListByUser returns the user's lines, oldest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteOwned removes the line when it belongs to the user.
func (r *Repository) DeleteOwned(ctx context.Context, userID, lineID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&models.CartItem{})
	return res.RowsAffected == 1, res.Error
}

// SetSavedForLater flips the saved-for-later flag of a line owned by the user.
func (r *Repository) SetSavedForLater(ctx context.Context, userID, lineID uuid.UUID, saved bool, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", lineID, userID).
		Updates(map[string]any{
			"saved_for_later": saved,
			"updated_at":      now,
		})
	return res.RowsAffected == 1, res.Error
}

// ProposeBargain records a new pending offer on the user's line. It reports false
// when the line is missing or its bargain was already accepted.
func (r *Repository) ProposeBargain(ctx context.Context, userID, lineID uuid.UUID, priceCents int, message *string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", lineID, userID).
		Where("(bargain_status IS NULL OR bargain_status <> ?)", enums.BargainStatusAccepted).
		Updates(map[string]any{
			"bargain_price_cents":  priceCents,
			"bargain_status":       enums.BargainStatusPending,
			"bargain_message":      message,
			"bargain_responded_at": nil,
			"updated_at":           now,
		})
	return res.RowsAffected == 1, res.Error
}

// RespondBargain resolves a pending bargain. It reports false when the bargain is no longer pending.
func (r *Repository) RespondBargain(ctx context.Context, lineID uuid.UUID, status enums.BargainStatus, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND bargain_status = ?", lineID, enums.BargainStatusPending).
		Updates(map[string]any{
			"bargain_status":       status,
			"bargain_responded_at": now,
			"updated_at":           now,
		})
	return res.RowsAffected == 1, res.Error
}

// PendingBargainsForSeller lists pending bargains on the seller's items, newest first.
func (r *Repository) PendingBargainsForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	if err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Joins("JOIN items ON items.id = cart_items.item_id").
		Where("items.seller_id = ? AND cart_items.bargain_status = ?", sellerID, enums.BargainStatusPending).
		Order("cart_items.updated_at DESC").
		Order("cart_items.id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CheckoutLines returns the buyer's active lines inside tx.
func (r *Repository) CheckoutLines(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]models.CartItem, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	var rows []models.CartItem
	if err := db.WithContext(ctx).
		Where("user_id = ? AND saved_for_later = ?", userID, false).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// RemoveLines deletes the given lines inside tx.
func (r *Repository) RemoveLines(ctx context.Context, tx *gorm.DB, lineIDs []uuid.UUID) error {
	if len(lineIDs) == 0 {
		return nil
	}
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Where("id IN ?", lineIDs).Delete(&models.CartItem{}).Error
}
