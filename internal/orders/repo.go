package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrders(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&orders).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrders(ctx context.Context, query ListQuery) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("(buyer_id = ? OR seller_id = ?)", query.UserID, query.UserID)
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	if query.Cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	var rows []models.Order
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindPendingByItem(ctx context.Context, itemID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND status = ?", itemID, enums.OrderStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ReplaceOTP(ctx context.Context, orderID uuid.UUID, otp string, expiresAt, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"delivery_otp":   otp,
			"otp_expires_at": expiresAt,
			"updated_at":     now,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) MarkDelivered(ctx context.Context, orderID uuid.UUID, otp string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND delivery_otp = ? AND otp_expires_at > ?", orderID, enums.OrderStatusPending, otp, now).
		Updates(map[string]any{
			"status":         enums.OrderStatusDelivered,
			"delivered_at":   now,
			"delivery_otp":   nil,
			"otp_expires_at": nil,
			"updated_at":     now,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) MarkCanceled(ctx context.Context, orderID, actorID uuid.UUID, reason *string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":         enums.OrderStatusCancelled,
			"canceled_at":    now,
			"canceled_by":    actorID,
			"cancel_reason":  reason,
			"delivery_otp":   nil,
			"otp_expires_at": nil,
			"updated_at":     now,
		})
	return res.RowsAffected == 1, res.Error
}
