package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/enums"
)

// Order is one buyer/seller/item transaction confirmed by a delivery code.
type Order struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID              uuid.UUID         `gorm:"column:item_id;type:uuid;not null"`
	BuyerID             uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID            uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	Quantity            int               `gorm:"column:quantity;not null"`
	UnitPriceCents      int               `gorm:"column:unit_price_cents;not null"`
	BargainedPriceCents *int              `gorm:"column:bargained_price_cents"`
	Status              enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	DeliveryOTP         *string           `gorm:"column:delivery_otp"`
	OTPExpiresAt        *time.Time        `gorm:"column:otp_expires_at"`
	CanceledBy          *uuid.UUID        `gorm:"column:canceled_by;type:uuid"`
	CancelReason        *string           `gorm:"column:cancel_reason"`
	DeliveredAt         *time.Time        `gorm:"column:delivered_at"`
	CanceledAt          *time.Time        `gorm:"column:canceled_at"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePriceCents is the per-unit price the buyer agreed to pay.
func (o Order) EffectivePriceCents() int {
	if o.BargainedPriceCents != nil {
		return *o.BargainedPriceCents
	}
	return o.UnitPriceCents
}

// TotalCents is the effective price times quantity.
func (o Order) TotalCents() int {
	return o.EffectivePriceCents() * o.Quantity
}
