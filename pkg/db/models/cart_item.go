package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/enums"
)

// CartItem is one intended purchase of a user, optionally carrying a bargain.
type CartItem struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	ItemID             uuid.UUID            `gorm:"column:item_id;type:uuid;not null"`
	Quantity           int                  `gorm:"column:quantity;not null"`
	SavedForLater      bool                 `gorm:"column:saved_for_later;not null"`
	BargainPriceCents  *int                 `gorm:"column:bargain_price_cents"`
	BargainMessage     *string              `gorm:"column:bargain_message"`
	BargainStatus      *enums.BargainStatus `gorm:"column:bargain_status;type:bargain_status"`
	BargainRespondedAt *time.Time           `gorm:"column:bargain_responded_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// HasAcceptedBargain reports whether the seller accepted a price for this line.
func (c CartItem) HasAcceptedBargain() bool {
	return c.BargainStatus != nil && *c.BargainStatus == enums.BargainStatusAccepted && c.BargainPriceCents != nil
}

// ClearBargain drops the bargain sub-record.
func (c *CartItem) ClearBargain() {
	c.BargainPriceCents = nil
	c.BargainMessage = nil
	c.BargainStatus = nil
	c.BargainRespondedAt = nil
}
