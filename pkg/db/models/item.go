package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/types"
)

// Item is a catalog listing owned by a seller.
type Item struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID            `gorm:"column:seller_id;type:uuid;not null"`
	Name        string               `gorm:"column:name;not null"`
	Description string               `gorm:"column:description;not null;default:''"`
	PriceCents  int                  `gorm:"column:price_cents;not null"`
	Quantity    int                  `gorm:"column:quantity;not null"`
	Categories  types.ItemCategories `gorm:"column:categories;type:jsonb;not null"`
	Images      types.ItemImages     `gorm:"column:images;type:jsonb;not null"`
	IsAvailable bool                 `gorm:"column:is_available;not null"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
