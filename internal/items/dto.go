package items

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
	"github.com/campusmart/campusmart-backend/pkg/types"
)

const defaultQuantity = 1

// CreateInput is the validated payload for a new listing.
type CreateInput struct {
	Name        string
	Description string
	PriceCents  int
	Quantity    *int
	Categories  []string
	Images      []types.ItemImage
}

// UpdateInput carries the optional fields of a listing patch. Availability is
// not among them: only delivery marks an item sold.
type UpdateInput struct {
	Name        *string
	Description *string
	PriceCents  *int
	Quantity    *int
	Categories  *[]string
	Images      *[]types.ItemImage
}

// ListInput holds search filters. AvailableOnly defaults to true when nil.
type ListInput struct {
	Query         string
	Category      string
	SellerID      *uuid.UUID
	MinPriceCents *int
	MaxPriceCents *int
	AvailableOnly *bool
	Params        pagination.Params
}

// ItemDTO is the listing payload returned to clients.
type ItemDTO struct {
	ID          uuid.UUID            `json:"id"`
	SellerID    uuid.UUID            `json:"seller_id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	PriceCents  int                  `json:"price_cents"`
	Price       string               `json:"price"`
	Quantity    int                  `json:"quantity"`
	Categories  []enums.ItemCategory `json:"categories"`
	Images      []types.ItemImage    `json:"images"`
	IsAvailable bool                 `json:"is_available"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ListResult is one page of listings.
type ListResult struct {
	Items  []ItemDTO `json:"items"`
	Cursor string    `json:"cursor"`
}

// NewItemDTO renders a persisted item.
func NewItemDTO(item models.Item) ItemDTO {
	categories := append([]enums.ItemCategory{}, item.Categories...)
	images := append([]types.ItemImage{}, item.Images...)
	return ItemDTO{
		ID:          item.ID,
		SellerID:    item.SellerID,
		Name:        item.Name,
		Description: item.Description,
		PriceCents:  item.PriceCents,
		Price:       types.FormatCents(item.PriceCents),
		Quantity:    item.Quantity,
		Categories:  categories,
		Images:      images,
		IsAvailable: item.IsAvailable,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}
