package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/types"
)

// ItemSnapshot is the slice of a listing rendered next to a cart line.
type ItemSnapshot struct {
	ID          uuid.UUID `json:"id"`
	SellerID    uuid.UUID `json:"seller_id"`
	Name        string    `json:"name"`
	PriceCents  int       `json:"price_cents"`
	Price       string    `json:"price"`
	Quantity    int       `json:"quantity"`
	IsAvailable bool      `json:"is_available"`
	ImageURL    *string   `json:"image_url,omitempty"`
}

// BargainDTO is the bargain sub-record of a cart line.
type BargainDTO struct {
	PriceCents  int                 `json:"price_cents"`
	Price       string              `json:"price"`
	Message     *string             `json:"message,omitempty"`
	Status      enums.BargainStatus `json:"status"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
}

// LineDTO is a cart line with its item snapshot and effective price.
type LineDTO struct {
	ID                  uuid.UUID     `json:"id"`
	ItemID              uuid.UUID     `json:"item_id"`
	Quantity            int           `json:"quantity"`
	SavedForLater       bool          `json:"saved_for_later"`
	Bargain             *BargainDTO   `json:"bargain,omitempty"`
	Item                *ItemSnapshot `json:"item,omitempty"`
	EffectivePriceCents int           `json:"effective_price_cents"`
	EffectivePrice      string        `json:"effective_price"`
	LineTotalCents      int           `json:"line_total_cents"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// CartDTO groups the active and saved-for-later lines of a user.
type CartDTO struct {
	Items         []LineDTO `json:"items"`
	SavedForLater []LineDTO `json:"saved_for_later"`
	SubtotalCents int       `json:"subtotal_cents"`
	Subtotal      string    `json:"subtotal"`
}

// IncomingBargainDTO is a pending bargain as seen by the seller.
type IncomingBargainDTO struct {
	LineID    uuid.UUID     `json:"line_id"`
	BuyerID   uuid.UUID     `json:"buyer_id"`
	Quantity  int           `json:"quantity"`
	Bargain   BargainDTO    `json:"bargain"`
	Item      *ItemSnapshot `json:"item,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// AddInput is the add-or-update payload.
type AddInput struct {
	ItemID   uuid.UUID
	Quantity int
}

// BargainInput is a buyer's price proposal.
type BargainInput struct {
	PriceCents int
	Message    string
}

// EffectivePriceCents is the accepted bargain price when present, else the list price.
func EffectivePriceCents(line models.CartItem, item models.Item) int {
	if line.HasAcceptedBargain() {
		return *line.BargainPriceCents
	}
	return item.PriceCents
}

func newItemSnapshot(item models.Item) *ItemSnapshot {
	snapshot := &ItemSnapshot{
		ID:          item.ID,
		SellerID:    item.SellerID,
		Name:        item.Name,
		PriceCents:  item.PriceCents,
		Price:       types.FormatCents(item.PriceCents),
		Quantity:    item.Quantity,
		IsAvailable: item.IsAvailable,
	}
	if len(item.Images) > 0 {
		url := item.Images[0].URL
		snapshot.ImageURL = &url
	}
	return snapshot
}

func newBargainDTO(line models.CartItem) *BargainDTO {
	if line.BargainStatus == nil || line.BargainPriceCents == nil {
		return nil
	}
	return &BargainDTO{
		PriceCents:  *line.BargainPriceCents,
		Price:       types.FormatCents(*line.BargainPriceCents),
		Message:     line.BargainMessage,
		Status:      *line.BargainStatus,
		RespondedAt: line.BargainRespondedAt,
	}
}

func newLineDTO(line models.CartItem, item *models.Item) LineDTO {
	dto := LineDTO{
		ID:            line.ID,
		ItemID:        line.ItemID,
		Quantity:      line.Quantity,
		SavedForLater: line.SavedForLater,
		Bargain:       newBargainDTO(line),
		CreatedAt:     line.CreatedAt,
		UpdatedAt:     line.UpdatedAt,
	}
	if item != nil {
		dto.Item = newItemSnapshot(*item)
		dto.EffectivePriceCents = EffectivePriceCents(line, *item)
		dto.EffectivePrice = types.FormatCents(dto.EffectivePriceCents)
		dto.LineTotalCents = dto.EffectivePriceCents * line.Quantity
	}
	return dto
}
