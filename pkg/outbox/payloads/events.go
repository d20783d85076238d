package payloads

import (
	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/enums"
)

// OrderCreatedEvent is emitted for each order placed at checkout.
type OrderCreatedEvent struct {
	OrderID             uuid.UUID `json:"order_id"`
	ItemID              uuid.UUID `json:"item_id"`
	BuyerID             uuid.UUID `json:"buyer_id"`
	SellerID            uuid.UUID `json:"seller_id"`
	Quantity            int       `json:"quantity"`
	UnitPriceCents      int       `json:"unit_price_cents"`
	BargainedPriceCents *int      `json:"bargained_price_cents,omitempty"`
}

// OrderStatusEvent is emitted for delivery, cancellation and code reissue.
type OrderStatusEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	ItemID     uuid.UUID         `json:"item_id"`
	BuyerID    uuid.UUID         `json:"buyer_id"`
	SellerID   uuid.UUID         `json:"seller_id"`
	Status     enums.OrderStatus `json:"status"`
	TotalCents int               `json:"total_cents"`
	Reason     *string           `json:"reason,omitempty"`
}

// BargainEvent tells the counterparty about a price proposal or its answer.
type BargainEvent struct {
	CartItemID uuid.UUID           `json:"cart_item_id"`
	ItemID     uuid.UUID           `json:"item_id"`
	BuyerID    uuid.UUID           `json:"buyer_id"`
	SellerID   uuid.UUID           `json:"seller_id"`
	PriceCents int                 `json:"price_cents"`
	Status     enums.BargainStatus `json:"status"`
}

// ReviewSubmittedEvent carries the reviewee's refreshed aggregate.
type ReviewSubmittedEvent struct {
	ReviewID    uuid.UUID `json:"review_id"`
	ReviewerID  uuid.UUID `json:"reviewer_id"`
	RevieweeID  uuid.UUID `json:"reviewee_id"`
	Rating      int       `json:"rating"`
	NewAverage  float64   `json:"new_average"`
	RatingCount int       `json:"rating_count"`
}
