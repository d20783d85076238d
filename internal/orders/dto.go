package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
	"github.com/campusmart/campusmart-backend/pkg/types"
)

// CancelReasonItemSold is recorded on pending orders closed because their item was delivered elsewhere.
const CancelReasonItemSold = "item_sold"

// CheckoutInput carries the buyer and their human-check token.
type CheckoutInput struct {
	BuyerID      uuid.UUID
	CaptchaToken string
	RemoteIP     string
}

// CreatedOrder is returned per order placed by checkout. The code itself is only shown on the buyer's order view.
type CreatedOrder struct {
	OrderID   uuid.UUID `json:"order_id"`
	ItemID    uuid.UUID `json:"item_id"`
	OTPIssued bool      `json:"otp_issued"`
}

// ListQuery selects orders where the user is buyer or seller.
type ListQuery struct {
	UserID uuid.UUID
	Status *enums.OrderStatus
	Limit  int
	Cursor *pagination.Cursor
}

// ListInput is the caller-facing list request.
type ListInput struct {
	RequesterID uuid.UUID
	Status      *enums.OrderStatus
	Params      pagination.Params
}

// ListResult is one page of orders.
type ListResult struct {
	Orders []OrderView `json:"orders"`
	Cursor string      `json:"cursor"`
}

// OTPResult is the outcome of regenerating a delivery code.
type OTPResult struct {
	OrderID   uuid.UUID  `json:"order_id"`
	OTPIssued bool       `json:"otp_issued"`
	OTP       *string    `json:"otp,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// DeliverInput carries the code the buyer showed the seller.
type DeliverInput struct {
	OrderID     uuid.UUID
	RequesterID uuid.UUID
	OTP         string
}

// CancelInput carries an optional cancellation reason.
type CancelInput struct {
	OrderID     uuid.UUID
	RequesterID uuid.UUID
	Reason      *string
}

// StatusResult is returned by terminal transitions.
type StatusResult struct {
	OrderID uuid.UUID `json:"order_id"`
	Status  string    `json:"status"`
}

// OrderView is the role-aware representation of an order.
type OrderView struct {
	ID                  uuid.UUID  `json:"id"`
	ItemID              uuid.UUID  `json:"item_id"`
	BuyerID             uuid.UUID  `json:"buyer_id"`
	SellerID            uuid.UUID  `json:"seller_id"`
	Role                string     `json:"role"`
	Quantity            int        `json:"quantity"`
	UnitPriceCents      int        `json:"unit_price_cents"`
	BargainedPriceCents *int       `json:"bargained_price_cents,omitempty"`
	UnitPrice           string     `json:"unit_price"`
	Total               string     `json:"total"`
	Status              string     `json:"status"`
	OTP                 *string    `json:"otp,omitempty"`
	OTPExpiresAt        *time.Time `json:"otp_expires_at,omitempty"`
	CancelReason        *string    `json:"cancel_reason,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	CanceledAt          *time.Time `json:"canceled_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// StatusLabel renders a status the way clients display it.
func StatusLabel(status enums.OrderStatus) string {
	return strings.ToUpper(string(status))
}

func toOrderView(order models.Order, requesterID uuid.UUID) OrderView {
	view := OrderView{
		ID:                  order.ID,
		ItemID:              order.ItemID,
		BuyerID:             order.BuyerID,
		SellerID:            order.SellerID,
		Role:                roleOf(order, requesterID),
		Quantity:            order.Quantity,
		UnitPriceCents:      order.UnitPriceCents,
		BargainedPriceCents: order.BargainedPriceCents,
		UnitPrice:           types.FormatCents(order.EffectivePriceCents()),
		Total:               types.FormatCents(order.TotalCents()),
		Status:              StatusLabel(order.Status),
		CancelReason:        order.CancelReason,
		DeliveredAt:         order.DeliveredAt,
		CanceledAt:          order.CanceledAt,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
	if canSeeOTP(order, requesterID) {
		view.OTP = order.DeliveryOTP
		view.OTPExpiresAt = order.OTPExpiresAt
	}
	return view
}
