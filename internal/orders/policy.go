package orders

import (
	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

type action string

const (
	actionView       action = "view"
	actionCancel     action = "cancel"
	actionRegenerate action = "regenerate_otp"
	actionDeliver    action = "deliver"
)

const (
	roleBuyer  = "buyer"
	roleSeller = "seller"
)

// authorize is the single access policy for every order operation.
// Users who are not a party to the order get NOT_FOUND so order ids cannot be probed.
func authorize(order *models.Order, requesterID uuid.UUID, act action) error {
	if order == nil || requesterID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	isBuyer := order.BuyerID == requesterID
	isSeller := order.SellerID == requesterID
	if !isBuyer && !isSeller {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	switch act {
	case actionView, actionCancel, actionRegenerate:
		return nil
	case actionDeliver:
		if !isSeller {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can confirm delivery")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "action not permitted")
	}
}

func roleOf(order models.Order, requesterID uuid.UUID) string {
	if order.SellerID == requesterID {
		return roleSeller
	}
	return roleBuyer
}

// Only the buyer of a pending order ever sees its delivery code.
func canSeeOTP(order models.Order, requesterID uuid.UUID) bool {
	return order.BuyerID == requesterID && !order.Status.IsTerminal()
}
