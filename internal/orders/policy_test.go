package orders

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

func TestAuthorizeMatrix(t *testing.T) {
	buyer, seller, stranger := uuid.New(), uuid.New(), uuid.New()
	order := &models.Order{ID: uuid.New(), BuyerID: buyer, SellerID: seller, Status: enums.OrderStatusPending}

	cases := []struct {
		name      string
		requester uuid.UUID
		act       action
		code      pkgerrors.Code
	}{
		{name: "buyer views", requester: buyer, act: actionView},
		{name: "seller views", requester: seller, act: actionView},
		{name: "buyer cancels", requester: buyer, act: actionCancel},
		{name: "seller cancels", requester: seller, act: actionCancel},
		{name: "buyer regenerates", requester: buyer, act: actionRegenerate},
		{name: "seller regenerates", requester: seller, act: actionRegenerate},
		{name: "seller delivers", requester: seller, act: actionDeliver},
		{name: "buyer cannot deliver", requester: buyer, act: actionDeliver, code: pkgerrors.CodeForbidden},
		{name: "stranger sees nothing", requester: stranger, act: actionView, code: pkgerrors.CodeNotFound},
		{name: "stranger cannot deliver", requester: stranger, act: actionDeliver, code: pkgerrors.CodeNotFound},
		{name: "anonymous", requester: uuid.Nil, act: actionView, code: pkgerrors.CodeNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := authorize(order, tc.requester, tc.act)
			if tc.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestOrderViewHidesOTPFromSeller(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	otp := "123456"
	order := models.Order{ID: uuid.New(), BuyerID: buyer, SellerID: seller, Status: enums.OrderStatusPending, DeliveryOTP: &otp, UnitPriceCents: 10000, Quantity: 1}

	buyerView := toOrderView(order, buyer)
	sellerView := toOrderView(order, seller)

	if assert.NotNil(t, buyerView.OTP) {
		assert.Equal(t, otp, *buyerView.OTP)
	}
	assert.Nil(t, sellerView.OTP)
	assert.Equal(t, "seller", sellerView.Role)
	assert.Equal(t, "PENDING", sellerView.Status)
	assert.Equal(t, "100.00", buyerView.Total)
}
