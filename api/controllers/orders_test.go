package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/internal/orderhistory"
	"github.com/campusmart/campusmart-backend/internal/orders"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

type stubOrderService struct {
	checkoutInput orders.CheckoutInput
	deliverInput  orders.DeliverInput
	cancelInput   orders.CancelInput
	listInput     orders.ListInput
	err           error
}

func (s *stubOrderService) Checkout(_ context.Context, input orders.CheckoutInput) ([]orders.CreatedOrder, error) {
	s.checkoutInput = input
	if s.err != nil {
		return nil, s.err
	}
	return []orders.CreatedOrder{{OrderID: uuid.New(), ItemID: uuid.New(), OTPIssued: true}}, nil
}

func (s *stubOrderService) Get(_ context.Context, orderID, requesterID uuid.UUID) (*orders.OrderView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &orders.OrderView{ID: orderID, BuyerID: requesterID, Role: "buyer", Status: "PENDING"}, nil
}

func (s *stubOrderService) List(_ context.Context, input orders.ListInput) (*orders.ListResult, error) {
	s.listInput = input
	return &orders.ListResult{Orders: []orders.OrderView{}}, s.err
}

func (s *stubOrderService) RegenerateOTP(_ context.Context, orderID, _ uuid.UUID) (*orders.OTPResult, error) {
	return &orders.OTPResult{OrderID: orderID, OTPIssued: true}, s.err
}

func (s *stubOrderService) VerifyAndDeliver(_ context.Context, input orders.DeliverInput) (*orders.StatusResult, error) {
	s.deliverInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &orders.StatusResult{OrderID: input.OrderID, Status: "DELIVERED"}, nil
}

func (s *stubOrderService) Cancel(_ context.Context, input orders.CancelInput) (*orders.StatusResult, error) {
	s.cancelInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &orders.StatusResult{OrderID: input.OrderID, Status: "CANCELLED"}, nil
}

func (s *stubOrderService) History(context.Context, uuid.UUID, uuid.UUID) ([]orderhistory.Transition, error) {
	return nil, s.err
}

func TestOrdersDeliverPassesCode(t *testing.T) {
	svc := &stubOrderService{}
	sellerID := uuid.New()
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/deliver", strings.NewReader(`{"otp":"123456"}`))
	req = withParams(authed(req, sellerID), "orderId", orderID.String())
	resp := httptest.NewRecorder()
	OrdersDeliver(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.deliverInput.OTP != "123456" || svc.deliverInput.RequesterID != sellerID || svc.deliverInput.OrderID != orderID {
		t.Fatalf("unexpected deliver input %+v", svc.deliverInput)
	}
	var result orders.StatusResult
	decodeData(t, resp, &result)
	if result.Status != "DELIVERED" {
		t.Fatalf("expected DELIVERED got %s", result.Status)
	}
}

func TestOrdersDeliverErrorMapping(t *testing.T) {
	cases := []struct {
		code   pkgerrors.Code
		status int
	}{
		{pkgerrors.CodeOTPMismatch, http.StatusUnauthorized},
		{pkgerrors.CodeOTPExpired, http.StatusGone},
		{pkgerrors.CodeStateConflict, http.StatusConflict},
		{pkgerrors.CodeForbidden, http.StatusForbidden},
		{pkgerrors.CodeNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		svc := &stubOrderService{err: pkgerrors.New(tc.code, "nope")}
		orderID := uuid.New()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"otp":"000000"}`))
		req = withParams(authed(req, uuid.New()), "orderId", orderID.String())
		resp := httptest.NewRecorder()
		OrdersDeliver(svc, nil).ServeHTTP(resp, req)

		if resp.Code != tc.status {
			t.Fatalf("%s: expected %d got %d", tc.code, tc.status, resp.Code)
		}
		if got := decodeErrorCode(t, resp); got != string(tc.code) {
			t.Fatalf("expected code %s got %s", tc.code, got)
		}
	}
}

func TestOrdersDeliverRequiresCode(t *testing.T) {
	svc := &stubOrderService{}
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req = withParams(authed(req, uuid.New()), "orderId", orderID.String())
	resp := httptest.NewRecorder()
	OrdersDeliver(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrdersRequireAuthenticatedUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	OrdersList(&stubOrderService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestOrdersListParsesStatusFilter(t *testing.T) {
	svc := &stubOrderService{}
	userID := uuid.New()
	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=PENDING&limit=10", nil), userID)
	resp := httptest.NewRecorder()
	OrdersList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.listInput.Status == nil || *svc.listInput.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending filter, got %+v", svc.listInput.Status)
	}
	if svc.listInput.Params.Limit != 10 || svc.listInput.RequesterID != userID {
		t.Fatalf("unexpected list input %+v", svc.listInput)
	}

	bad := authed(httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=shipped", nil), userID)
	badResp := httptest.NewRecorder()
	OrdersList(svc, nil).ServeHTTP(badResp, bad)
	if badResp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status got %d", badResp.Code)
	}
}

func TestOrdersCheckoutReadsCaptchaHeader(t *testing.T) {
	svc := &stubOrderService{}
	buyerID := uuid.New()
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil), buyerID)
	req.Header.Set(captchaHeader, "token-1")
	req.RemoteAddr = "10.0.0.9:4000"
	resp := httptest.NewRecorder()
	OrdersCheckout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.checkoutInput.CaptchaToken != "token-1" || svc.checkoutInput.BuyerID != buyerID {
		t.Fatalf("unexpected checkout input %+v", svc.checkoutInput)
	}
	if svc.checkoutInput.RemoteIP != "10.0.0.9" {
		t.Fatalf("expected remote ip, got %q", svc.checkoutInput.RemoteIP)
	}
}

func TestOrdersCancelOptionalReason(t *testing.T) {
	svc := &stubOrderService{}
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"changed my mind"}`))
	req = withParams(authed(req, uuid.New()), "orderId", orderID.String())
	resp := httptest.NewRecorder()
	OrdersCancel(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.cancelInput.Reason == nil || *svc.cancelInput.Reason != "changed my mind" {
		t.Fatalf("expected reason to pass through, got %+v", svc.cancelInput.Reason)
	}

	empty := withParams(authed(httptest.NewRequest(http.MethodPost, "/", nil), uuid.New()), "orderId", orderID.String())
	emptyResp := httptest.NewRecorder()
	OrdersCancel(svc, nil).ServeHTTP(emptyResp, empty)
	if emptyResp.Code != http.StatusOK {
		t.Fatalf("expected 200 without body got %d", emptyResp.Code)
	}
	if svc.cancelInput.Reason != nil {
		t.Fatalf("expected nil reason without body")
	}
}

func TestOrdersGetRejectsMalformedID(t *testing.T) {
	req := withParams(authed(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New()), "orderId", "nope")
	resp := httptest.NewRecorder()
	OrdersGet(&stubOrderService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
