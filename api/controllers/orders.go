package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/api/middleware"
	"github.com/campusmart/campusmart-backend/api/validators"
	"github.com/campusmart/campusmart-backend/internal/orders"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const (
	captchaHeader = "X-Recaptcha-Token"
	orderService  = "order service"
)

type checkoutRequest struct {
	CaptchaToken string `json:"captcha_token"`
}

type deliverRequest struct {
	OTP string `json:"otp" validate:"required"`
}

type cancelRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// orderEndpoint receives the caller and the {orderId} path parameter.
type orderEndpoint func(w http.ResponseWriter, r *http.Request, caller, orderID uuid.UUID) error

func handleOrder(svc orders.Service, logg *logger.Logger, fn orderEndpoint) http.HandlerFunc {
	return handleCaller(logg, svc != nil, orderService, func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return err
		}
		return fn(w, r, caller, orderID)
	})
}

// OrdersCheckout turns the caller's active cart lines into pending orders.
// The captcha token may come in the body or the X-Recaptcha-Token header.
func OrdersCheckout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, orderService, func(w http.ResponseWriter, r *http.Request, buyer uuid.UUID) error {
		var body checkoutRequest
		if err := decodeOptional(r, &body); err != nil {
			return err
		}
		token := strings.TrimSpace(body.CaptchaToken)
		if token == "" {
			token = strings.TrimSpace(r.Header.Get(captchaHeader))
		}

		placed, err := svc.Checkout(r.Context(), orders.CheckoutInput{
			BuyerID:      buyer,
			CaptchaToken: token,
			RemoteIP:     middleware.ClientIP(r),
		})
		if err != nil {
			return err
		}
		return created(w, map[string]any{"orders": placed})
	})
}

// OrdersList pages through orders the caller bought or sold.
func OrdersList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, orderService, func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error {
		params, err := validators.ParsePagination(r)
		if err != nil {
			return err
		}
		input := orders.ListInput{RequesterID: caller, Params: params}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			filter, err := enums.ParseOrderStatus(strings.ToLower(raw))
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
			}
			input.Status = &filter
		}
		result, err := svc.List(r.Context(), input)
		return respond(w, result, err)
	})
}

func OrdersGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return handleOrder(svc, logg, func(w http.ResponseWriter, r *http.Request, caller, orderID uuid.UUID) error {
		view, err := svc.Get(r.Context(), orderID, caller)
		return respond(w, view, err)
	})
}

// OrdersRegenerateOTP replaces the delivery code of a pending order.
func OrdersRegenerateOTP(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return handleOrder(svc, logg, func(w http.ResponseWriter, r *http.Request, caller, orderID uuid.UUID) error {
		result, err := svc.RegenerateOTP(r.Context(), orderID, caller)
		return respond(w, result, err)
	})
}

// OrdersDeliver is called by the seller with the code the buyer shows at
// hand-off.
func OrdersDeliver(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return handleOrder(svc, logg, func(w http.ResponseWriter, r *http.Request, caller, orderID uuid.UUID) error {
		var body deliverRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		result, err := svc.VerifyAndDeliver(r.Context(), orders.DeliverInput{
			OrderID:     orderID,
			RequesterID: caller,
			OTP:         body.OTP,
		})
		return respond(w, result, err)
	})
}

func OrdersCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return handleOrder(svc, logg, func(w http.ResponseWriter, r *http.Request, caller, orderID uuid.UUID) error {
		var body cancelRequest
		if err := decodeOptional(r, &body); err != nil {
			return err
		}
		result, err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID:     orderID,
			RequesterID: caller,
			Reason:      body.Reason,
		})
		return respond(w, result, err)
	})
}

// OrdersHistory lists the recorded status transitions, oldest first.
func OrdersHistory(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return handleOrder(svc, logg, func(w http.ResponseWriter, r *http.Request, caller, orderID uuid.UUID) error {
		history, err := svc.History(r.Context(), orderID, caller)
		if err != nil {
			return err
		}
		return ok(w, map[string]any{"transitions": history})
	})
}
