package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/api/validators"
	"github.com/campusmart/campusmart-backend/internal/cart"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

type addCartItemRequest struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gte=1"`
}

type saveForLaterRequest struct {
	Saved *bool `json:"saved,omitempty"`
}

type bargainRequest struct {
	PriceCents int    `json:"price_cents" validate:"gte=0"`
	Message    string `json:"message"`
}

type respondBargainRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

const cartService = "cart service"

// CartList returns the caller's cart.
func CartList(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, cartService, func(w http.ResponseWriter, r *http.Request, buyer uuid.UUID) error {
		result, err := svc.List(r.Context(), buyer)
		return respond(w, result, err)
	})
}

// CartAdd adds an item, or sets the quantity of an existing line.
func CartAdd(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, cartService, func(w http.ResponseWriter, r *http.Request, buyer uuid.UUID) error {
		var body addCartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		line, err := svc.AddOrUpdate(r.Context(), buyer, cart.AddInput{ItemID: body.ItemID, Quantity: body.Quantity})
		return respond(w, line, err)
	})
}

func CartRemove(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, cartService, func(w http.ResponseWriter, r *http.Request, buyer uuid.UUID) error {
		lineID, err := validators.ParseUUIDParam(r, "lineId")
		if err != nil {
			return err
		}
		return ack(w, svc.Remove(r.Context(), buyer, lineID), "removed")
	})
}

// CartSaveForLater toggles the saved-for-later flag. An empty body saves.
func CartSaveForLater(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, cartService, func(w http.ResponseWriter, r *http.Request, buyer uuid.UUID) error {
		lineID, err := validators.ParseUUIDParam(r, "lineId")
		if err != nil {
			return err
		}
		var body saveForLaterRequest
		if err := decodeOptional(r, &body); err != nil {
			return err
		}
		saved := body.Saved == nil || *body.Saved
		if err := svc.SaveForLater(r.Context(), buyer, lineID, saved); err != nil {
			return err
		}
		return ok(w, map[string]any{"line_id": lineID, "saved_for_later": saved})
	})
}

// CartBargain offers the seller a lower price for one line.
func CartBargain(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, cartService, func(w http.ResponseWriter, r *http.Request, buyer uuid.UUID) error {
		lineID, err := validators.ParseUUIDParam(r, "lineId")
		if err != nil {
			return err
		}
		var body bargainRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		line, err := svc.Bargain(r.Context(), buyer, lineID, cart.BargainInput{
			PriceCents: body.PriceCents,
			Message:    body.Message,
		})
		return respond(w, line, err)
	})
}

// BargainsIncoming lists pending offers on the caller's listings.
func BargainsIncoming(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, cartService, func(w http.ResponseWriter, r *http.Request, seller uuid.UUID) error {
		result, err := svc.IncomingBargains(r.Context(), seller)
		return respond(w, result, err)
	})
}

func BargainsRespond(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, cartService, func(w http.ResponseWriter, r *http.Request, seller uuid.UUID) error {
		lineID, err := validators.ParseUUIDParam(r, "lineId")
		if err != nil {
			return err
		}
		var body respondBargainRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		line, err := svc.RespondBargain(r.Context(), seller, lineID, *body.Accept)
		return respond(w, line, err)
	})
}
