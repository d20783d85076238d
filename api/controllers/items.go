package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/api/validators"
	"github.com/campusmart/campusmart-backend/internal/items"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/types"
)

const (
	maxSearchQueryLength = 120
	maxPriceFilterCents  = 100_000_000
)

type createItemRequest struct {
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description"`
	PriceCents  int               `json:"price_cents" validate:"gte=0"`
	Quantity    *int              `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Categories  []string          `json:"categories" validate:"required,min=1"`
	Images      []types.ItemImage `json:"images,omitempty"`
}

type updateItemRequest struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	PriceCents  *int               `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	Quantity    *int               `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Categories  *[]string          `json:"categories,omitempty"`
	Images      *[]types.ItemImage `json:"images,omitempty"`
}

const itemService = "item service"

// ItemsList searches listings with optional filters.
func ItemsList(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, svc != nil, itemService, func(w http.ResponseWriter, r *http.Request) error {
		input, err := parseItemListInput(r)
		if err != nil {
			return err
		}
		result, err := svc.List(r.Context(), input)
		return respond(w, result, err)
	})
}

func parseItemListInput(r *http.Request) (items.ListInput, error) {
	params, err := validators.ParsePagination(r)
	if err != nil {
		return items.ListInput{}, err
	}
	sellerID, err := validators.ParseOptionalQueryUUID(r, "seller_id")
	if err != nil {
		return items.ListInput{}, err
	}
	minPrice, err := validators.ParseOptionalQueryInt(r, "min_price_cents", 0, maxPriceFilterCents)
	if err != nil {
		return items.ListInput{}, err
	}
	maxPrice, err := validators.ParseOptionalQueryInt(r, "max_price_cents", 0, maxPriceFilterCents)
	if err != nil {
		return items.ListInput{}, err
	}
	available, err := validators.ParseOptionalQueryBool(r, "available")
	if err != nil {
		return items.ListInput{}, err
	}
	query := r.URL.Query()
	return items.ListInput{
		Query:         validators.SanitizeString(query.Get("q"), maxSearchQueryLength),
		Category:      strings.ToLower(strings.TrimSpace(query.Get("category"))),
		SellerID:      sellerID,
		MinPriceCents: minPrice,
		MaxPriceCents: maxPrice,
		AvailableOnly: available,
		Params:        params,
	}, nil
}

// ItemsCreate lists a new item for sale by the caller.
func ItemsCreate(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, itemService, func(w http.ResponseWriter, r *http.Request, seller uuid.UUID) error {
		var body createItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		item, err := svc.Create(r.Context(), seller, items.CreateInput{
			Name:        body.Name,
			Description: body.Description,
			PriceCents:  body.PriceCents,
			Quantity:    body.Quantity,
			Categories:  body.Categories,
			Images:      body.Images,
		})
		if err != nil {
			return err
		}
		return created(w, item)
	})
}

func ItemsGet(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, svc != nil, itemService, func(w http.ResponseWriter, r *http.Request) error {
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			return err
		}
		item, err := svc.Get(r.Context(), itemID)
		return respond(w, item, err)
	})
}

// ItemsUpdate patches one of the caller's listings.
func ItemsUpdate(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, itemService, func(w http.ResponseWriter, r *http.Request, seller uuid.UUID) error {
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			return err
		}
		var body updateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		item, err := svc.Update(r.Context(), seller, itemID, items.UpdateInput{
			Name:        body.Name,
			Description: body.Description,
			PriceCents:  body.PriceCents,
			Quantity:    body.Quantity,
			Categories:  body.Categories,
			Images:      body.Images,
		})
		return respond(w, item, err)
	})
}

func ItemsDelete(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, itemService, func(w http.ResponseWriter, r *http.Request, seller uuid.UUID) error {
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			return err
		}
		return ack(w, svc.Delete(r.Context(), seller, itemID), "deleted")
	})
}
