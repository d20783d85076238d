package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/api/validators"
	"github.com/campusmart/campusmart-backend/internal/reviews"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const reviewService = "review service"

type submitReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment"`
}

// ReviewsList pages through the reviews {userId} received.
func ReviewsList(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, svc != nil, reviewService, func(w http.ResponseWriter, r *http.Request) error {
		reviewee, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			return err
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			return err
		}
		page, err := svc.List(r.Context(), reviews.ListInput{RevieweeID: reviewee, Params: params})
		return respond(w, page, err)
	})
}

// ReviewsSubmit rates {userId}. A second review by the same caller replaces
// the first.
func ReviewsSubmit(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, reviewService, func(w http.ResponseWriter, r *http.Request, reviewer uuid.UUID) error {
		reviewee, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			return err
		}
		var body submitReviewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		review, err := svc.Submit(r.Context(), reviewer, reviewee, reviews.SubmitInput{
			Rating:  body.Rating,
			Comment: body.Comment,
		})
		if err != nil {
			return err
		}
		return created(w, review)
	})
}

func ReviewsDelete(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, reviewService, func(w http.ResponseWriter, r *http.Request, reviewer uuid.UUID) error {
		reviewee, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			return err
		}
		return ack(w, svc.Delete(r.Context(), reviewer, reviewee), "deleted")
	})
}
