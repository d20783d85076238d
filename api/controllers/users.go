package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/api/validators"
	"github.com/campusmart/campusmart-backend/internal/users"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const userService = "user service"

type updateProfileRequest struct {
	Name      *string `json:"name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Campus    *string `json:"campus,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

func UsersMe(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, userService, func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error {
		profile, err := svc.Me(r.Context(), caller)
		return respond(w, profile, err)
	})
}

// UsersUpdateMe applies a partial edit; omitted fields keep their value.
func UsersUpdateMe(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, userService, func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error {
		var body updateProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		profile, err := svc.UpdateMe(r.Context(), caller, users.UpdateProfileInput{
			Name:      body.Name,
			Phone:     body.Phone,
			Campus:    body.Campus,
			AvatarURL: body.AvatarURL,
		})
		return respond(w, profile, err)
	})
}

// UsersPublic returns another student's public profile.
func UsersPublic(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, svc != nil, userService, func(w http.ResponseWriter, r *http.Request) error {
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			return err
		}
		profile, err := svc.Public(r.Context(), userID)
		return respond(w, profile, err)
	})
}
