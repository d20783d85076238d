package controllers

import (
	"net/http"

	"github.com/campusmart/campusmart-backend/api/middleware"
	"github.com/campusmart/campusmart-backend/api/validators"
	"github.com/campusmart/campusmart-backend/internal/auth"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const authService = "auth service"

// AuthRegister opens a student account and starts its first session.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, svc != nil, authService, func(w http.ResponseWriter, r *http.Request) error {
		var body auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		result, err := svc.Register(r.Context(), body)
		if err != nil {
			return err
		}
		return created(w, result)
	})
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, svc != nil, authService, func(w http.ResponseWriter, r *http.Request) error {
		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		result, err := svc.Login(r.Context(), body)
		return respond(w, result, err)
	})
}

// AuthRefresh rotates the session behind the bearer token, which may already
// be expired.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, svc != nil, authService, func(w http.ResponseWriter, r *http.Request) error {
		token, err := middleware.BearerToken(r)
		if err != nil {
			return err
		}
		var body auth.RefreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		body.AccessToken = token
		pair, err := svc.Refresh(r.Context(), body)
		return respond(w, pair, err)
	})
}

func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, svc != nil, authService, func(w http.ResponseWriter, r *http.Request) error {
		token, err := middleware.BearerToken(r)
		if err != nil {
			return err
		}
		return ack(w, svc.Logout(r.Context(), token), "logged_out")
	})
}
