package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/api/middleware"
	"github.com/campusmart/campusmart-backend/api/responses"
	"github.com/campusmart/campusmart-backend/api/validators"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

// endpoint is a handler body. A returned error is rendered by
// responses.WriteError.
type endpoint func(w http.ResponseWriter, r *http.Request) error

// callerEndpoint also receives the authenticated user id.
type callerEndpoint func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error

// handle answers 503 while the backing service is not wired (ready false).
func handle(logg *logger.Logger, ready bool, service string, fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ready {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, service+" not configured"))
			return
		}
		if err := fn(w, r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
		}
	}
}

func handleCaller(logg *logger.Logger, ready bool, service string, fn callerEndpoint) http.HandlerFunc {
	return handle(logg, ready, service, func(w http.ResponseWriter, r *http.Request) error {
		caller, err := requireUser(r)
		if err != nil {
			return err
		}
		return fn(w, r, caller)
	})
}

func requireUser(r *http.Request) (uuid.UUID, error) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return userID, nil
}

// decodeOptional leaves dst untouched when the request has no body.
func decodeOptional(r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return validators.DecodeJSONBody(r, dst)
}

func ok(w http.ResponseWriter, data any) error {
	responses.WriteSuccess(w, data)
	return nil
}

func created(w http.ResponseWriter, data any) error {
	responses.WriteSuccessStatus(w, http.StatusCreated, data)
	return nil
}

// respond writes data, or returns err untouched for handle to render.
func respond[T any](w http.ResponseWriter, data T, err error) error {
	if err != nil {
		return err
	}
	return ok(w, data)
}

// ack writes {"status": state} unless err is set.
func ack(w http.ResponseWriter, err error, state string) error {
	if err != nil {
		return err
	}
	return ok(w, map[string]string{"status": state})
}
