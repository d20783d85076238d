package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/api/validators"
	"github.com/campusmart/campusmart-backend/internal/notifications"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const notificationService = "notification service"

// NotificationsList returns the caller's inbox, newest first. unread=true
// limits it to unread entries.
func NotificationsList(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, notificationService, func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error {
		params, err := validators.ParsePagination(r)
		if err != nil {
			return err
		}
		unread, err := validators.ParseOptionalQueryBool(r, "unread")
		if err != nil {
			return err
		}
		result, err := svc.List(r.Context(), notifications.ListParams{
			UserID:     caller,
			Limit:      params.Limit,
			Cursor:     params.Cursor,
			UnreadOnly: unread != nil && *unread,
		})
		return respond(w, result, err)
	})
}

func NotificationsMarkRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, notificationService, func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error {
		id, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return err
		}
		return ack(w, svc.MarkRead(r.Context(), caller, id), "read")
	})
}

func NotificationsMarkAllRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, notificationService, func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error {
		updated, err := svc.MarkAllRead(r.Context(), caller)
		if err != nil {
			return err
		}
		return ok(w, map[string]int64{"updated": updated})
	})
}
