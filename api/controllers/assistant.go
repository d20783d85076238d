package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/api/validators"
	"github.com/campusmart/campusmart-backend/internal/assistant"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

type chatRequest struct {
	SessionID string `json:"session_id,omitempty" validate:"omitempty,uuid"`
	Message   string `json:"message" validate:"required"`
}

// AssistantChat sends one message to the marketplace assistant.
func AssistantChat(svc assistant.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, "assistant", func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error {
		var body chatRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		reply, err := svc.Chat(r.Context(), caller, assistant.ChatInput{
			SessionID: body.SessionID,
			Message:   body.Message,
		})
		return respond(w, reply, err)
	})
}

// AssistantReset forgets a conversation.
func AssistantReset(svc assistant.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, "assistant", func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error {
		return ack(w, svc.Reset(r.Context(), caller, chi.URLParam(r, "sessionId")), "reset")
	})
}
