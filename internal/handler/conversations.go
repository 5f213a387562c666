// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/middleware"
	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/internal/service"
	"github.com/capitalize-ai/ace-assistant/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SaveConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.Save(ctx, &req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to save conversation",
				zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
				zap.Error(err),
			)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, &model.SaveConversationResponse{ConversationID: id})
}
