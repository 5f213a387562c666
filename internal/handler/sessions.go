package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/middleware"
	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/internal/service"
	"github.com/capitalize-ai/ace-assistant/pkg/logger"
)

// SessionHandler handles the assistant session endpoints.
type SessionHandler struct {
	service *service.AssistantService
	logger  *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc *service.AssistantService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  log,
	}
}

// owns writes 404 unless the session exists and was created by clientID.
// Anonymous sessions are open to anyone holding the id.
func (h *SessionHandler) owns(w http.ResponseWriter, sessionID, clientID string) bool {
	sess, err := h.service.Get(sessionID)
	if err != nil || (sess.ClientID != "" && sess.ClientID != clientID) {
		writeError(w, http.StatusNotFound, service.ErrSessionNotFound.Error())
		return false
	}
	return true
}

// sessionParam validates the {id} parameter and the caller's access to it.
func (h *SessionHandler) sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if !h.owns(w, sessionID, middleware.GetClientID(r.Context())) {
		return "", false
	}
	return sessionID, true
}

// Create handles POST /api/assistant/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := h.service.Create(r.Context(), middleware.GetClientID(r.Context()))
	writeJSON(w, http.StatusCreated, &model.CreateSessionResponse{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt,
	})
}

// Get handles GET /api/assistant/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionParam(w, r)
	if !ok {
		return
	}

	view, err := h.service.View(sessionID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Stop handles POST /api/assistant/sessions/{id}/stop
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionParam(w, r)
	if !ok {
		return
	}

	stopped, err := h.service.Stop(sessionID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}

// Save handles POST /api/assistant/sessions/{id}/save
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionParam(w, r)
	if !ok {
		return
	}

	id, err := h.service.Save(r.Context(), sessionID)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to save session", zap.String("session_id", sessionID), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, &model.SaveConversationResponse{ConversationID: id})
}

// Decisions handles GET /api/assistant/sessions/{id}/decisions
func (h *SessionHandler) Decisions(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionParam(w, r)
	if !ok {
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	records, err := h.service.Decisions(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"decisions": records})
}

// Confirm handles POST /api/assistant/sessions/{id}/actions/{actionId}/confirm
func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionParam(w, r)
	if !ok {
		return
	}
	actionID := chi.URLParam(r, "actionId")
	if err := middleware.ValidateActionID(actionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The body is optional.
	var req model.DecisionRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp, err := h.service.Confirm(r.Context(), sessionID, middleware.GetClientID(r.Context()), actionID, req.Output)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Deny handles POST /api/assistant/sessions/{id}/actions/{actionId}/deny
func (h *SessionHandler) Deny(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionParam(w, r)
	if !ok {
		return
	}
	actionID := chi.URLParam(r, "actionId")
	if err := middleware.ValidateActionID(actionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Deny(r.Context(), sessionID, actionID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
