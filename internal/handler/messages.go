package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/middleware"
	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/internal/session"
)

// SendMessage handles POST /api/assistant/sessions/{id}/messages
//
// The reply streams as server-sent events: text_delta, action_proposed,
// action_output, then exactly one of completed, aborted or error. A
// provider that cannot be used at all is reported as a 503 before the
// stream starts. Disconnecting aborts the exchange.
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")
	clientID := middleware.GetClientID(ctx)

	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.owns(w, sessionID, clientID) {
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, err := h.service.SendMessage(ctx, sessionID, clientID, &req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	first, ok := <-events
	if !ok {
		writeError(w, http.StatusInternalServerError, "exchange ended without a result")
		return
	}
	if f, isFailed := first.(session.Failed); isFailed && f.Kind == session.ErrorKindConfiguration {
		for range events {
		}
		h.logger.Warn("model provider not usable",
			zap.String("session_id", sessionID),
			zap.Error(f.Err),
		)
		writeJSON(w, http.StatusServiceUnavailable, &model.ErrorEvent{Kind: string(f.Kind), Message: f.Message()})
		return
	}

	stream := startEventStream(w, flusher)
	stream.send(first)
	stream.pipe(events)
}
