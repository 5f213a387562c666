package handler

import (
	"net/http"

	"github.com/capitalize-ai/ace-assistant/internal/middleware"
	"github.com/capitalize-ai/ace-assistant/internal/settings"
)

// GetSettings handles GET /api/assistant/settings
func (h *SessionHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Settings(r.Context(), middleware.GetClientID(r.Context()))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PutSettings handles PUT /api/assistant/settings
func (h *SessionHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var st settings.Settings
	if err := decodeJSON(w, r, &st); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.service.UpdateSettings(r.Context(), middleware.GetClientID(r.Context()), st)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
