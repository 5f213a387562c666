package handler

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/middleware"
	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/internal/voice"
)

// maxAudioBytes bounds uploaded recordings.
const maxAudioBytes = 25 << 20

// Speech handles GET /api/assistant/sessions/{id}/speech
func (h *SessionHandler) Speech(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionParam(w, r)
	if !ok {
		return
	}

	audio, err := h.service.Speech(r.Context(), sessionID, middleware.GetClientID(r.Context()))
	if errors.Is(err, voice.ErrNothingToSay) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer audio.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, audio); err != nil {
		h.logger.Debug("speech stream interrupted", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Transcribe handles POST /api/assistant/transcriptions
func (h *SessionHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file required")
		return
	}
	defer file.Close()

	text, err := h.service.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("transcription failed", zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, &model.TranscriptionResponse{Text: text})
}
