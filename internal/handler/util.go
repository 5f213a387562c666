package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/capitalize-ai/ace-assistant/internal/action"
	"github.com/capitalize-ai/ace-assistant/internal/service"
	"github.com/capitalize-ai/ace-assistant/internal/session"
	"github.com/capitalize-ai/ace-assistant/internal/settings"
	"github.com/capitalize-ai/ace-assistant/internal/transcript"
	"github.com/capitalize-ai/ace-assistant/internal/voice"
)

// maxBodyBytes bounds JSON request bodies; attachments are inline data URLs.
const maxBodyBytes = 20 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeJSON decodes a bounded request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, action.ErrProposalNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrExchangeInProgress),
		errors.Is(err, action.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, action.ErrInvalidProposal),
		errors.Is(err, action.ErrNoSideEffect):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidAttachment),
		errors.Is(err, service.ErrMessagesRequired),
		errors.Is(err, service.ErrInvalidMessage),
		errors.Is(err, transcript.ErrInvalidPart),
		errors.Is(err, settings.ErrInvalidSettings),
		errors.Is(err, settings.ErrMissingClientID):
		return http.StatusBadRequest
	case errors.Is(err, voice.ErrSpeechDisabled):
		return http.StatusForbidden
	case errors.Is(err, voice.ErrUnavailable),
		errors.Is(err, service.ErrJournalDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendSSEEvent writes one server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
