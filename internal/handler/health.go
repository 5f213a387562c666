package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/capitalize-ai/ace-assistant/internal/model"
	natsclient "github.com/capitalize-ai/ace-assistant/internal/nats"
)

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderStatus describes the configured model provider.
type ProviderStatus struct {
	Name string
	// Missing is the user-facing instruction when the provider cannot be
	// used, e.g. "Missing OPENAI_API_KEY". Empty when configured.
	Missing string
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	provider   ProviderStatus
	store      Pinger
	natsClient *natsclient.Client
}

// NewHealthHandler creates a new health handler. natsClient may be nil when
// the journal is disabled.
func NewHealthHandler(provider ProviderStatus, store Pinger, natsClient *natsclient.Client) *HealthHandler {
	return &HealthHandler{
		provider:   provider,
		store:      store,
		natsClient: natsClient,
	}
}

// Assistant handles GET /api/assistant
func (h *HealthHandler) Assistant(w http.ResponseWriter, r *http.Request) {
	if h.provider.Missing != "" {
		writeJSON(w, http.StatusInternalServerError, &model.HealthResponse{
			OK:    false,
			Error: h.provider.Missing,
		})
		return
	}
	writeJSON(w, http.StatusOK, &model.HealthResponse{
		OK:       true,
		Provider: h.provider.Name,
	})
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "store not configured",
		})
		return
	}
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "store unreachable",
		})
		return
	}

	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
