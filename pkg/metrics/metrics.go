// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMStreamDuration tracks LLM streaming response duration.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "LLM streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// NATSStreamMessages tracks messages in NATS stream.
	NATSStreamMessages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_messages",
			Help: "Number of messages in NATS stream",
		},
		[]string{"stream"},
	)

	// NATSStreamBytes tracks bytes in NATS stream.
	NATSStreamBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_bytes",
			Help: "Bytes in NATS stream",
		},
		[]string{"stream"},
	)

	// ProposalsTotal tracks action proposal transitions.
	ProposalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_proposals_total",
			Help: "Action proposals by kind and resulting status",
		},
		[]string{"kind", "status"},
	)

	// ExchangesTotal tracks finished assistant exchanges.
	ExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_exchanges_total",
			Help: "Assistant exchanges by outcome",
		},
		[]string{"outcome"},
	)

	// ConversationsSaved tracks conversations written to the store.
	ConversationsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_saved_total",
			Help: "Conversations persisted",
		},
		[]string{"status"},
	)

	// MessagesSaved tracks persisted message rows.
	MessagesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_saved_total",
			Help: "Messages persisted",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMStream records metrics for an LLM streaming response.
func RecordLLMStream(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMStreamDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}

// RecordProposal records an action proposal reaching status.
func RecordProposal(kind, status string) {
	ProposalsTotal.WithLabelValues(kind, status).Inc()
}

// RecordExchange records how an assistant exchange ended.
func RecordExchange(outcome string) {
	ExchangesTotal.WithLabelValues(outcome).Inc()
}

// RecordConversationSaved records a save attempt and its message roles.
func RecordConversationSaved(err error, roles []string) {
	if err != nil {
		ConversationsSaved.WithLabelValues("error").Inc()
		return
	}
	ConversationsSaved.WithLabelValues("ok").Inc()
	for _, r := range roles {
		MessagesSaved.WithLabelValues(r).Inc()
	}
}
