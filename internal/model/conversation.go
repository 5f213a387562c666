// Package model defines the request and response bodies of the HTTP API.
package model

import (
	"time"
)

// MessageInput is one message of a conversation submitted for saving.
type MessageInput struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SaveConversationRequest is the body of POST /api/conversations.
type SaveConversationRequest struct {
	Title    string         `json:"title,omitempty"`
	Messages []MessageInput `json:"messages"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SaveConversationResponse is returned when a conversation was stored.
type SaveConversationResponse struct {
	ConversationID string `json:"conversationId"`
}

// HealthResponse is returned by the assistant health check.
type HealthResponse struct {
	OK       bool   `json:"ok"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error,omitempty"`
}
