package model

import (
	"time"

	"github.com/capitalize-ai/ace-assistant/internal/action"
	"github.com/capitalize-ai/ace-assistant/internal/transcript"
)

// Attachment is an inline file sent with a user message.
type Attachment struct {
	// Data is a data: URL.
	Data      string `json:"data"`
	MediaType string `json:"media_type"`
	Filename  string `json:"filename,omitempty"`
}

// SendMessageRequest is the body of POST /sessions/{id}/messages.
type SendMessageRequest struct {
	Text        string       `json:"text"`
	Voice       bool         `json:"voice,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// CreateSessionResponse is returned when a session is created.
type CreateSessionResponse struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionView is the renderable state of a session.
type SessionView struct {
	SessionID string             `json:"sessionId"`
	Entries   []transcript.Entry `json:"entries"`
	Proposals []action.Snapshot  `json:"proposals"`
	Busy      bool               `json:"busy"`
}

// DecisionRequest is the optional body of confirm.
type DecisionRequest struct {
	Output string `json:"output,omitempty"`
}

// DecisionResponse is returned by confirm and deny.
type DecisionResponse struct {
	Proposal action.Snapshot `json:"proposal"`
	// OpenURL is set when the client should open a tab.
	OpenURL string `json:"open_url,omitempty"`
}

// TranscriptionResponse is returned by speech-to-text.
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// ErrorEvent is the payload of the SSE error event.
type ErrorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
