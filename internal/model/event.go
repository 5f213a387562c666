package model

import (
	"time"
)

// EventType is the type of an exchange event recorded in the journal.
type EventType string

const (
	EventTypeCompleted EventType = "completed"
	EventTypeAborted   EventType = "aborted"
	EventTypeError     EventType = "error"
	EventTypeSaved     EventType = "saved"
)

// ExchangeEvent is an exchange outcome recorded in the journal.
type ExchangeEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"type"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Sequence  uint64         `json:"sequence,omitempty"`
}
