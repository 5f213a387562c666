package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageLength bounds the text of one user message.
const MaxMessageLength = 100000

// ValidateMessageText validates the text of a user message. Empty text is
// allowed since a message may carry only attachments.
func ValidateMessageText(text string) error {
	if len(text) > MaxMessageLength {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateSessionID validates a session ID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid session ID format")
	}
	return nil
}

// ValidateActionID validates a proposal id. Provider call ids are opaque, so
// only the length and encoding are checked.
func ValidateActionID(id string) error {
	if len(id) == 0 {
		return errors.New("action ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("action ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("action ID must be valid UTF-8")
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}
