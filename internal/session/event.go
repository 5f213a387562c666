package session

import (
	"github.com/capitalize-ai/ace-assistant/internal/action"
)

// Event is one item of an exchange's stream. The set of events is closed:
// TextDelta, ActionProposed, ActionOutputReceived, Completed, Aborted and
// Failed. Completed, Aborted and Failed are terminal and always last.
type Event interface {
	// Name is the SSE event name.
	Name() string
	event()
}

// TextDelta is a fragment of assistant text.
type TextDelta struct {
	Text string `json:"text"`
}

// ActionProposed announces a new proposal awaiting the user's decision.
type ActionProposed struct {
	Proposal action.Snapshot `json:"proposal"`
}

// ActionOutputReceived carries the tool result reported back to the model.
type ActionOutputReceived struct {
	ProposalID string `json:"proposal_id"`
	Output     string `json:"output"`
}

// Completed ends an exchange normally. Truncated is set when the step
// bound stopped the exchange.
type Completed struct {
	Steps     int  `json:"steps"`
	Truncated bool `json:"truncated,omitempty"`
}

// Aborted ends an exchange cancelled by the caller.
type Aborted struct{}

// ErrorKind separates setup problems from failures during streaming.
type ErrorKind string

const (
	// ErrorKindConfiguration means the provider could not be used at all;
	// the message tells the user what to configure.
	ErrorKindConfiguration ErrorKind = "configuration"
	// ErrorKindStream is any failure after the exchange got going.
	ErrorKindStream ErrorKind = "stream"
)

// Failed ends an exchange with an error.
type Failed struct {
	Kind ErrorKind `json:"kind"`
	Err  error     `json:"-"`
}

// Message is the user-facing error text.
func (f Failed) Message() string {
	if f.Err == nil {
		return "unknown error"
	}
	return f.Err.Error()
}

func (TextDelta) Name() string            { return "text_delta" }
func (ActionProposed) Name() string       { return "action_proposed" }
func (ActionOutputReceived) Name() string { return "action_output" }
func (Completed) Name() string            { return "completed" }
func (Aborted) Name() string              { return "aborted" }
func (Failed) Name() string               { return "error" }

func (TextDelta) event()            {}
func (ActionProposed) event()       {}
func (ActionOutputReceived) event() {}
func (Completed) event()            {}
func (Aborted) event()              {}
func (Failed) event()               {}

// Terminal reports whether ev ends the stream.
func Terminal(ev Event) bool {
	switch ev.(type) {
	case Completed, Aborted, Failed:
		return true
	}
	return false
}
