package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

const (
	// OutputDenied is the tool output recorded for a denied proposal.
	OutputDenied = "denied"
	// OutputConfirmed is the confirmation token used when there is no input to echo.
	OutputConfirmed = "confirmed"
)

// ErrInvalidProposal is returned when confirming a proposal whose
// parameters failed validation.
var ErrInvalidProposal = errors.New("proposal parameters are invalid")

// Snapshot is an immutable copy of a proposal's state.
type Snapshot struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Input     json.RawMessage `json:"input,omitempty"`
	Prompt    string          `json:"prompt,omitempty"`
	Status    Status          `json:"status"`
	Output    string          `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	Invalid   bool            `json:"invalid,omitempty"`
	History   []Status        `json:"history"`
	CreatedAt time.Time       `json:"created_at"`
	DecidedAt *time.Time      `json:"decided_at,omitempty"`
}

// proposal is one state machine instance. It is owned by a Registry and
// never touched without the registry lock.
type proposal struct {
	id        string
	kind      Kind
	raw       json.RawMessage
	params    Parameters
	invalid   error
	status    Status
	output    string
	execErr   error
	history   []Status
	createdAt time.Time
	decidedAt time.Time
}

func newProposal(id, name string, raw json.RawMessage, now time.Time) *proposal {
	p := &proposal{
		id:        id,
		kind:      Kind(name),
		raw:       compact(raw),
		status:    StatusProposed,
		history:   []Status{StatusProposed},
		createdAt: now,
	}

	kind, err := ParseKind(name)
	if err != nil {
		p.invalid = err
		return p
	}
	p.params, p.invalid = Validate(kind, p.raw)
	return p
}

func compact(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return buf.Bytes()
}

func (p *proposal) apply(ev Event, now time.Time) error {
	next, err := Transition(p.status, ev)
	if err != nil {
		return err
	}
	p.status = next
	p.history = append(p.history, next)
	if ev == EventConfirm || ev == EventDeny {
		p.decidedAt = now
	}
	return nil
}

func (p *proposal) confirm(output string, now time.Time) error {
	if p.status != StatusProposed {
		return p.apply(EventConfirm, now)
	}
	if p.invalid != nil {
		return errors.Join(ErrInvalidProposal, p.invalid)
	}
	if output == "" {
		output = OutputConfirmed
		if len(p.raw) > 0 {
			output = string(p.raw)
		}
	}
	if err := p.apply(EventConfirm, now); err != nil {
		return err
	}
	p.output = output
	return nil
}

func (p *proposal) deny(now time.Time) error {
	if err := p.apply(EventDeny, now); err != nil {
		return err
	}
	p.output = OutputDenied
	return nil
}

// readyOutput is the acknowledgement sent back to the provider while a
// proposal waits for the user.
func (p *proposal) readyOutput() string {
	if p.invalid != nil {
		b, _ := json.Marshal(map[string]string{"state": "error", "error": p.invalid.Error()})
		return string(b)
	}
	fields := map[string]json.RawMessage{}
	_ = json.Unmarshal(p.raw, &fields)
	fields["state"] = json.RawMessage(`"ready"`)
	b, _ := json.Marshal(fields)
	return string(b)
}

func (p *proposal) snapshot() Snapshot {
	s := Snapshot{
		ID:        p.id,
		Kind:      p.kind,
		Input:     append(json.RawMessage(nil), p.raw...),
		Status:    p.status,
		Output:    p.output,
		History:   append([]Status(nil), p.history...),
		CreatedAt: p.createdAt,
	}
	if def, err := lookup(p.kind); err == nil {
		s.Prompt = def.Prompt
	}
	switch {
	case p.invalid != nil:
		s.Error = p.invalid.Error()
		s.Invalid = true
	case p.execErr != nil:
		s.Error = p.execErr.Error()
	}
	if !p.decidedAt.IsZero() {
		t := p.decidedAt
		s.DecidedAt = &t
	}
	return s
}
