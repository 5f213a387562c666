package action

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/capitalize-ai/ace-assistant/pkg/metrics"
)

// ErrProposalNotFound is returned for ids the registry has never seen.
var ErrProposalNotFound = errors.New("proposal not found")

// Record describes one applied transition.
type Record struct {
	SessionID  string    `json:"session_id"`
	ProposalID string    `json:"proposal_id"`
	Kind       Kind      `json:"kind"`
	From       Status    `json:"from,omitempty"`
	To         Status    `json:"to"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Journal receives every proposal transition. Implementations must not block
// for long; failures are theirs to report.
type Journal interface {
	Record(ctx context.Context, rec Record)
}

type nopJournal struct{}

func (nopJournal) Record(context.Context, Record) {}

// Registry holds the proposals of one session. Proposing the same id twice
// returns the existing instance, so re-delivery never creates a second
// state machine. Distinct ids are independent.
type Registry struct {
	sessionID string
	journal   Journal
	now       func() time.Time

	mu        sync.Mutex
	proposals map[string]*proposal
	order     []string
}

// NewRegistry creates an empty registry. journal may be nil.
func NewRegistry(sessionID string, journal Journal) *Registry {
	if journal == nil {
		journal = nopJournal{}
	}
	return &Registry{
		sessionID: sessionID,
		journal:   journal,
		now:       time.Now,
		proposals: make(map[string]*proposal),
	}
}

// Propose registers a proposal emitted by the provider under toolName.
// created is false when the id was already known.
func (r *Registry) Propose(ctx context.Context, id, toolName string, raw []byte) (s Snapshot, created bool) {
	r.mu.Lock()
	if p, ok := r.proposals[id]; ok {
		s = p.snapshot()
		r.mu.Unlock()
		return s, false
	}
	p := newProposal(id, toolName, raw, r.now())
	r.proposals[id] = p
	r.order = append(r.order, id)
	s = p.snapshot()
	r.mu.Unlock()

	r.record(ctx, s, "")
	return s, true
}

// Get returns the current state of a proposal.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok {
		return Snapshot{}, false
	}
	return p.snapshot(), true
}

// Confirm accepts a proposal. An empty output echoes the validated input.
func (r *Registry) Confirm(ctx context.Context, id, output string) (Snapshot, error) {
	return r.transition(ctx, id, func(p *proposal, now time.Time) error {
		return p.confirm(output, now)
	})
}

// Deny rejects a proposal.
func (r *Registry) Deny(ctx context.Context, id string) (Snapshot, error) {
	return r.transition(ctx, id, func(p *proposal, now time.Time) error {
		return p.deny(now)
	})
}

// Execute performs the side effect of a confirmed proposal. When allowed is
// false nothing happens and the proposal stays confirmed.
func (r *Registry) Execute(ctx context.Context, id string, exec Executor, allowed bool) (Snapshot, Effect, error) {
	var effect Effect
	s, err := r.transition(ctx, id, func(p *proposal, now time.Time) error {
		if p.status != StatusConfirmed {
			return fmt.Errorf("%w: execute from %s", ErrIllegalTransition, p.status)
		}
		if !HasSideEffect(p.kind) {
			return fmt.Errorf("%w: %s", ErrNoSideEffect, p.kind)
		}
		if !allowed {
			return errNotPerformed
		}
		e, execErr := exec.Execute(ctx, p.snapshot())
		if execErr != nil {
			p.execErr = execErr
			return p.apply(EventExecuteFailed, now)
		}
		effect = e
		return p.apply(EventExecuteSucceeded, now)
	})
	if errors.Is(err, errNotPerformed) {
		return s, Effect{}, nil
	}
	return s, effect, err
}

var errNotPerformed = errors.New("automation not allowed")

func (r *Registry) transition(ctx context.Context, id string, fn func(p *proposal, now time.Time) error) (Snapshot, error) {
	r.mu.Lock()
	p, ok := r.proposals[id]
	if !ok {
		r.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrProposalNotFound, id)
	}
	from := p.status
	err := fn(p, r.now())
	s := p.snapshot()
	r.mu.Unlock()

	if err != nil {
		return s, err
	}
	r.record(ctx, s, from)
	return s, nil
}

func (r *Registry) record(ctx context.Context, s Snapshot, from Status) {
	metrics.RecordProposal(string(s.Kind), string(s.Status))
	r.journal.Record(ctx, Record{
		SessionID:  r.sessionID,
		ProposalID: s.ID,
		Kind:       s.Kind,
		From:       from,
		To:         s.Status,
		Output:     s.Output,
		Error:      s.Error,
		At:         r.now(),
	})
}

// Pending lists undecided proposals in creation order.
func (r *Registry) Pending() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Snapshot
	for _, id := range r.order {
		if p := r.proposals[id]; p.status == StatusProposed {
			out = append(out, p.snapshot())
		}
	}
	return out
}

// Snapshots lists every proposal in creation order.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.proposals[id].snapshot())
	}
	return out
}

// ProviderOutput is the tool result reported to the model for a proposal:
// the user's decision once there is one, the readiness acknowledgement otherwise.
func (r *Registry) ProviderOutput(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok {
		return "", false
	}
	if p.status.Decided() {
		return p.output, true
	}
	return p.readyOutput(), true
}
