// Package session drives one assistant exchange: it streams a model reply
// for a transcript, turns tool calls into action proposals and reports the
// progress as a stream of events.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/action"
	"github.com/capitalize-ai/ace-assistant/internal/llm"
	"github.com/capitalize-ai/ace-assistant/internal/transcript"
	"github.com/capitalize-ai/ace-assistant/pkg/logger"
	"github.com/capitalize-ai/ace-assistant/pkg/metrics"
)

// MaxSteps bounds the provider round trips of one exchange.
const MaxSteps = 6

const eventBuffer = 64

var (
	// ErrExchangeInProgress is returned by Send while the transcript already
	// has an open exchange.
	ErrExchangeInProgress = errors.New("an exchange is already in progress")
	// ErrNoProvider is reported when no model client is configured.
	ErrNoProvider = errors.New("no model provider configured")
)

// Request is the input of one exchange.
type Request struct {
	Transcript *transcript.Transcript
	Proposals  *action.Registry
	// Preamble is the system prompt sent with every step.
	Preamble string
	// Actions limits the tools offered to the model; nil offers the whole catalog.
	Actions []action.Kind
}

// Coordinator runs exchanges against a model client.
type Coordinator struct {
	client      llm.Client
	model       string
	maxTokens   int
	maxSteps    int
	missingHint string
	log         *logger.Logger

	mu   sync.Mutex
	busy map[*transcript.Transcript]struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithModel sets the model name sent to the provider.
func WithModel(model string) Option {
	return func(c *Coordinator) { c.model = model }
}

// WithMaxTokens sets the per-step token limit.
func WithMaxTokens(n int) Option {
	return func(c *Coordinator) { c.maxTokens = n }
}

// WithMaxSteps overrides MaxSteps.
func WithMaxSteps(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithMissingProviderHint sets the message reported when client is nil,
// e.g. "Missing OPENAI_API_KEY".
func WithMissingProviderHint(hint string) Option {
	return func(c *Coordinator) { c.missingHint = hint }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// NewCoordinator creates a coordinator. client may be nil when the provider
// is not configured; every exchange then fails with a configuration error.
func NewCoordinator(client llm.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		client:   client,
		maxSteps: MaxSteps,
		log:      logger.Global(),
		busy:     make(map[*transcript.Transcript]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Busy reports whether t has an open exchange.
func (c *Coordinator) Busy(t *transcript.Transcript) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.busy[t]
	return ok
}

// Send starts an exchange for the transcript's current content. The returned
// channel delivers events in order and is closed after exactly one terminal
// event. The caller must drain it. Cancelling ctx aborts the exchange.
func (c *Coordinator) Send(ctx context.Context, req Request) (<-chan Event, error) {
	if req.Transcript == nil || req.Proposals == nil {
		return nil, errors.New("session: transcript and proposals are required")
	}

	c.mu.Lock()
	if _, ok := c.busy[req.Transcript]; ok {
		c.mu.Unlock()
		return nil, ErrExchangeInProgress
	}
	c.busy[req.Transcript] = struct{}{}
	c.mu.Unlock()

	out := make(chan Event, eventBuffer)
	go c.run(ctx, req, out)
	return out, nil
}

func (c *Coordinator) release(t *transcript.Transcript) {
	c.mu.Lock()
	delete(c.busy, t)
	c.mu.Unlock()
}

type exchange struct {
	c   *Coordinator
	ctx context.Context
	req Request
	out chan<- Event
}

// emit delivers a non-terminal event. Nothing is delivered once ctx is
// done, even when the buffer has room.
func (x *exchange) emit(ev Event) bool {
	if x.ctx.Err() != nil {
		return false
	}
	select {
	case x.out <- ev:
		return true
	case <-x.ctx.Done():
		return false
	}
}

func (c *Coordinator) run(ctx context.Context, req Request, out chan Event) {
	defer close(out)
	// Release before the terminal event is observable so a client reacting
	// to it can start the next exchange right away.
	finish := func(ev Event) {
		c.release(req.Transcript)
		out <- ev
	}

	x := &exchange{c: c, ctx: ctx, req: req, out: out}
	ev := x.loop()
	switch e := ev.(type) {
	case Completed:
		metrics.RecordExchange("completed")
	case Aborted:
		metrics.RecordExchange("aborted")
	case Failed:
		metrics.RecordExchange(string(e.Kind) + "_error")
		c.log.Warn("exchange failed", zap.String("kind", string(e.Kind)), zap.Error(e.Err))
	}
	finish(ev)
}

func (x *exchange) loop() Event {
	c := x.c
	if c.client == nil {
		hint := c.missingHint
		if hint == "" {
			hint = ErrNoProvider.Error()
		}
		return Failed{Kind: ErrorKindConfiguration, Err: fmt.Errorf("%w: %s", llm.ErrMissingCredentials, hint)}
	}

	tools := toolsFor(x.req.Actions)
	emitted := false

	for step := 1; ; step++ {
		if x.ctx.Err() != nil {
			return Aborted{}
		}

		resp, partial, err := x.step(step, tools, &emitted)
		if x.ctx.Err() != nil {
			x.splice(partial, nil)
			return Aborted{}
		}
		if err != nil {
			x.splice(partial, nil)
			kind := ErrorKindStream
			if !emitted && llm.IsConfigurationError(err) {
				kind = ErrorKindConfiguration
			}
			return Failed{Kind: kind, Err: err}
		}

		// Re-delivered ids were announced in an earlier step and are not
		// announced or spliced again. A step made only of re-deliveries ends
		// the exchange.
		proposals := x.propose(resp.ToolCalls)
		x.splice(resp.Content, proposals)
		if x.ctx.Err() != nil {
			return Aborted{}
		}

		for _, p := range proposals {
			if !x.emit(ActionProposed{Proposal: p}) {
				return Aborted{}
			}
			emitted = true
		}
		if len(proposals) == 0 {
			return Completed{Steps: step}
		}

		for _, p := range proposals {
			output, _ := x.req.Proposals.ProviderOutput(p.ID)
			if !x.emit(ActionOutputReceived{ProposalID: p.ID, Output: output}) {
				return Aborted{}
			}
		}

		if step >= c.maxSteps {
			return Completed{Steps: step, Truncated: true}
		}
	}
}

// step performs one provider round trip. partial holds the text streamed so
// far, also when err is set.
func (x *exchange) step(step int, tools []llm.Tool, emitted *bool) (*llm.CompletionResponse, string, error) {
	c := x.c
	ctx, span := otel.Tracer("session").Start(x.ctx, "assistant.step")
	defer span.End()
	span.SetAttributes(attribute.Int("step", step), attribute.String("provider", c.client.Name()))

	start := time.Now()
	var partial strings.Builder
	resp, err := c.client.CompleteStream(ctx, &llm.CompletionRequest{
		Model:     c.model,
		System:    x.req.Preamble,
		Messages:  BuildMessages(x.req.Transcript, x.req.Proposals),
		Tools:     tools,
		MaxTokens: c.maxTokens,
	}, func(token string, _ int) error {
		if !x.emit(TextDelta{Text: token}) {
			return ctx.Err()
		}
		partial.WriteString(token)
		*emitted = true
		return nil
	})

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	model := c.model
	if resp != nil {
		model = resp.Model
		metrics.RecordLLMStream(model, status, time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
	} else {
		metrics.RecordLLMStream(model, status, time.Since(start).Seconds(), 0, 0)
	}

	return resp, partial.String(), err
}

// propose registers each tool call and returns the proposals it created.
// Calls without an id get one so the proposal can still be addressed.
func (x *exchange) propose(calls []llm.ToolCall) []action.Snapshot {
	var out []action.Snapshot
	for _, call := range calls {
		id := call.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		s, created := x.req.Proposals.Propose(x.ctx, id, call.Name, call.Arguments)
		if !created {
			x.c.log.Debug("ignoring re-delivered proposal", zap.String("proposal_id", id))
			continue
		}
		out = append(out, s)
	}
	return out
}

// splice appends the step's output as one assistant entry.
func (x *exchange) splice(text string, proposals []action.Snapshot) {
	var parts []transcript.Part
	if text != "" {
		parts = append(parts, &transcript.Text{Text: text})
	}
	for _, p := range proposals {
		parts = append(parts, &transcript.Action{
			ProposalID: p.ID,
			Kind:       p.Kind,
			Input:      p.Input,
			Status:     p.Status,
		})
	}
	if len(parts) == 0 {
		return
	}
	if _, err := x.req.Transcript.Append(transcript.Entry{Role: transcript.RoleAssistant, Parts: parts}); err != nil {
		x.c.log.Error("failed to append assistant entry", zap.Error(err))
	}
}

func toolsFor(kinds []action.Kind) []llm.Tool {
	if kinds == nil {
		kinds = action.Kinds()
	}
	tools := make([]llm.Tool, 0, len(kinds))
	for _, k := range kinds {
		def, err := action.Lookup(k)
		if err != nil {
			continue
		}
		tools = append(tools, llm.Tool{
			Name:        string(def.Kind),
			Description: def.Description,
			Parameters:  def.Schema,
		})
	}
	return tools
}
