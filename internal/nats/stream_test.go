package nats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/ace-assistant/internal/action"
	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/pkg/logger"
)

type published struct {
	subject string
	data    []byte
	expired bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{subject: subject, data: payload, expired: ctx.Err() != nil})
	if f.err != nil {
		return nil, f.err
	}
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(f.msgs))}, nil
}

func newTestManager(pub publisher) *StreamManager {
	return &StreamManager{pub: pub, logger: logger.Global()}
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "assistant.s1.action.denied", ActionSubject("s1", action.StatusDenied))
	assert.Equal(t, "assistant.s1.event.aborted", EventSubject("s1", model.EventTypeAborted))
	assert.Equal(t, "assistant.s1.action.>", SessionFilter("s1"))
}

func TestRecordPublishesDecision(t *testing.T) {
	pub := &fakePublisher{}
	m := newTestManager(pub)

	// A cancelled request context still gets its decision journaled.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := action.NewRegistry("s1", m)
	reg.Propose(ctx, "call_1", "openUrl", []byte(`{"url":"https://example.com"}`))
	_, err := reg.Deny(ctx, "call_1")
	require.NoError(t, err)

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "assistant.s1.action.proposed", pub.msgs[0].subject)
	assert.Equal(t, "assistant.s1.action.denied", pub.msgs[1].subject)
	assert.False(t, pub.msgs[1].expired)

	var rec action.Record
	require.NoError(t, json.Unmarshal(pub.msgs[1].data, &rec))
	assert.Equal(t, action.StatusProposed, rec.From)
	assert.Equal(t, action.StatusDenied, rec.To)
	assert.Equal(t, "denied", rec.Output)
}

func TestRecordSwallowsPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	m := newTestManager(pub)

	assert.NotPanics(t, func() {
		m.Record(context.Background(), action.Record{SessionID: "s1", ProposalID: "p", To: action.StatusConfirmed, At: time.Now()})
	})
	assert.Len(t, pub.msgs, 1)
}

func TestPublishEvent(t *testing.T) {
	pub := &fakePublisher{}
	m := newTestManager(pub)

	ev := &model.ExchangeEvent{SessionID: "s1", Type: model.EventTypeError, Reason: "Missing OPENAI_API_KEY"}
	seq, err := m.PublishEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())
	assert.Equal(t, "assistant.s1.event.error", pub.msgs[0].subject)

	pub.err = errors.New("timeout")
	_, err = m.PublishEvent(context.Background(), &model.ExchangeEvent{SessionID: "s1", Type: model.EventTypeAborted})
	assert.Error(t, err)
}
