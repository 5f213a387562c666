package action

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingJournal struct {
	mu      sync.Mutex
	records []Record
}

func (j *recordingJournal) Record(_ context.Context, rec Record) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
}

func (j *recordingJournal) statuses() []Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Status, len(j.records))
	for i, r := range j.records {
		out[i] = r.To
	}
	return out
}

func TestTransition(t *testing.T) {
	legal := map[Status]map[Event]Status{
		StatusProposed:  {EventConfirm: StatusConfirmed, EventDeny: StatusDenied},
		StatusConfirmed: {EventExecuteSucceeded: StatusExecuted, EventExecuteFailed: StatusExecutionFailed},
	}
	states := []Status{StatusProposed, StatusConfirmed, StatusDenied, StatusExecuted, StatusExecutionFailed}
	events := []Event{EventConfirm, EventDeny, EventExecuteSucceeded, EventExecuteFailed}

	for _, from := range states {
		for _, ev := range events {
			next, err := Transition(from, ev)
			if want, ok := legal[from][ev]; ok {
				require.NoError(t, err, "%s --%s-->", from, ev)
				assert.Equal(t, want, next)
				continue
			}
			assert.ErrorIs(t, err, ErrIllegalTransition, "%s --%s-->", from, ev)
			assert.Equal(t, from, next)
		}
	}

	for _, s := range states {
		_, toProposed := Transition(s, EventConfirm)
		if s.Terminal() {
			assert.Error(t, toProposed)
		}
	}
}

func TestRegistryProposeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	journal := &recordingJournal{}
	reg := NewRegistry("sess-1", journal)

	first, created := reg.Propose(ctx, "call_1", "scheduleEvent", []byte(`{"title":"Sync","when":"tomorrow 10am"}`))
	require.True(t, created)
	assert.Equal(t, StatusProposed, first.Status)

	_, err := reg.Deny(ctx, "call_1")
	require.NoError(t, err)

	again, created := reg.Propose(ctx, "call_1", "scheduleEvent", []byte(`{"title":"Sync","when":"tomorrow 10am"}`))
	assert.False(t, created)
	assert.Equal(t, StatusDenied, again.Status, "re-delivery must not reset the decision")
	assert.Len(t, reg.Snapshots(), 1)
}

func TestRegistryConcurrentRedelivery(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry("sess-1", nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, created := reg.Propose(ctx, "call_same", "openUrl", []byte(`{"url":"https://example.com"}`)); created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	assert.Len(t, reg.Snapshots(), 1)
}

func TestRegistryDenyScenario(t *testing.T) {
	ctx := context.Background()
	journal := &recordingJournal{}
	reg := NewRegistry("sess-1", journal)

	reg.Propose(ctx, "call_1", "scheduleEvent", []byte(`{"title":"Meeting","when":"tomorrow 10am"}`))
	s, err := reg.Deny(ctx, "call_1")
	require.NoError(t, err)

	assert.Equal(t, StatusDenied, s.Status)
	assert.Equal(t, OutputDenied, s.Output)
	assert.Equal(t, []Status{StatusProposed, StatusDenied}, s.History)
	assert.NotNil(t, s.DecidedAt)
	assert.Equal(t, []Status{StatusProposed, StatusDenied}, journal.statuses())

	_, err = reg.Confirm(ctx, "call_1", "")
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, _, err = reg.Execute(ctx, "call_1", OpenURLExecutor{}, true)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	out, ok := reg.ProviderOutput("call_1")
	require.True(t, ok)
	assert.Equal(t, "denied", out)
}

func TestRegistryConfirmEchoesInput(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry("sess-1", nil)

	reg.Propose(ctx, "call_1", "adjustVolume", []byte("{\n  \"level\": 30\n}"))

	ready, ok := reg.ProviderOutput("call_1")
	require.True(t, ok)
	assert.JSONEq(t, `{"state":"ready","level":30}`, ready)

	s, err := reg.Confirm(ctx, "call_1", "")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, s.Status)
	assert.Equal(t, `{"level":30}`, s.Output)

	_, _, err = reg.Execute(ctx, "call_1", OpenURLExecutor{}, true)
	assert.ErrorIs(t, err, ErrNoSideEffect)
}

func TestRegistryInvalidProposalCannotBeConfirmed(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry("sess-1", nil)

	s, _ := reg.Propose(ctx, "call_bad", "composeEmail", []byte(`{"to":"not-an-email","subject":"s","body":"b"}`))
	assert.True(t, s.Invalid)
	assert.NotEmpty(t, s.Error)

	_, err := reg.Confirm(ctx, "call_bad", "")
	assert.ErrorIs(t, err, ErrInvalidProposal)
	var schemaErr *SchemaError
	assert.True(t, errors.As(err, &schemaErr))

	got, _ := reg.Get("call_bad")
	assert.Equal(t, StatusProposed, got.Status)

	// Other proposals are unaffected and the invalid one can still be denied.
	reg.Propose(ctx, "call_ok", "askForConfirmation", []byte(`{"message":"Proceed?"}`))
	_, err = reg.Confirm(ctx, "call_ok", "yes")
	require.NoError(t, err)
	_, err = reg.Deny(ctx, "call_bad")
	require.NoError(t, err)
	assert.Empty(t, reg.Pending())
}

func TestRegistryUnknownKind(t *testing.T) {
	reg := NewRegistry("sess-1", nil)
	s, created := reg.Propose(context.Background(), "call_x", "launchRocket", []byte(`{}`))
	assert.True(t, created)
	assert.True(t, s.Invalid)
	assert.Contains(t, s.Error, "unknown action kind")

	out, _ := reg.ProviderOutput("call_x")
	assert.JSONEq(t, `{"state":"error","error":"unknown action kind: \"launchRocket\""}`, out)
}

func TestRegistryExecuteOpenURL(t *testing.T) {
	ctx := context.Background()

	t.Run("automation disabled keeps confirmed", func(t *testing.T) {
		reg := NewRegistry("sess", nil)
		reg.Propose(ctx, "c1", "openUrl", []byte(`{"url":"https://example.com"}`))
		_, err := reg.Confirm(ctx, "c1", "")
		require.NoError(t, err)

		s, effect, err := reg.Execute(ctx, "c1", OpenURLExecutor{}, false)
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, s.Status)
		assert.Empty(t, effect.OpenURL)
	})

	t.Run("executes", func(t *testing.T) {
		reg := NewRegistry("sess", nil)
		reg.Propose(ctx, "c1", "openUrl", []byte(`{"url":"https://example.com/docs"}`))
		_, err := reg.Confirm(ctx, "c1", "")
		require.NoError(t, err)

		s, effect, err := reg.Execute(ctx, "c1", OpenURLExecutor{}, true)
		require.NoError(t, err)
		assert.Equal(t, StatusExecuted, s.Status)
		assert.Equal(t, "https://example.com/docs", effect.OpenURL)
		assert.Equal(t, []Status{StatusProposed, StatusConfirmed, StatusExecuted}, s.History)

		_, _, err = reg.Execute(ctx, "c1", OpenURLExecutor{}, true)
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})

	t.Run("malformed payload fails execution", func(t *testing.T) {
		reg := NewRegistry("sess", nil)
		reg.Propose(ctx, "c1", "openUrl", []byte(`{"url":"https://example.com"}`))
		_, err := reg.Confirm(ctx, "c1", "confirmed")
		require.NoError(t, err)

		s, effect, err := reg.Execute(ctx, "c1", OpenURLExecutor{}, true)
		require.NoError(t, err)
		assert.Equal(t, StatusExecutionFailed, s.Status)
		assert.Contains(t, s.Error, "malformed openUrl payload")
		assert.Empty(t, effect.OpenURL)
	})

	t.Run("javascript scheme refused", func(t *testing.T) {
		reg := NewRegistry("sess", nil)
		reg.Propose(ctx, "c1", "openUrl", []byte(`{"url":"javascript:alert(1)"}`))
		_, err := reg.Confirm(ctx, "c1", "")
		require.NoError(t, err)

		s, _, err := reg.Execute(ctx, "c1", OpenURLExecutor{}, true)
		require.NoError(t, err)
		assert.Equal(t, StatusExecutionFailed, s.Status)
	})
}

func TestRegistryNotFound(t *testing.T) {
	reg := NewRegistry("sess", nil)
	_, err := reg.Confirm(context.Background(), "missing", "")
	assert.ErrorIs(t, err, ErrProposalNotFound)
}
