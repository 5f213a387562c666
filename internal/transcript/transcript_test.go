package transcript

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/ace-assistant/internal/action"
)

func mustAppend(t *testing.T, tr *Transcript, role Role, parts ...Part) Entry {
	t.Helper()
	e, err := tr.Append(Entry{Role: role, Parts: parts})
	require.NoError(t, err)
	return e
}

func TestAppendPreservesOrder(t *testing.T) {
	tr := New()
	first := mustAppend(t, tr, RoleUser, &Text{Text: "one"})
	mustAppend(t, tr, RoleAssistant, &Text{Text: "two"})
	mustAppend(t, tr, RoleUser, &Text{Text: "three"})

	entries := tr.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, []string{"one", "two", "three"}, []string{entries[0].Text(), entries[1].Text(), entries[2].Text()})
	assert.NotEmpty(t, entries[1].ID)
	assert.False(t, entries[2].CreatedAt.IsZero())
}

func TestAppendDoesNotAliasCallerParts(t *testing.T) {
	tr := New()
	text := &Text{Text: "original"}
	mustAppend(t, tr, RoleUser, text)
	text.Text = "mutated"

	view := tr.Entries()
	view[0].Parts[0].(*Text).Text = "mutated again"

	assert.Equal(t, "original", tr.Entries()[0].Text())
}

func TestAppendRejectsInvalidInput(t *testing.T) {
	tr := New()

	_, err := tr.Append(Entry{Role: "tool", Parts: []Part{&Text{Text: "x"}}})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = tr.Append(Entry{Role: RoleUser, Parts: []Part{&File{Data: "/etc/passwd", MediaType: "text/plain"}}})
	assert.ErrorIs(t, err, ErrInvalidPart)

	_, err = tr.Append(Entry{Role: RoleAssistant, Parts: []Part{&Action{Kind: action.KindOpenURL}}})
	assert.ErrorIs(t, err, ErrInvalidPart)

	assert.Zero(t, tr.Len())
}

func TestExportForPersistence(t *testing.T) {
	tr := New()
	mustAppend(t, tr, RoleUser,
		&Text{Text: "What is in this picture?"},
		&File{Data: "data:image/png;base64,iVBORw0KGgo=", MediaType: "image/png", Filename: "cat.png"},
	)
	mustAppend(t, tr, RoleAssistant,
		&Text{Text: "A cat."},
		&Action{ProposalID: "call_1", Kind: action.KindOpenURL, Input: json.RawMessage(`{"url":"https://cats.example"}`), Status: action.StatusProposed},
		&Text{Text: "Want to read more?"},
	)
	mustAppend(t, tr, RoleUser,
		&Action{ProposalID: "call_1", Kind: action.KindOpenURL, Status: action.StatusDenied, Output: "denied"},
	)

	rows := tr.ExportForPersistence()
	assert.Equal(t, []Row{
		{Role: RoleUser, Content: "What is in this picture?"},
		{Role: RoleAssistant, Content: "A cat.\nWant to read more?"},
		{Role: RoleUser, Content: ""},
	}, rows)
}

func TestExportIsIdempotent(t *testing.T) {
	tr := New()
	mustAppend(t, tr, RoleSystem, &Text{Text: "be brief"})
	mustAppend(t, tr, RoleUser, &Text{Text: "hi"}, &Text{Text: "there"})
	mustAppend(t, tr, RoleAssistant, &Text{Text: "hello"})

	first := tr.ExportForPersistence()
	second := tr.ExportForPersistence()
	assert.Equal(t, first, second)
}

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("é", MaxTitleLength+20)

	tests := []struct {
		name string
		rows []Row
		want string
	}{
		{name: "empty", rows: nil, want: DefaultTitle},
		{
			name: "first user text",
			rows: []Row{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "Plan my week"}, {Role: RoleUser, Content: "later"}},
			want: "Plan my week",
		},
		{
			name: "truncated by runes",
			rows: []Row{{Role: RoleUser, Content: long}},
			want: strings.Repeat("é", MaxTitleLength),
		},
		{
			name: "falls back to first entry",
			rows: []Row{{Role: RoleAssistant, Content: "Welcome back"}},
			want: "Welcome back",
		},
		{
			name: "no text at all",
			rows: []Row{{Role: RoleUser, Content: ""}},
			want: DefaultTitle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.rows))
		})
	}
}

func TestLastAssistantText(t *testing.T) {
	tr := New()
	assert.Empty(t, tr.LastAssistantText())

	mustAppend(t, tr, RoleAssistant, &Text{Text: "first"})
	mustAppend(t, tr, RoleUser, &Text{Text: "q"})
	mustAppend(t, tr, RoleAssistant, &Text{Text: "second"}, &Text{Text: "line"})
	mustAppend(t, tr, RoleUser, &Text{Text: "q2"})

	assert.Equal(t, "second\nline", tr.LastAssistantText())
}

func TestFrameUserText(t *testing.T) {
	assert.Equal(t, "hello", FrameUserText("", "hello", false))
	assert.Equal(t, "System persona: terse\nUser: hello", FrameUserText("terse", "hello", false))
	assert.Equal(t, "System persona: terse\nUser (voice): hello", FrameUserText("terse", "hello", true))
}

func TestConcurrentAppendAndRead(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = tr.Append(Entry{Role: RoleUser, Parts: []Part{&Text{Text: "x"}}})
		}()
		go func() {
			defer wg.Done()
			_ = tr.ExportForPersistence()
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, tr.Len())
}

func TestPartJSON(t *testing.T) {
	b, err := json.Marshal([]Part{
		&Text{Text: "hi"},
		&Action{ProposalID: "p1", Kind: action.KindAdjustVolume, Status: action.StatusConfirmed, Output: `{"level":3}`},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"text","text":"hi"},
		{"type":"action","proposal_id":"p1","kind":"adjustVolume","status":"confirmed","output":"{\"level\":3}"}
	]`, string(b))
}
