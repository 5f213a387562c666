package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "ace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type storedMessage struct {
	Role     string
	Content  string
	Position int
	Metadata *string
}

func loadMessages(t *testing.T, s *SQLite, id string) []storedMessage {
	t.Helper()
	rows, err := s.db.Query(`SELECT role, content, position, metadata FROM messages WHERE conversation_id = ? ORDER BY position`, id)
	require.NoError(t, err)
	defer rows.Close()

	var out []storedMessage
	for rows.Next() {
		var m storedMessage
		require.NoError(t, rows.Scan(&m.Role, &m.Content, &m.Position, &m.Metadata))
		out = append(out, m)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestSQLiteSaveConversation(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	id, err := s.SaveConversation(ctx, NewConversation{
		Title:    "Sample Chat",
		Metadata: map[string]any{"source": "test"},
		Messages: []NewMessage{
			{Role: "user", Content: "Hello!"},
			{Role: "assistant", Content: "Hi there, how can I help?", Metadata: map[string]any{"model": "gpt-4o-mini"}},
			{Role: "user", Content: ""},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var title string
	var meta *string
	require.NoError(t, s.db.QueryRow(`SELECT title, metadata FROM conversations WHERE id = ?`, id).Scan(&title, &meta))
	assert.Equal(t, "Sample Chat", title)
	require.NotNil(t, meta)
	assert.JSONEq(t, `{"source":"test"}`, *meta)

	msgs := loadMessages(t, s, id)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"Hello!", "Hi there, how can I help?", ""}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	for i, m := range msgs {
		assert.Equal(t, i, m.Position)
	}
	assert.Nil(t, msgs[0].Metadata)
	require.NotNil(t, msgs[1].Metadata)
	assert.JSONEq(t, `{"model":"gpt-4o-mini"}`, *msgs[1].Metadata)
}

func TestSQLiteSaveIsAtomic(t *testing.T) {
	s := newTestSQLite(t)

	// A cancelled context fails the save; nothing may be left behind.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SaveConversation(ctx, NewConversation{
		Title:    "x",
		Messages: []NewMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	var perr *PersistenceError
	assert.True(t, errors.As(err, &perr))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n))
	assert.Zero(t, n)
}

func TestSQLiteRejectsEmptyConversation(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.SaveConversation(context.Background(), NewConversation{Title: "empty"})
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestSQLiteKeepsMessageTimestamps(t *testing.T) {
	s := newTestSQLite(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.SaveConversation(context.Background(), NewConversation{
		Title:    "t",
		Messages: []NewMessage{{Role: "user", Content: "hi", CreatedAt: at}},
	})
	require.NoError(t, err)

	var created string
	require.NoError(t, s.db.QueryRow(`SELECT created_at FROM messages WHERE conversation_id = ?`, id).Scan(&created))
	assert.Equal(t, at.Format(time.RFC3339Nano), created)
}

func TestOpenFailsFastWithoutDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: DriverPostgres})
	assert.ErrorIs(t, err, ErrMissingDSN)

	_, err = Open(context.Background(), Config{Driver: DriverSQLite})
	assert.ErrorIs(t, err, ErrMissingDSN)

	_, err = Open(context.Background(), Config{Driver: "mongo", DatabaseURL: "x"})
	assert.Error(t, err)
}

func TestSQLitePing(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestPostgresSaveConversation(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	require.NoError(t, p.Ping(ctx))

	id, err := p.SaveConversation(ctx, NewConversation{
		Title:    "Sample Chat",
		Messages: []NewMessage{{Role: "user", Content: "Hello!"}, {Role: "assistant", Content: "Hi there, how can I help?"}},
	})
	require.NoError(t, err)

	var records []messageRecord
	require.NoError(t, p.db.Where("conversation_id = ?", id).Order("position").Find(&records).Error)
	require.Len(t, records, 2)
	assert.Equal(t, "Hello!", records[0].Content)
	assert.Equal(t, 1, records[1].Position)
}

func TestBuildRecords(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	header, msgs, err := buildRecords(NewConversation{
		Title:    "T",
		Messages: []NewMessage{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, now, header.CreatedAt)
	assert.Nil(t, header.Metadata)
	require.Len(t, msgs, 2)
	for i, m := range msgs {
		assert.Equal(t, header.ID, m.ConversationID)
		assert.Equal(t, i, m.Position)
		assert.Equal(t, now, m.CreatedAt)
	}
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)

	_, _, err = buildRecords(NewConversation{Metadata: map[string]any{"bad": func() {}}}, now)
	var perr *PersistenceError
	assert.True(t, errors.As(err, &perr))
}
