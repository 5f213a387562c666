package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded Gateway used for local runs and tests.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (creating if needed) the database at path and runs migrations.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, persistErr("open", err)
	}
	// One connection keeps :memory: databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, persistErr("ping", err)
	}

	s := &SQLite{db: db, now: time.Now}
	if err := s.runMigrations(ctx); err != nil {
		db.Close()
		return nil, persistErr("migrate", err)
	}
	return s, nil
}

func (s *SQLite) runMigrations(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			position INTEGER NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_position ON messages(conversation_id, position)`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return tx.Commit()
}

// SaveConversation inserts the header and all messages in one transaction.
func (s *SQLite) SaveConversation(ctx context.Context, conv NewConversation) (string, error) {
	if len(conv.Messages) == 0 {
		return "", ErrNoMessages
	}

	header, messages, err := buildRecords(conv, s.now())
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", persistErr("begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, title, metadata, created_at) VALUES (?, ?, ?, ?)`,
		header.ID.String(), header.Title, nullableJSON(header.Metadata), header.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", persistErr("insert conversation", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, position, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", persistErr("prepare messages", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		_, err := stmt.ExecContext(ctx,
			m.ID.String(), m.ConversationID.String(), m.Role, m.Content, m.Position,
			nullableJSON(m.Metadata), m.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return "", persistErr("insert message", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", persistErr("commit", err)
	}
	return header.ID.String(), nil
}

func nullableJSON(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// Ping checks the connection.
func (s *SQLite) Ping(ctx context.Context) error {
	return persistErr("ping", s.db.PingContext(ctx))
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
