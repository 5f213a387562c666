// Package store persists saved conversations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Driver selects the Gateway implementation.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

var (
	// ErrMissingDSN is returned when the store is not configured.
	ErrMissingDSN = errors.New("store connection string is not configured")
	// ErrNoMessages is returned when saving a conversation without messages.
	ErrNoMessages = errors.New("messages array required")
)

// PersistenceError wraps any failure of the underlying database.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// NewMessage is one message row to store. Position is implied by order.
type NewMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
	Metadata  map[string]any
}

// NewConversation is a conversation header plus its messages.
type NewConversation struct {
	Title    string
	Metadata map[string]any
	Messages []NewMessage
}

// Gateway writes conversations. Header and messages are written atomically.
type Gateway interface {
	SaveConversation(ctx context.Context, conv NewConversation) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config holds the store settings.
type Config struct {
	Driver      Driver
	DatabaseURL string
	SQLitePath  string
}

// Open builds the configured gateway.
func Open(ctx context.Context, cfg Config) (Gateway, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("%w: set SQLITE_PATH", ErrMissingDSN)
		}
		db, err := NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverPostgres, "":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("%w: set DATABASE_URL", ErrMissingDSN)
		}
		db, err := NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func messageTime(m NewMessage, now time.Time) time.Time {
	if m.CreatedAt.IsZero() {
		return now
	}
	return m.CreatedAt
}
