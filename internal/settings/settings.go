// Package settings stores per-client assistant preferences.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPersonaLength bounds the persona text in runes.
const MaxPersonaLength = 2000

var (
	// ErrInvalidSettings is returned by Validate.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrMissingClientID is returned when no client id is supplied.
	ErrMissingClientID = errors.New("client id required")
)

// Settings are the preferences of one client. The zero value is the default:
// no persona, automation off, speech off.
type Settings struct {
	Persona           string `json:"persona"`
	AutomationAllowed bool   `json:"automationAllowed"`
	TTSEnabled        bool   `json:"ttsEnabled"`
}

// Validate normalizes and checks s.
func (s *Settings) Validate() error {
	s.Persona = strings.TrimSpace(s.Persona)
	if utf8.RuneCountInString(s.Persona) > MaxPersonaLength {
		return fmt.Errorf("%w: persona longer than %d characters", ErrInvalidSettings, MaxPersonaLength)
	}
	return nil
}

// Store persists settings keyed by client id. Get returns the defaults for
// unknown clients.
type Store interface {
	Get(ctx context.Context, clientID string) (Settings, error)
	Put(ctx context.Context, clientID string, s Settings) error
	Close() error
}

// Backend selects the Store implementation.
type Backend string

const (
	BackendBolt   Backend = "bolt"
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

// Config holds the settings store options.
type Config struct {
	Backend  Backend
	BoltPath string
	RedisURL string
}

// Open builds the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendRedis:
		s, err := NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendBolt, "":
		s, err := NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
}

func checkClientID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingClientID
	}
	return nil
}
