package settings

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps settings for the lifetime of the process.
type MemoryStore struct {
	c *cache.Cache
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryStore) Get(_ context.Context, clientID string) (Settings, error) {
	if err := checkClientID(clientID); err != nil {
		return Settings{}, err
	}
	if v, ok := m.c.Get(clientID); ok {
		return v.(Settings), nil
	}
	return Settings{}, nil
}

func (m *MemoryStore) Put(_ context.Context, clientID string, s Settings) error {
	if err := checkClientID(clientID); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	m.c.Set(clientID, s, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
