package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeCases(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{"memory": NewMemoryStore()}

	bolt, err := NewBoltStore(filepath.Join(t.TempDir(), "settings", "ace.bolt"))
	require.NoError(t, err)
	stores["bolt"] = bolt

	if url := os.Getenv("TEST_REDIS_URL"); url != "" {
		r, err := NewRedisStore(context.Background(), url)
		require.NoError(t, err)
		stores["redis"] = r
	}

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreDefaultsAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Get(ctx, "client-unknown")
			require.NoError(t, err)
			assert.Equal(t, Settings{}, got)

			want := Settings{Persona: "terse", AutomationAllowed: true}
			require.NoError(t, s.Put(ctx, "client-"+name, want))

			got, err = s.Get(ctx, "client-"+name)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			require.NoError(t, s.Put(ctx, "client-"+name, Settings{TTSEnabled: true}))
			got, err = s.Get(ctx, "client-"+name)
			require.NoError(t, err)
			assert.Equal(t, Settings{TTSEnabled: true}, got)
		})
	}
}

func TestStoreValidation(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "  ")
			assert.ErrorIs(t, err, ErrMissingClientID)

			err = s.Put(ctx, "c", Settings{Persona: strings.Repeat("x", MaxPersonaLength+1)})
			assert.ErrorIs(t, err, ErrInvalidSettings)

			require.NoError(t, s.Put(ctx, "c", Settings{Persona: "  friendly  "}))
			got, err := s.Get(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, "friendly", got.Persona)
		})
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ace.bolt")
	ctx := context.Background()

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "c1", Settings{Persona: "pirate"}))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "pirate", got.Persona)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(context.Background(), Config{Backend: BackendRedis})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Backend: "etcd"})
	assert.Error(t, err)
}
