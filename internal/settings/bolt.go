package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var settingsBucket = []byte("client_settings")

// BoltStore keeps settings in a local BoltDB file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the BoltDB file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("settings: bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("settings: open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(settingsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("settings: create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get returns the settings for clientID, or the defaults.
func (b *BoltStore) Get(_ context.Context, clientID string) (Settings, error) {
	if err := checkClientID(clientID); err != nil {
		return Settings{}, err
	}
	var out Settings
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(settingsBucket).Get([]byte(clientID))
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, &out)
	})
	if err != nil {
		return Settings{}, fmt.Errorf("settings: read %s: %w", clientID, err)
	}
	return out, nil
}

// Put replaces the settings for clientID.
func (b *BoltStore) Put(_ context.Context, clientID string, s Settings) error {
	if err := checkClientID(clientID); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	enc, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Put([]byte(clientID), enc)
	})
}

// Close closes the database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
