package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ace:settings:"

// RedisStore keeps settings in Redis, shared between API instances.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to url (a redis:// URL or a plain host:port).
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	if url == "" {
		return nil, fmt.Errorf("settings: REDIS_URL is required for the redis backend")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("settings: connect redis: %w", err)
	}
	return NewRedisStoreFromClient(rdb), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Get returns the settings for clientID, or the defaults.
func (r *RedisStore) Get(ctx context.Context, clientID string) (Settings, error) {
	if err := checkClientID(clientID); err != nil {
		return Settings{}, err
	}
	v, err := r.rdb.Get(ctx, redisKeyPrefix+clientID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings: read %s: %w", clientID, err)
	}
	var out Settings
	if err := json.Unmarshal(v, &out); err != nil {
		return Settings{}, fmt.Errorf("settings: decode %s: %w", clientID, err)
	}
	return out, nil
}

// Put replaces the settings for clientID.
func (r *RedisStore) Put(ctx context.Context, clientID string, s Settings) error {
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
	return r.rdb.Set(ctx, redisKeyPrefix+clientID, enc, 0).Err()
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
