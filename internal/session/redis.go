package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seenimoa/ibexai/internal/config"
)

const redisKeyPrefix = "ibexai:session:"

// RedisStore keeps sessions as JSON documents with an idle TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get retrieves a session by id.
func (r *RedisStore) Get(ctx context.Context, id string) (*State, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get %s: %w", id, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return &s, nil
}

// Save stores the session and restarts its TTL.
func (r *RedisStore) Save(ctx context.Context, id string, s *State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", id, err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+id, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: save %s: %w", id, err)
	}
	return nil
}

// Delete removes a session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisStore) Close() error { return r.client.Close() }

// NewStoreFromConfig builds the configured store. The redis backend is
// pinged once so a bad address fails at startup.
func NewStoreFromConfig(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.IdleTTL()), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := NewRedisStore(client, cfg.IdleTTL())
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("session: redis %s: %w", cfg.RedisAddr, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("session: unknown backend %q", cfg.Backend)
	}
}
