package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix prefixes the per-host state keys in Redis.
const RedisKeyPrefix = "apictl:ratelimit:"

// Store persists rate limit state per host. Load returns (nil, nil) when
// nothing is known about host.
type Store interface {
	Load(ctx context.Context, host string) (*State, error)
	Save(ctx context.Context, state *State) error
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, host string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[host]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Host] = *state
	return nil
}

// RedisStore shares state between processes through Redis, so parallel
// invocations against the same account see one quota.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context, host string) (*State, error) {
	data, err := r.redis.Get(ctx, RedisKeyPrefix+host).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get rate limit state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse rate limit state: %w", err)
	}
	return &s, nil
}

// Save implements Store. Keys expire a minute after the window resets.
func (r *RedisStore) Save(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal rate limit state: %w", err)
	}

	ttl := state.TimeUntilReset() + time.Minute
	if err := r.redis.Set(ctx, RedisKeyPrefix+state.Host, data, ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
