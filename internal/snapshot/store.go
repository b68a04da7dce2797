// Package snapshot persists a detector's serialized state between
// runs, the way data/cache persists CryptoRun's market data: a small
// Store interface, an in-memory implementation, and an optional Redis
// adapter selected by an environment variable. The detector's own
// legs.State / swingstate watcher state are opaque []byte blobs here;
// callers marshal them (JSON, per spec.md §6) before calling Set.
package snapshot

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists opaque state blobs keyed by instrument/run identity.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type memoryStore struct {
	mu sync.Mutex
	m  map[string]memEntry
}

type memEntry struct {
	b   []byte
	exp time.Time
}

// NewMemory returns a process-local Store with no persistence across
// restarts.
func NewMemory() Store {
	return &memoryStore{m: make(map[string]memEntry)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false, nil
	}
	return e.b, true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	s.m[key] = e
	return nil
}

type redisStore struct{ r *redis.Client }

// NewRedis wraps an existing redis client. Callers typically obtain it
// through NewAuto rather than constructing this directly.
func NewRedis(client *redis.Client) Store {
	return &redisStore{r: client}
}

// NewAuto returns a Redis-backed Store when LEGSCAN_REDIS_ADDR is set,
// falling back to an in-memory Store otherwise, matching data/cache's
// NewAuto REDIS_ADDR gate.
func NewAuto() Store {
	if addr := os.Getenv("LEGSCAN_REDIS_ADDR"); addr != "" {
		return NewRedis(redis.NewClient(&redis.Options{Addr: addr}))
	}
	return NewMemory()
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.r.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *redisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.r.Set(ctx, key, val, ttl).Err()
}
