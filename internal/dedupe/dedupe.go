// Package dedupe suppresses repeated webhook deliveries. Twilio retries a
// webhook when it sees no timely answer, so each MessageSid is claimed
// once within a TTL window.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces claim keys in Redis.
const KeyPrefix = "echolingo:webhook:"

// Deduper claims delivery identifiers. Claim reports true for the first
// claim of id within the window and false for repeats. Release drops a
// claim so a retry of a delivery that failed is processed again.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// Client is the subset of the Redis client used for claims.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis claims ids with SET NX so that every replica shares one window.
type Redis struct {
	rdb Client
	ttl time.Duration
}

// NewRedis returns a Redis deduper.
func NewRedis(rdb Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

// Connect opens a Redis client and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

func (r *Redis) Claim(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	ok, err := r.rdb.SetNX(ctx, KeyPrefix+id, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", id, err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := r.rdb.Del(ctx, KeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("release %s: %w", id, err)
	}
	return nil
}

// Memory claims ids in process memory. Expired entries are swept on
// each claim.
type Memory struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemory returns an in-process deduper.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (m *Memory) Claim(_ context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.seen {
		if !now.Before(exp) {
			delete(m.seen, k)
		}
	}
	if _, ok := m.seen[id]; ok {
		return false, nil
	}
	m.seen[id] = now.Add(m.ttl)
	return true, nil
}

func (m *Memory) Release(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.seen, id)
	m.mu.Unlock()
	return nil
}
