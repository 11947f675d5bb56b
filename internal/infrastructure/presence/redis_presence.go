// Package presence keeps last-seen timestamps for users across gateway
// instances.
package presence

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const lastSeenTTL = 30 * 24 * time.Hour

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return r, nil
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "presence"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) onlineKey(userID string) string {
	return fmt.Sprintf("%s:online:%s", s.prefix, userID)
}

func (s *RedisStore) lastSeenKey(userID string) string {
	return fmt.Sprintf("%s:last_seen:%s", s.prefix, userID)
}

func (s *RedisStore) MarkOnline(ctx context.Context, userID string) error {
	return s.client.Set(ctx, s.onlineKey(userID), "1", 0).Err()
}

func (s *RedisStore) MarkOffline(ctx context.Context, userID string, at time.Time) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.onlineKey(userID))
	pipe.Set(ctx, s.lastSeenKey(userID), strconv.FormatInt(at.UnixMilli(), 10), lastSeenTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	v, err := s.client.Get(ctx, s.lastSeenKey(userID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt last_seen for %s: %w", userID, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

// MemoryStore is the single-instance fallback when no Redis is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lastSeen: make(map[string]time.Time)}
}

func (s *MemoryStore) MarkOnline(ctx context.Context, userID string) error { return nil }

func (s *MemoryStore) MarkOffline(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[userID] = at.UTC()
	return nil
}

func (s *MemoryStore) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.lastSeen[userID]
	return at, ok, nil
}
