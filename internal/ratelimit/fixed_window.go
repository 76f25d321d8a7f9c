package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// DefaultPrefix namespaces limiter keys in Redis.
const DefaultPrefix = "smartimmo:ratelimit"

// FixedWindowLimiter limits requests per key in a fixed time window. With a
// Redis client the count is shared across instances; without one it is kept
// in process.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration

	redisClient *redis.Client
	redisPrefix string

	mu     sync.Mutex
	counts map[string]windowCount
}

type windowCount struct {
	slot  int64
	count int
}

// NewRedisFixedWindowLimiter creates a Redis-backed distributed limiter.
func NewRedisFixedWindowLimiter(addr, password, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	return NewRedisFixedWindowLimiterWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	}), prefix, limit, window)
}

// NewRedisFixedWindowLimiterWithClient builds a distributed limiter on an
// existing client.
func NewRedisFixedWindowLimiterWithClient(client *redis.Client, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if client == nil {
		return nil, errors.New("rate limiter redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &FixedWindowLimiter{
		limit:       limit,
		window:      window,
		redisClient: client,
		redisPrefix: prefix,
	}, nil
}

// NewMemoryFixedWindowLimiter creates a single-instance limiter.
func NewMemoryFixedWindowLimiter(limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		counts: make(map[string]windowCount),
	}, nil
}

// Allow returns true when the key is within quota.
// On Redis failures, it fails closed and returns false.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	if l.redisClient == nil {
		return l.allowMemory(key)
	}
	return l.allowRedis(ctx, key)
}

func (l *FixedWindowLimiter) slot() int64 {
	return time.Now().UTC().UnixMilli() / l.window.Milliseconds()
}

func (l *FixedWindowLimiter) allowMemory(key string) bool {
	slot := l.slot()
	l.mu.Lock()
	defer l.mu.Unlock()
	wc := l.counts[key]
	if wc.slot != slot {
		wc = windowCount{slot: slot}
	}
	wc.count++
	l.counts[key] = wc
	if len(l.counts) > 10000 {
		for k, v := range l.counts {
			if v.slot != slot {
				delete(l.counts, k)
			}
		}
	}
	return wc.count <= l.limit
}

func (l *FixedWindowLimiter) allowRedis(ctx context.Context, key string) bool {
	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		return true
	}
	redisKey := fmt.Sprintf("%s:%s:%d", l.redisPrefix, key, l.slot())
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := fixedWindowScript.Run(ctx, l.redisClient, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return res <= int64(l.limit)
}
