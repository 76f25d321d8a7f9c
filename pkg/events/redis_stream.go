package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStreamPublisher appends listing events to a capped Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// RedisStreamConfig configures a RedisStreamPublisher.
type RedisStreamConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// NewRedisStreamPublisher builds a publisher from cfg.
func NewRedisStreamPublisher(cfg RedisStreamConfig) (*RedisStreamPublisher, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password})
	return NewRedisStreamPublisherWithClient(client, cfg.Stream, cfg.MaxLen), nil
}

// NewRedisStreamPublisherWithClient wraps an existing client.
func NewRedisStreamPublisherWithClient(client *redis.Client, stream string, maxLen int64) *RedisStreamPublisher {
	stream = strings.TrimSpace(stream)
	if stream == "" {
		stream = "smartimmo:property_events"
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish appends ev to the stream.
func (p *RedisStreamPublisher) Publish(ctx context.Context, ev PropertyEvent) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"action":      string(ev.Action),
			"property_id": ev.PropertyID,
			"occurred_at": ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}

// Close releases the Redis client.
func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}
