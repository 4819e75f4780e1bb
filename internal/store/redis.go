package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the pub/sub transport for session rooms. The relay
// publishes to it; the websocket gateway subscribes per room and owns
// membership. It also backs the rate limiter.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for middleware that needs pipelines.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// RoomKey returns the pub/sub channel for a session's chat room.
func RoomKey(sessionID string) string {
	return fmt.Sprintf("session:%s:chat", sessionID)
}

// Publish broadcasts a payload to every subscriber of the given room.
// Delivery to individual subscribers is best-effort by design.
func (s *RedisStore) Publish(ctx context.Context, room string, payload []byte) error {
	return s.client.Publish(ctx, room, payload).Err()
}

// Subscribe opens a subscription to the given room. The caller owns the
// returned PubSub and must close it.
func (s *RedisStore) Subscribe(ctx context.Context, room string) *redis.PubSub {
	return s.client.Subscribe(ctx, room)
}
