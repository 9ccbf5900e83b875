// Package notify pushes stored notifications to connected clients over a
// Redis pub/sub channel keyed by user id.
package notify

import (
	"coachshare/backend/internal/config"
	"coachshare/backend/internal/domain"
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Pusher delivers a notification to a user's real-time channel. Delivery is
// best-effort: callers log the error and move on.
type Pusher interface {
	Push(ctx context.Context, n *domain.Notification) error
}

// Channel returns the pub/sub channel name for a user.
func Channel(userID string) string {
	return "notifications:" + userID
}

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

type redisPusher struct {
	rdb redis.UniversalClient
}

// NewRedisPusher publishes notifications as JSON on Channel(userID).
func NewRedisPusher(rdb redis.UniversalClient) Pusher {
	return &redisPusher{rdb: rdb}
}

func (p *redisPusher) Push(ctx context.Context, n *domain.Notification) error {
	payload, err := sonic.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return p.rdb.Publish(ctx, Channel(n.User.Hex()), payload).Err()
}

// Shutdown closes the underlying client.
func (p *redisPusher) Shutdown() error {
	return p.rdb.Close()
}

type nopPusher struct{}

// NewNopPusher returns a Pusher that drops everything. Used when Redis is not configured.
func NewNopPusher() Pusher { return nopPusher{} }

func (nopPusher) Push(context.Context, *domain.Notification) error { return nil }
