package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"lendit/pkg/domain"
)

// Redis publishes committed events on one pub/sub channel. Fire-and-forget
// broadcast: subscribers that are down miss events, which is acceptable for
// the best-effort cross-process contract.
type Redis struct {
	client  *redis.Client
	channel string
}

func NewRedis(url, channel string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client, channel: channel}, nil
}

func (r *Redis) Publish(ctx context.Context, e domain.Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", e.EventID(), err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
