package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rideline/telemetry-service/config"
)

// RedisSink publishes events on a Redis pub/sub channel. The websocket
// gateway subscribes to the channel and forwards to connected clients.
type RedisSink struct {
	client  *redis.Client
	channel string
	enabled bool
}

// NewRedisSink creates a Redis sink and verifies connectivity
func NewRedisSink(cfg *config.RedisConfig) (*RedisSink, error) {
	if !cfg.Enabled {
		return &RedisSink{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSink{
		client:  client,
		channel: cfg.Channel,
		enabled: true,
	}, nil
}

// Publish sends the event on the configured channel, suffixed with the event
// name so subscribers can pattern-subscribe to a subset
func (s *RedisSink) Publish(ctx context.Context, name string, payload []byte) error {
	if !s.enabled {
		return nil
	}
	return s.client.Publish(ctx, fmt.Sprintf("%s.%s", s.channel, name), payload).Err()
}

// Close closes the Redis connection
func (s *RedisSink) Close(ctx context.Context) error {
	if !s.enabled {
		return nil
	}
	return s.client.Close()
}
