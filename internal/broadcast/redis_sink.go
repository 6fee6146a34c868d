package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink republishes auction events on a Redis pub/sub channel so other
// processes can observe the auction. Delivery is at-most-once per subscriber.
type RedisSink struct {
	rdb     *redis.Client
	channel string
}

// NewRedisSink creates a sink publishing to the given channel
func NewRedisSink(rdb *redis.Client, channel string) (*RedisSink, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if channel == "" {
		return nil, fmt.Errorf("channel cannot be empty")
	}
	return &RedisSink{rdb: rdb, channel: channel}, nil
}

// Deliver publishes the event as JSON
func (s *RedisSink) Deliver(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Name, err)
	}
	if err := s.rdb.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Name, err)
	}
	return nil
}
