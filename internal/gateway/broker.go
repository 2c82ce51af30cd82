package gateway

import (
	"context"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/redis"
)

// Message is a pub/sub delivery.
type Message = redis.Message

// HashRecord is the replacement of one status hash.
type HashRecord = redis.HashRecord

// Subscription delivers command messages until closed.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Broker is what the gateway needs from Redis.
type Broker interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
	ReplaceHashes(ctx context.Context, records []HashRecord) error
}

// redisBroker adapts *redis.Client, whose Subscribe returns a concrete type.
type redisBroker struct {
	*redis.Client
}

// NewRedisBroker returns a Broker backed by c.
func NewRedisBroker(c *redis.Client) Broker {
	return redisBroker{Client: c}
}

func (b redisBroker) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	sub, err := b.Client.Subscribe(ctx, channels...)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
