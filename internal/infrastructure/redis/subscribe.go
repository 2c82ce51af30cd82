package redis

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// Message is one pub/sub delivery.
type Message struct {
	Channel string
	Payload string
}

// Subscription delivers messages published on its channels until closed.
type Subscription struct {
	ps       *goredis.PubSub
	messages chan Message
	done     chan struct{}
	once     sync.Once
}

// Subscribe subscribes to channels and waits for the server to confirm.
// All channels are sent in one SUBSCRIBE command, so every channel is active
// once Subscribe returns.
func (c *Client) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	if c.closed.Load() {
		return nil, ErrNotConnected
	}

	ps := c.rdb.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	s := &Subscription{
		ps:       ps,
		messages: make(chan Message, messageBuffer),
		done:     make(chan struct{}),
	}
	go s.forward(ps.Channel(goredis.WithChannelSize(messageBuffer)))
	return s, nil
}

func (s *Subscription) forward(in <-chan *goredis.Message) {
	defer close(s.messages)
	for {
		select {
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.messages <- Message{Channel: m.Channel, Payload: m.Payload}:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

// Messages returns the delivery channel. It is closed after Close.
func (s *Subscription) Messages() <-chan Message {
	return s.messages
}

// Close unsubscribes and stops delivery.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
