package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/config"
)

// Logger is the subset of the application logger the client uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client wraps a go-redis client.
type Client struct {
	rdb    *goredis.Client
	addr   string
	closed atomic.Bool
}

// Connect creates a client and waits until the server answers PING,
// retrying with exponential backoff.
//
// Parameters:
//   - ctx: Cancels the retry loop
//   - cfg: Redis configuration
//   - logger: Receives one warning per failed attempt (may be nil)
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed wrapping the last attempt's error
func Connect(ctx context.Context, cfg config.RedisConfig, logger Logger) (*Client, error) {
	c := &Client{
		rdb:  goredis.NewClient(buildOptions(cfg)),
		addr: addr(cfg),
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, ioTimeout)
		defer cancel()
		return c.rdb.Ping(pingCtx).Err()
	}
	notify := func(err error, next time.Duration) {
		if logger != nil {
			logger.Warn("redis not reachable, retrying", "addr", c.addr, "error", err, "retry_in", next)
		}
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(NewBackOff(cfg.Reconnect), ctx), notify); err != nil {
		c.rdb.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.addr, err)
	}

	if logger != nil {
		logger.Info("connected to redis", "addr", c.addr)
	}
	return c, nil
}

// Addr returns the server address.
func (c *Client) Addr() string { return c.addr }

// Publish sends message on channel.
func (c *Client) Publish(ctx context.Context, channel, message string) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	if err := c.rdb.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, channel, err)
	}
	return nil
}

// HealthCheck verifies the server answers PING.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases all connections. It is safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.rdb.Close()
}

func addr(cfg config.RedisConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}
