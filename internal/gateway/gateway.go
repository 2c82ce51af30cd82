package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

// Options holds everything needed to build a Gateway.
type Options struct {
	// Channels names this gateway's keys and channels.
	Channels Channels

	// Registry holds the managed status buffers. Required.
	Registry *status.Registry

	// Broker is the Redis connection. Required.
	Broker Broker

	// Runtime holds delay, notify and expire. Required.
	Runtime *Runtime

	// LockTimeout bounds one attempt to lock a buffer (DefaultLockTimeout if zero).
	LockTimeout time.Duration

	// Sinks receive every cycle's snapshots (optional).
	Sinks []SnapshotSink

	// Metrics receives activity counts (optional).
	Metrics Metrics

	// Logger is an optional structured logger.
	Logger Logger

	// Now overrides the clock used to stamp snapshots (tests).
	Now func() time.Time
}

// Gateway runs a Publisher and a Router over one registry.
type Gateway struct {
	publisher *Publisher
	router    *Router
	logger    Logger
}

// New validates opts and builds a Gateway. Call Run to start it.
func New(opts Options) (*Gateway, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	}
	if opts.Broker == nil {
		return nil, fmt.Errorf("%w: broker", ErrMissingDependency)
	}
	if opts.Runtime == nil {
		return nil, fmt.Errorf("%w: runtime", ErrMissingDependency)
	}
	if opts.Channels.Domain == "" || opts.Channels.Gateway == "" {
		return nil, fmt.Errorf("%w: domain and gateway name", ErrMissingDependency)
	}

	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	locks := locker{timeout: timeout, budget: lockRetryBudget, metrics: metrics}

	failures := backoff.NewExponentialBackOff()
	failures.MaxInterval = maxFailureBackoff
	failures.MaxElapsedTime = 0

	return &Gateway{
		publisher: &Publisher{
			broker:   opts.Broker,
			registry: opts.Registry,
			runtime:  opts.Runtime,
			channels: opts.Channels,
			locks:    locks,
			sinks:    opts.Sinks,
			logger:   logger,
			metrics:  metrics,
			failures: failures,
			now:      now,
		},
		router: &Router{
			broker:   opts.Broker,
			registry: opts.Registry,
			runtime:  opts.Runtime,
			channels: opts.Channels,
			routes:   buildRoutes(opts.Channels, opts.Registry),
			locks:    locks,
			logger:   logger,
			metrics:  metrics,
			newBackOff: func() backoff.BackOff {
				bo := backoff.NewExponentialBackOff()
				bo.MaxInterval = maxFailureBackoff
				bo.MaxElapsedTime = 0
				return bo
			},
		},
		logger: logger,
	}, nil
}

// Publisher returns the gateway's publisher.
func (g *Gateway) Publisher() *Publisher { return g.publisher }

// Router returns the gateway's command router.
func (g *Gateway) Router() *Router { return g.router }

// Run starts the publisher and router and blocks until ctx is done or a
// quit command arrives. It returns ErrQuit in the latter case, after both
// loops have stopped.
func (g *Gateway) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return g.router.Run(gctx)
	})
	group.Go(func() error {
		return g.publisher.Run(gctx)
	})

	err := group.Wait()
	g.logger.Info("gateway stopped", "quit", errors.Is(err, ErrQuit))
	return err
}
