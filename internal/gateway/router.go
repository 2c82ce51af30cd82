package gateway

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

// replyTimeout bounds publishing one query reply.
const replyTimeout = 5 * time.Second

// Router consumes command channels and applies them to the registry.
type Router struct {
	broker   Broker
	registry *status.Registry
	runtime  *Runtime
	channels Channels
	routes   *routeTable
	locks    locker
	logger   Logger
	metrics  Metrics

	newBackOff func() backoff.BackOff
}

// Channels returns the subscribed channel names in subscription order.
func (r *Router) Channels() []string {
	return append([]string(nil), r.routes.channels...)
}

// Run subscribes to every command channel and handles messages until ctx is
// done (nil) or a quit command arrives (ErrQuit). A lost subscription is
// re-established with backoff.
func (r *Router) Run(ctx context.Context) error {
	for {
		sub, err := r.subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		r.logger.Info("subscribed to command channels", "channels", len(r.routes.channels))

		err = r.consume(ctx, sub)
		if cerr := sub.Close(); cerr != nil {
			r.logger.Debug("closing subscription", "error", cerr)
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warn("command subscription ended, resubscribing")
	}
}

func (r *Router) subscribe(ctx context.Context) (Subscription, error) {
	var sub Subscription
	op := func() error {
		s, err := r.broker.Subscribe(ctx, r.routes.channels...)
		if err != nil {
			return err
		}
		sub = s
		return nil
	}
	notify := func(err error, next time.Duration) {
		r.logger.Warn("subscribe failed, retrying", "error", err, "retry_in", next)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(r.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *Router) consume(ctx context.Context, sub Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			if r.Handle(ctx, msg) {
				return ErrQuit
			}
		}
	}
}

// Handle processes one message and reports whether it asked the gateway to
// quit. Panics are recovered and logged.
func (r *Router) Handle(ctx context.Context, msg Message) (quit bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic handling command",
				"channel", msg.Channel,
				"panic", p,
				"stack", string(debug.Stack()))
			quit = false
		}
	}()

	rt, ok := r.routes.lookup(msg.Channel)
	if !ok {
		r.logger.Debug("message on unknown channel", "channel", msg.Channel)
		return false
	}
	r.metrics.CommandHandled(rt.kind)

	switch rt.kind {
	case KindSet:
		r.handleSet(ctx, r.targets(rt), msg.Payload)
	case KindQuery:
		r.handleQuery(ctx, r.targets(rt), msg.Payload)
	case KindControl:
		return r.handleControl(msg.Payload)
	}
	return false
}

func (r *Router) targets(rt route) []*status.Entity {
	if rt.entity != nil {
		return []*status.Entity{rt.entity}
	}
	return r.registry.Entities()
}

// handleSet writes all pairs of one message to each target inside a single
// critical section, so a snapshot never holds part of a message.
func (r *Router) handleSet(ctx context.Context, targets []*status.Entity, body string) {
	pairs, skipped := parsePairs(body)
	if skipped > 0 {
		r.logger.Debug("skipped malformed set lines", "count", skipped)
	}
	if len(pairs) == 0 {
		return
	}

	fields := make([]status.Field, len(pairs))
	for i, p := range pairs {
		fields[i] = status.Field{Key: p.key, Value: status.Coerce(p.value)}
	}

	for _, e := range targets {
		err := r.locks.do(ctx, e, func(b *status.Buffer) error {
			var errs []error
			for _, f := range fields {
				if err := b.Put(f.Key, f.Value); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		})
		if err != nil {
			r.logger.Warn("set failed", "instance", e.ID(), "error", err)
		}
	}
}

// handleQuery answers with one "key=value" line per requested key, in
// request order. Absent keys are answered as "key=".
func (r *Router) handleQuery(ctx context.Context, targets []*status.Entity, body string) {
	keys := parseKeys(body)
	if len(keys) == 0 {
		return
	}

	for _, e := range targets {
		lines := make([]string, 0, len(keys))
		err := r.locks.do(ctx, e, func(b *status.Buffer) error {
			for _, k := range keys {
				v, ok := b.Get(k)
				if !ok {
					lines = append(lines, k+"=")
					continue
				}
				lines = append(lines, k+"="+v.String())
			}
			return nil
		})
		if err != nil {
			r.logger.Warn("query failed", "instance", e.ID(), "error", err)
			continue
		}

		pubCtx, cancel := context.WithTimeout(ctx, replyTimeout)
		err = r.broker.Publish(pubCtx, r.channels.Reply(e.ID()), strings.Join(lines, "\n"))
		cancel()
		if err != nil {
			r.logger.Warn("publishing reply failed", "instance", e.ID(), "error", err)
		}
	}
}

// handleControl applies gateway commands in order. It returns true on quit;
// commands after quit are ignored.
func (r *Router) handleControl(body string) bool {
	for _, line := range lines(body) {
		cmd, arg, _ := strings.Cut(line, "=")
		cmd = strings.TrimSpace(cmd)

		switch strings.ToLower(cmd) {
		case "":
			continue
		case "quit":
			r.logger.Info("quit command received")
			return true
		case "delay":
			d := r.runtime.SetDelay(parseDelay(arg))
			r.runtime.Wake()
			r.logger.Info("publish delay changed", "delay", d)
		default:
			r.logger.Warn("unknown gateway command", "command", cmd)
		}
	}
	return false
}
