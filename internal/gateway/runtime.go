package gateway

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/config"
)

// Runtime holds the settings that may change while the gateway runs.
// All methods are safe for concurrent use.
type Runtime struct {
	delay  atomic.Uint64 // math.Float64bits of the delay in seconds
	notify atomic.Bool
	expire atomic.Bool
	wake   chan struct{}
}

// NewRuntime returns a Runtime with the given initial settings. The delay is
// clamped into range.
func NewRuntime(delay float64, notify, expire bool) *Runtime {
	r := &Runtime{wake: make(chan struct{}, 1)}
	r.SetDelay(delay)
	r.notify.Store(notify)
	r.expire.Store(expire)
	return r
}

// Delay returns the publish delay in seconds.
func (r *Runtime) Delay() float64 {
	return math.Float64frombits(r.delay.Load())
}

// DelayDuration returns the publish delay.
func (r *Runtime) DelayDuration() time.Duration {
	return time.Duration(r.Delay() * float64(time.Second))
}

// SetDelay stores d clamped to [0.25, 60] and returns the stored value.
// It does not wake the publisher.
func (r *Runtime) SetDelay(d float64) float64 {
	d = config.ClampDelay(d)
	r.delay.Store(math.Float64bits(d))
	return d
}

// Notify reports whether update notifications are published.
func (r *Runtime) Notify() bool { return r.notify.Load() }

// SetNotify enables or disables update notifications.
func (r *Runtime) SetNotify(v bool) { r.notify.Store(v) }

// Expire reports whether status keys get an expiry.
func (r *Runtime) Expire() bool { return r.expire.Load() }

// SetExpire enables or disables status key expiry.
func (r *Runtime) SetExpire(v bool) { r.expire.Store(v) }

// ExpireSeconds is the status key lifetime: three delays, rounded up.
func (r *Runtime) ExpireSeconds() int64 {
	return int64(math.Ceil(3 * r.Delay()))
}

// Wake ends the current (or next) Wait early. Wakes coalesce: any number
// of calls between two waits interrupt one wait.
func (r *Runtime) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Wait blocks for the current delay plus extra, until woken, or until ctx
// is done. It returns ctx.Err() in the last case.
func (r *Runtime) Wait(ctx context.Context, extra time.Duration) error {
	timer := time.NewTimer(r.DelayDuration() + extra)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.wake:
		return nil
	case <-timer.C:
		return nil
	}
}
