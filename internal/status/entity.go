package status

import (
	"context"
	"fmt"
	"time"
)

const lockPollInterval = 2 * time.Millisecond

// Entity is one managed status buffer together with its lock.
type Entity struct {
	id  InstanceID
	buf *Buffer
	sem chan struct{}
}

// NewEntity wraps buf as the entity for id.
func NewEntity(id InstanceID, buf *Buffer) *Entity {
	return &Entity{id: id, buf: buf, sem: make(chan struct{}, 1)}
}

// ID returns the instance id.
func (e *Entity) ID() InstanceID { return e.id }

// Lock acquires the entity lock, waiting until ctx is done.
func (e *Entity) Lock(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: instance %d: %w", ErrLockTimeout, e.id, ctx.Err())
	}

	if e.buf.data == nil {
		<-e.sem
		return fmt.Errorf("instance %d: %w", e.id, ErrClosed)
	}
	if e.buf.xlock == nil {
		return nil
	}

	var tick *time.Ticker
	for {
		ok, err := e.buf.xlock.tryLock()
		if err != nil {
			<-e.sem
			return fmt.Errorf("locking instance %d: %w", e.id, err)
		}
		if ok {
			if tick != nil {
				tick.Stop()
			}
			return nil
		}
		if tick == nil {
			tick = time.NewTicker(lockPollInterval)
		}
		select {
		case <-tick.C:
		case <-ctx.Done():
			tick.Stop()
			<-e.sem
			return fmt.Errorf("%w: instance %d: %w", ErrLockTimeout, e.id, ctx.Err())
		}
	}
}

// Unlock releases the lock taken by Lock.
func (e *Entity) Unlock() {
	if e.buf.xlock != nil {
		e.buf.xlock.unlock() //nolint:errcheck // nothing useful to do on failure
	}
	<-e.sem
}

// Do runs fn with the entity locked. The buffer must not be retained after
// fn returns.
func (e *Entity) Do(ctx context.Context, fn func(*Buffer) error) error {
	if err := e.Lock(ctx); err != nil {
		return err
	}
	defer e.Unlock()
	return fn(e.buf)
}

// Snapshot reads all fields under the lock.
func (e *Entity) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.Do(ctx, func(b *Buffer) error {
		snap = b.Snapshot()
		return nil
	})
	return snap, err
}
