package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/redis"
	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

const (
	// txTimeout bounds one pipelined publish round trip.
	txTimeout = 10 * time.Second

	// maxFailureBackoff caps the extra wait added after failed cycles.
	maxFailureBackoff = 30 * time.Second
)

// EntitySnapshot is the snapshot of one entity taken during a publish cycle.
type EntitySnapshot struct {
	ID       status.InstanceID
	Key      string
	Snapshot status.Snapshot
	Time     time.Time
}

// Publisher periodically mirrors every entity into the broker.
type Publisher struct {
	broker   Broker
	registry *status.Registry
	runtime  *Runtime
	channels Channels
	locks    locker
	sinks    []SnapshotSink
	logger   Logger
	metrics  Metrics

	failures backoff.BackOff
	now      func() time.Time
}

// Run publishes immediately and then once per delay until ctx is done. A
// failed cycle adds exponential backoff to the next wait. The round trip in
// flight when ctx ends is allowed to finish.
func (p *Publisher) Run(ctx context.Context) error {
	p.failures.Reset()
	for {
		var extra time.Duration
		if err := p.PublishOnce(ctx); err != nil {
			extra = p.failures.NextBackOff()
			if extra == backoff.Stop || extra > maxFailureBackoff {
				extra = maxFailureBackoff
			}
			p.logger.Error("publish cycle failed", "error", err, "retry_in", p.runtime.DelayDuration()+extra)
		} else {
			p.failures.Reset()
		}

		if err := p.runtime.Wait(ctx, extra); err != nil {
			return nil
		}
	}
}

// PublishOnce runs a single cycle: snapshot every entity, write all of
// them in one round trip, then feed the sinks.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	start := time.Now()

	snaps := p.collect(ctx)
	records := make([]HashRecord, 0, len(snaps))
	for _, s := range snaps {
		records = append(records, p.record(s))
	}

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), txTimeout)
	defer cancel()

	err := p.broker.ReplaceHashes(txCtx, records)
	if err != nil {
		p.metrics.PublishFailed()
	} else {
		p.metrics.PublishCycle(time.Since(start), len(records))
		p.logger.Debug("published snapshots", "entities", len(records), "duration", time.Since(start))
	}

	for _, sink := range p.sinks {
		if serr := sink.WriteSnapshots(txCtx, snaps); serr != nil {
			p.logger.Warn("snapshot sink failed", "sink", sink.Name(), "error", serr)
		}
	}
	return err
}

// collect reads each entity under its lock. Entities whose lock cannot be
// taken within the retry budget are left out of this cycle.
func (p *Publisher) collect(ctx context.Context) []EntitySnapshot {
	entities := p.registry.Entities()
	snaps := make([]EntitySnapshot, 0, len(entities))
	for _, e := range entities {
		var snap status.Snapshot
		err := p.locks.do(ctx, e, func(b *status.Buffer) error {
			snap = b.Snapshot()
			return nil
		})
		if err != nil {
			p.logger.Warn("skipping instance this cycle", "instance", e.ID(), "error", err)
			continue
		}
		snaps = append(snaps, EntitySnapshot{
			ID:       e.ID(),
			Key:      p.channels.Status(e.ID()),
			Snapshot: snap,
			Time:     p.now(),
		})
	}
	return snaps
}

func (p *Publisher) record(s EntitySnapshot) HashRecord {
	fields := make([]redis.Field, len(s.Snapshot))
	for i, f := range s.Snapshot {
		fields[i] = redis.Field{Name: f.Key, Value: f.Value.String()}
	}

	rec := HashRecord{Key: s.Key, Fields: fields}
	if len(fields) == 0 {
		// Only DEL is sent; nothing to expire or announce.
		return rec
	}
	if p.runtime.Expire() {
		rec.TTL = time.Duration(p.runtime.ExpireSeconds()) * time.Second
	}
	if p.runtime.Notify() {
		rec.Notify = p.channels.Update(s.ID)
	}
	return rec
}
