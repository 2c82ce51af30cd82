package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

// SnapshotSink receives the snapshots of every publish cycle.
type SnapshotSink interface {
	Name() string
	WriteSnapshots(ctx context.Context, snaps []EntitySnapshot) error
}

// MQTTPublisher is implemented by *mqtt.Client.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// PointWriter is implemented by *influxdb.Client.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// HistoryStore is implemented by *history.SQLiteRepository.
type HistoryStore interface {
	RecordSnapshot(ctx context.Context, gateway string, instance int, fields map[string]string, at time.Time) error
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// statusPayload is the retained MQTT document for one instance.
type statusPayload struct {
	Domain   string         `json:"domain"`
	Gateway  string         `json:"gateway"`
	Instance int            `json:"instance"`
	Time     time.Time      `json:"time"`
	Fields   map[string]any `json:"fields"`
}

// MQTTSink publishes each snapshot as retained JSON on
// "<prefix>/<gateway>/<instance>/status".
type MQTTSink struct {
	client   MQTTPublisher
	topics   mqtt.Topics
	channels Channels
	qos      byte
}

// NewMQTTSink returns a sink publishing through client.
func NewMQTTSink(client MQTTPublisher, prefix string, ch Channels, qos byte) *MQTTSink {
	return &MQTTSink{
		client:   client,
		topics:   mqtt.Topics{Prefix: prefix, Gateway: ch.Gateway},
		channels: ch,
		qos:      qos,
	}
}

// Name implements SnapshotSink.
func (s *MQTTSink) Name() string { return "mqtt" }

// WriteSnapshots implements SnapshotSink.
func (s *MQTTSink) WriteSnapshots(_ context.Context, snaps []EntitySnapshot) error {
	var errs []error
	for _, snap := range snaps {
		payload, err := json.Marshal(statusPayload{
			Domain:   s.channels.Domain,
			Gateway:  s.channels.Gateway,
			Instance: int(snap.ID),
			Time:     snap.Time.UTC(),
			Fields:   jsonFields(snap.Snapshot),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("instance %d: %w", snap.ID, err))
			continue
		}
		if err := s.client.Publish(s.topics.Status(int(snap.ID)), payload, s.qos, true); err != nil {
			errs = append(errs, fmt.Errorf("instance %d: %w", snap.ID, err))
		}
	}
	return errors.Join(errs...)
}

func jsonFields(snap status.Snapshot) map[string]any {
	out := make(map[string]any, len(snap))
	for _, f := range snap {
		switch f.Value.Kind() {
		case status.KindInt:
			out[f.Key], _ = f.Value.Int()
		case status.KindFloat:
			if v, _ := f.Value.Float(); !math.IsNaN(v) && !math.IsInf(v, 0) {
				out[f.Key] = v
			} else {
				out[f.Key] = f.Value.String()
			}
		default:
			out[f.Key] = f.Value.String()
		}
	}
	return out
}

// InfluxSink writes the numeric fields of each snapshot as one point per
// instance, tagged with domain, gateway and instance.
type InfluxSink struct {
	writer      PointWriter
	measurement string
	channels    Channels
}

// NewInfluxSink returns a sink writing to measurement through w.
func NewInfluxSink(w PointWriter, measurement string, ch Channels) *InfluxSink {
	return &InfluxSink{writer: w, measurement: measurement, channels: ch}
}

// Name implements SnapshotSink.
func (s *InfluxSink) Name() string { return "influxdb" }

// WriteSnapshots implements SnapshotSink. Writes are asynchronous.
func (s *InfluxSink) WriteSnapshots(_ context.Context, snaps []EntitySnapshot) error {
	for _, snap := range snaps {
		fields := make(map[string]any)
		for _, f := range snap.Snapshot {
			switch f.Value.Kind() {
			case status.KindInt:
				fields[f.Key], _ = f.Value.Int()
			case status.KindFloat:
				if v, _ := f.Value.Float(); !math.IsNaN(v) && !math.IsInf(v, 0) {
					fields[f.Key] = v
				}
			}
		}
		if len(fields) == 0 {
			continue
		}
		tags := map[string]string{
			"domain":   s.channels.Domain,
			"gateway":  s.channels.Gateway,
			"instance": snap.ID.String(),
		}
		s.writer.WritePointWithTime(s.measurement, tags, fields, snap.Time)
	}
	return nil
}

// HistorySink records snapshots locally at most once per interval per
// instance and prunes records older than the retention.
type HistorySink struct {
	store     HistoryStore
	gateway   string
	interval  time.Duration
	retention time.Duration

	mu   sync.Mutex
	last map[status.InstanceID]time.Time
}

// NewHistorySink returns a sink writing to store.
func NewHistorySink(store HistoryStore, gateway string, interval, retention time.Duration) *HistorySink {
	return &HistorySink{
		store:     store,
		gateway:   gateway,
		interval:  interval,
		retention: retention,
		last:      make(map[status.InstanceID]time.Time),
	}
}

// Name implements SnapshotSink.
func (s *HistorySink) Name() string { return "history" }

// WriteSnapshots implements SnapshotSink.
func (s *HistorySink) WriteSnapshots(ctx context.Context, snaps []EntitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	wrote := false
	for _, snap := range snaps {
		if last, ok := s.last[snap.ID]; ok && snap.Time.Sub(last) < s.interval {
			continue
		}
		err := s.store.RecordSnapshot(ctx, s.gateway, int(snap.ID), snap.Snapshot.Strings(), snap.Time)
		if err != nil {
			errs = append(errs, fmt.Errorf("instance %d: %w", snap.ID, err))
			continue
		}
		s.last[snap.ID] = snap.Time
		wrote = true
	}

	if wrote && s.retention > 0 && len(snaps) > 0 {
		if _, err := s.store.Prune(ctx, snaps[0].Time.Add(-s.retention)); err != nil {
			errs = append(errs, fmt.Errorf("pruning history: %w", err))
		}
	}
	return errors.Join(errs...)
}
