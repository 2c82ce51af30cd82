package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

var testChannels = Channels{Domain: "hashpipe", Gateway: "px1"}

// newTestRegistry returns a registry with in-memory instances.
func newTestRegistry(t *testing.T, ids ...status.InstanceID) *status.Registry {
	t.Helper()
	reg, err := status.Open(status.NewMemoryStore(status.RecordSize*64), ids, true)
	if err != nil {
		t.Fatalf("status.Open() error = %v", err)
	}
	return reg
}

func entity(t *testing.T, reg *status.Registry, id status.InstanceID) *status.Entity {
	t.Helper()
	e, ok := reg.Lookup(id)
	if !ok {
		t.Fatalf("instance %d not registered", id)
	}
	return e
}

func getField(t *testing.T, reg *status.Registry, id status.InstanceID, key string) (status.Value, bool) {
	t.Helper()
	snap, err := entity(t, reg, id).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return snap.Get(key)
}

func putField(t *testing.T, reg *status.Registry, id status.InstanceID, key string, v status.Value) {
	t.Helper()
	err := entity(t, reg, id).Do(context.Background(), func(b *status.Buffer) error {
		return b.Put(key, v)
	})
	if err != nil {
		t.Fatalf("Put(%s) error = %v", key, err)
	}
}

// fakeSub is a Subscription fed by fakeBroker.deliver.
type fakeSub struct {
	ch   chan Message
	once sync.Once
}

func (s *fakeSub) Messages() <-chan Message { return s.ch }

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

// fakeBroker records everything the gateway sends.
type fakeBroker struct {
	mu            sync.Mutex
	published     []Message
	cycles        [][]HashRecord
	replaceErr    error
	publishErr    error
	subscribeErrs int
	subscribed    [][]string
	sub           *fakeSub
	subReady      chan struct{}
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subReady: make(chan struct{}, 8)}
}

func (b *fakeBroker) Publish(_ context.Context, channel, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, Message{Channel: channel, Payload: message})
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, channels ...string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribeErrs > 0 {
		b.subscribeErrs--
		return nil, errors.New("connection refused")
	}
	b.subscribed = append(b.subscribed, channels)
	b.sub = &fakeSub{ch: make(chan Message, 16)}
	b.subReady <- struct{}{}
	return b.sub, nil
}

func (b *fakeBroker) ReplaceHashes(_ context.Context, records []HashRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycles = append(b.cycles, records)
	return b.replaceErr
}

// deliver sends msg on the current subscription.
func (b *fakeBroker) deliver(msg Message) {
	b.mu.Lock()
	sub := b.sub
	b.mu.Unlock()
	sub.ch <- msg
}

func (b *fakeBroker) waitSubscribed(t *testing.T) {
	t.Helper()
	select {
	case <-b.subReady:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscription")
	}
}

func (b *fakeBroker) replies() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.published...)
}

func (b *fakeBroker) cycleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cycles)
}

func (b *fakeBroker) lastCycle() []HashRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.cycles) == 0 {
		return nil
	}
	return b.cycles[len(b.cycles)-1]
}

// fakeMetrics counts hook calls.
type fakeMetrics struct {
	mu           sync.Mutex
	cycles       int
	failures     int
	commands     map[Kind]int
	lockTimeouts int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{commands: make(map[Kind]int)}
}

func (m *fakeMetrics) PublishCycle(time.Duration, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
}

func (m *fakeMetrics) PublishFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *fakeMetrics) CommandHandled(k Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[k]++
}

func (m *fakeMetrics) LockTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockTimeouts++
}

// newTestGateway builds a gateway over instances 0 and 1.
func newTestGateway(t *testing.T, broker Broker, opts Options) (*Gateway, *status.Registry) {
	t.Helper()
	if opts.Registry == nil {
		opts.Registry = newTestRegistry(t, 0, 1)
	}
	if opts.Runtime == nil {
		opts.Runtime = NewRuntime(1, true, true)
	}
	opts.Broker = broker
	opts.Channels = testChannels

	g, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g, opts.Registry
}
