package status

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseInstanceList(t *testing.T) {
	tests := []struct {
		in      string
		want    []InstanceID
		wantErr bool
	}{
		{"0,1,2,3", []InstanceID{0, 1, 2, 3}, false},
		{"2, 0 ,2", []InstanceID{2, 0}, false},
		{"", nil, false},
		{"1,x", nil, true},
		{"-1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInstanceList(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestMemoryStoreCreate(t *testing.T) {
	store := NewMemoryStore(0)

	if _, err := store.Open(1, false); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Open(create=false) error = %v, want ErrNotExist", err)
	}
	b, err := store.Open(1, true)
	if err != nil {
		t.Fatal(err)
	}
	again, err := store.Open(1, false)
	if err != nil || again != b {
		t.Errorf("reopen returned %p, %v; want %p", again, err, b)
	}
	if b.Capacity() != DefaultSize/RecordSize {
		t.Errorf("Capacity() = %d", b.Capacity())
	}
}

func TestOpenRegistry(t *testing.T) {
	store := NewMemoryStore(0)
	if _, err := store.Open(2, true); err != nil {
		t.Fatal(err)
	}

	reg, err := Open(store, []InstanceID{0, 2, 2}, false)
	if err == nil || !errors.Is(err, ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist for instance 0", err)
	}
	if errors.Is(err, ErrNoInstances) {
		t.Errorf("error should not report ErrNoInstances: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}

	byInt, ok := reg.Lookup(2)
	if !ok {
		t.Fatal("Lookup(2) failed")
	}
	id, err := ParseInstanceID(" 2")
	if err != nil {
		t.Fatalf("ParseInstanceID() error = %v", err)
	}
	if byString, ok := reg.Lookup(id); !ok || byString != byInt {
		t.Errorf("Lookup(ParseInstanceID(\" 2\")) = %p, want %p", byString, byInt)
	}
	if _, err := ParseInstanceID("two"); !errors.Is(err, ErrInvalidInstance) {
		t.Errorf("ParseInstanceID(two) error = %v, want ErrInvalidInstance", err)
	}
	if got := reg.Describe("px1"); got != "px1/2" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestOpenRegistryNoInstances(t *testing.T) {
	reg, err := Open(NewMemoryStore(0), []InstanceID{0, 1}, false)
	if !errors.Is(err, ErrNoInstances) {
		t.Fatalf("error = %v, want ErrNoInstances", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestRegistryOrder(t *testing.T) {
	reg, err := Open(NewMemoryStore(0), []InstanceID{3, 1, 2}, true)
	if err != nil {
		t.Fatal(err)
	}
	ids := reg.IDs()
	want := []InstanceID{3, 1, 2}
	for i, e := range reg.Entities() {
		if e.ID() != want[i] || ids[i] != want[i] {
			t.Errorf("entity %d = %d, want %d", i, e.ID(), want[i])
		}
	}
}

func TestEntityLockTimeout(t *testing.T) {
	b := NewBuffer(make([]byte, 4*RecordSize))
	e := NewEntity(0, b)

	if err := e.Lock(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.Do(ctx, func(*Buffer) error { return nil })
	if !errors.Is(err, ErrLockTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error = %v, want ErrLockTimeout", err)
	}

	e.Unlock()
	if err := e.Do(context.Background(), func(b *Buffer) error { return b.Put("K", Int(1)) }); err != nil {
		t.Fatalf("Do() after unlock error = %v", err)
	}
}

func TestEntitiesDoNotShareLocks(t *testing.T) {
	reg, err := Open(NewMemoryStore(0), []InstanceID{0, 1}, true)
	if err != nil {
		t.Fatal(err)
	}
	e0, _ := reg.Lookup(0)
	e1, _ := reg.Lookup(1)

	if err := e0.Lock(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer e0.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := e1.Snapshot(ctx); err != nil {
		t.Errorf("entity 1 blocked by entity 0: %v", err)
	}
}
