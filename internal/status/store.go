package status

import (
	"fmt"
	"sync"
)

// Store opens status buffers by instance id.
type Store interface {
	// Open returns the buffer for id. When create is false and the buffer
	// does not exist yet, Open fails with ErrNotExist.
	Open(id InstanceID, create bool) (*Buffer, error)
}

// MemoryStore keeps status buffers on the heap.
type MemoryStore struct {
	mu      sync.Mutex
	size    int
	buffers map[InstanceID]*Buffer
}

// NewMemoryStore returns an empty store whose buffers are size bytes
// (DefaultSize when size is not positive).
func NewMemoryStore(size int) *MemoryStore {
	if size < RecordSize {
		size = DefaultSize
	}
	return &MemoryStore{size: size, buffers: make(map[InstanceID]*Buffer)}
}

// Open implements Store.
func (s *MemoryStore) Open(id InstanceID, create bool) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buffers[id]; ok {
		return b, nil
	}
	if !create {
		return nil, fmt.Errorf("%w: instance %d", ErrNotExist, id)
	}
	b := NewBuffer(make([]byte, s.size))
	s.buffers[id] = b
	return b, nil
}
