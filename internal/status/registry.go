package status

import (
	"errors"
	"fmt"
	"strings"
)

// Registry holds the entities a gateway manages, reachable by numeric or
// string id.
type Registry struct {
	entities map[InstanceID]*Entity
	order    []InstanceID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[InstanceID]*Entity)}
}

// Open opens every id from store and returns the registry of those that
// opened. Failures are joined into the returned error; if nothing opened the
// error also wraps ErrNoInstances.
func Open(store Store, ids []InstanceID, create bool) (*Registry, error) {
	r := NewRegistry()
	var errs []error
	for _, id := range ids {
		if _, ok := r.entities[id]; ok {
			continue
		}
		buf, err := store.Open(id, create)
		if err != nil {
			errs = append(errs, fmt.Errorf("instance %d: %w", id, err))
			continue
		}
		r.Add(id, buf)
	}
	if r.Len() == 0 {
		errs = append(errs, ErrNoInstances)
	}
	return r, errors.Join(errs...)
}

// Add registers buf under id. An id already present is left unchanged.
func (r *Registry) Add(id InstanceID, buf *Buffer) *Entity {
	if e, ok := r.entities[id]; ok {
		return e
	}
	e := NewEntity(id, buf)
	r.entities[id] = e
	r.order = append(r.order, id)
	return e
}

// Lookup returns the entity for id. String forms go through ParseInstanceID
// first so " 2" and "2" reach the same entity.
func (r *Registry) Lookup(id InstanceID) (*Entity, bool) {
	e, ok := r.entities[id]
	return e, ok
}

// Entities returns all entities in the order they were added.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entities[id])
	}
	return out
}

// IDs returns the managed ids in the order they were added.
func (r *Registry) IDs() []InstanceID {
	return append([]InstanceID(nil), r.order...)
}

// Len returns the number of entities.
func (r *Registry) Len() int { return len(r.order) }

// Describe renders the managed instances as "gw/0 gw/1 ...".
func (r *Registry) Describe(gateway string) string {
	parts := make([]string, len(r.order))
	for i, id := range r.order {
		parts[i] = gateway + "/" + id.String()
	}
	return strings.Join(parts, " ")
}

// Close releases every buffer.
func (r *Registry) Close() error {
	var errs []error
	for _, id := range r.order {
		if err := r.entities[id].buf.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
