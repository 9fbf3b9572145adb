package chat

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the registry size used when none is configured.
const DefaultCapacity = 1024

var (
	ErrRegistryFull = errors.New("chat: registry is full")
	ErrDuplicateID  = errors.New("chat: connection id already registered")
)

// Registry owns the live connections: a dense table plus an index from
// connection id to table slot. Capacity is enforced on insertion; ids are
// never used as table positions.
type Registry struct {
	capacity int
	conns    []*Connection
	index    map[ID]int
}

// NewRegistry creates an empty registry. A non-positive capacity selects
// DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		conns:    make([]*Connection, 0, capacity),
		index:    make(map[ID]int, capacity),
	}
}

// Insert adds c. It fails without modifying the registry when the registry
// is full or c's id is already present.
func (r *Registry) Insert(c *Connection) error {
	if _, ok := r.index[c.id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, c.id)
	}
	if len(r.conns) >= r.capacity {
		return fmt.Errorf("%w: %d connections", ErrRegistryFull, r.capacity)
	}
	r.index[c.id] = len(r.conns)
	r.conns = append(r.conns, c)
	return nil
}

// Remove deletes the connection with the given id and returns it.
// Removing an absent id is a no-op.
func (r *Registry) Remove(id ID) (*Connection, bool) {
	slot, ok := r.index[id]
	if !ok {
		return nil, false
	}
	c := r.conns[slot]

	last := len(r.conns) - 1
	if slot != last {
		moved := r.conns[last]
		r.conns[slot] = moved
		r.index[moved.id] = slot
	}
	r.conns[last] = nil
	r.conns = r.conns[:last]
	delete(r.index, id)
	return c, true
}

// Get looks up a live connection.
func (r *Registry) Get(id ID) (*Connection, bool) {
	slot, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.conns[slot], true
}

// Len returns the number of live connections.
func (r *Registry) Len() int { return len(r.conns) }

// Cap returns the maximum number of live connections.
func (r *Registry) Cap() int { return r.capacity }

// Full reports whether the next Insert would be rejected for capacity.
func (r *Registry) Full() bool { return len(r.conns) >= r.capacity }

// Each calls f for every live connection. f must not insert or remove.
func (r *Registry) Each(f func(*Connection)) {
	for _, c := range r.conns {
		f(c)
	}
}

// Drain removes and returns every connection.
func (r *Registry) Drain() []*Connection {
	drained := r.conns
	r.conns = make([]*Connection, 0, r.capacity)
	r.index = make(map[ID]int, r.capacity)
	return drained
}
