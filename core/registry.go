package core

import "sync"

// RegistryMetricsRecorder receives connection counts per authority whenever
// the registry changes.
type RegistryMetricsRecorder interface {
	SetConnectionCount(authority string, count int)
}

// Registry is the set of live connections, each tagged with the authority
// that asserted it. It is concurrency-safe via an internal RWMutex; systems
// read snapshots from All while infrastructures mutate it.
type Registry struct {
	mu sync.RWMutex

	conns   []Connection
	metrics RegistryMetricsRecorder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetMetricsRecorder installs a recorder that is notified on every change.
func (r *Registry) SetMetricsRecorder(rec RegistryMetricsRecorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = rec
	r.recordLocked()
}

// Assert inserts a connection for author between a and b, or updates the
// capabilities of the one author already holds. created is false when an
// existing connection was updated. A port is never connected to itself;
// such a call stores nothing and returns the zero Connection.
func (r *Registry) Assert(author Authority, a, b NodeID, caps Capabilities) (Connection, bool) {
	if a == b {
		return Connection{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.conns {
		c := &r.conns[i]
		if c.Author == author && c.Matches(a, b) {
			c.Capabilities = caps
			return *c, false
		}
	}

	c := Connection{From: a, To: b, Capabilities: caps, Author: author}
	r.conns = append(r.conns, c)
	r.recordLocked()
	return c, true
}

// Retract removes the connections author holds between a and b and returns
// how many were removed. Connections of other authorities are untouched.
func (r *Registry) Retract(author Authority, a, b NodeID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(func(c Connection) bool {
		return c.Author == author && c.Matches(a, b)
	})
}

// Purge removes every connection involving port, whatever its author.
func (r *Registry) Purge(port NodeID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(func(c Connection) bool { return c.Involves(port) })
}

// Lookup returns the connection author holds between a and b.
func (r *Registry) Lookup(author Authority, a, b NodeID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.conns {
		if c.Author == author && c.Matches(a, b) {
			return c, true
		}
	}
	return Connection{}, false
}

// Connected reports whether any authority connects a and b.
func (r *Registry) Connected(a, b NodeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.conns {
		if c.Matches(a, b) {
			return true
		}
	}
	return false
}

// All returns a snapshot of every connection in assertion order.
func (r *Registry) All() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Connection, len(r.conns))
	copy(out, r.conns)
	return out
}

// ByAuthor returns a snapshot of the connections asserted by author.
func (r *Registry) ByAuthor(author Authority) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Connection
	for _, c := range r.conns {
		if c.Author == author {
			out = append(out, c)
		}
	}
	return out
}

// Involving returns a snapshot of the connections that touch port.
func (r *Registry) Involving(port NodeID) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Connection
	for _, c := range r.conns {
		if c.Involves(port) {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Counts returns the number of connections per authority.
func (r *Registry) Counts() map[Authority]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countsLocked()
}

func (r *Registry) countsLocked() map[Authority]int {
	out := make(map[Authority]int)
	for _, c := range r.conns {
		out[c.Author]++
	}
	return out
}

func (r *Registry) removeLocked(match func(Connection) bool) int {
	kept := r.conns[:0]
	removed := 0
	for _, c := range r.conns {
		if match(c) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	// Clear the tail so removed connections are not retained.
	for i := len(kept); i < len(r.conns); i++ {
		r.conns[i] = Connection{}
	}
	r.conns = kept
	if removed > 0 {
		r.recordLocked()
	}
	return removed
}

func (r *Registry) recordLocked() {
	if r.metrics == nil {
		return
	}
	counts := r.countsLocked()
	for _, a := range []Authority{AuthorityWiring, AuthorityWireless, AuthorityManual} {
		if _, ok := counts[a]; !ok {
			counts[a] = 0
		}
	}
	for a, n := range counts {
		r.metrics.SetConnectionCount(string(a), n)
	}
}
