// Package infra holds the authorities that assert and retract connections:
// physical wiring, wireless range checks and manual links.
package infra

import (
	"context"
	"time"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/internal/logging"
)

// Wiring owns cables and keeps one connection per complete cable chain.
// The stored capabilities always equal the fold of the whole chain.
type Wiring struct {
	u   *core.Universe
	log logging.Logger
}

// NewWiring creates the wiring authority for u.
func NewWiring(u *core.Universe) *Wiring {
	return &Wiring{u: u, log: u.Logger().With(logging.String("authority", string(core.AuthorityWiring)))}
}

func (w *Wiring) Name() string { return string(core.AuthorityWiring) }

// AddCable creates an unlinked cable.
func (w *Wiring) AddCable(caps core.Capabilities) core.NodeID {
	return w.u.Graph().AddCable(caps)
}

// RemoveCable unlinks both ends of a cable, retracting whatever ran
// through it, and deletes it.
func (w *Wiring) RemoveCable(id core.NodeID) {
	g := w.u.Graph()
	for _, nb := range g.Neighbours(id) {
		w.Separate(id, nb)
	}
	g.Remove(id)
}

// Join links a and b. When the link completes a chain the connection is
// asserted and returned.
func (w *Wiring) Join(a, b core.NodeID) (core.Connection, bool) {
	path, ok := w.u.Graph().Connect(a, b)
	if !ok {
		return core.Connection{}, false
	}
	return w.u.AssertPath(core.AuthorityWiring, path), true
}

// Separate unlinks a and b and retracts the connection the link was part
// of, if the chain was complete.
func (w *Wiring) Separate(a, b core.NodeID) {
	prior, ok := w.u.Graph().Disconnect(a, b)
	if !ok {
		return
	}
	w.u.Disconnect(core.AuthorityWiring, prior.From, prior.To)
}

// Chain links the given nodes in order, e.g. port, cable, cable, port.
func (w *Wiring) Chain(nodes ...core.NodeID) (core.Connection, bool) {
	var (
		conn core.Connection
		ok   bool
	)
	for i := 1; i < len(nodes); i++ {
		conn, ok = w.Join(nodes[i-1], nodes[i])
	}
	return conn, ok
}

// Update re-resolves every port. Complete chains are asserted with their
// current fold; wiring connections whose chain no longer resolves are
// retracted.
func (w *Wiring) Update(ctx context.Context, _ time.Time) error {
	g := w.u.Graph()
	var live []core.Path
	for _, port := range g.Ports() {
		path, ok := g.Resolve(port)
		if !ok || seen(live, path) {
			continue
		}
		live = append(live, path)
		w.u.AssertPath(core.AuthorityWiring, path)
	}

	for _, c := range w.u.Registry().ByAuthor(core.AuthorityWiring) {
		if seen(live, core.Path{From: c.From, To: c.To}) {
			continue
		}
		w.u.Disconnect(core.AuthorityWiring, c.From, c.To)
		w.log.Debug(ctx, "stale wiring connection retracted",
			logging.String("from", c.From.String()),
			logging.String("to", c.To.String()),
		)
	}
	return nil
}

func seen(paths []core.Path, p core.Path) bool {
	for _, q := range paths {
		if (q.From == p.From && q.To == p.To) || (q.From == p.To && q.To == p.From) {
			return true
		}
	}
	return false
}
