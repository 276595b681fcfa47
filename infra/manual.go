package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/internal/logging"
)

// ErrEndpointNotFound is returned when a manifest names a component or
// port that does not exist.
var ErrEndpointNotFound = errors.New("manifest endpoint not found")

// ErrSelfLink is returned when both ends of a manual link name the same
// port.
var ErrSelfLink = errors.New("port cannot be connected to itself")

// Manual holds user-asserted connections. They persist until the user
// disconnects them or one of their components is destroyed.
type Manual struct {
	u   *core.Universe
	log logging.Logger

	mu      sync.Mutex
	pending []Link
	queued  bool
}

// NewManual creates the manual authority for u.
func NewManual(u *core.Universe) *Manual {
	return &Manual{u: u, log: u.Logger().With(logging.String("authority", string(core.AuthorityManual)))}
}

func (m *Manual) Name() string { return string(core.AuthorityManual) }

// Connect asserts a manual connection between two ports.
func (m *Manual) Connect(a, b core.NodeID) core.Connection {
	return m.u.Connect(core.AuthorityManual, a, b, core.Unlimited())
}

// Disconnect retracts the manual connection between two ports.
func (m *Manual) Disconnect(a, b core.NodeID) int {
	return m.u.Disconnect(core.AuthorityManual, a, b)
}

// ConnectByName looks both endpoints up and connects them. Nothing changes
// when either lookup fails.
func (m *Manual) ConnectByName(a, b Endpoint) (core.Connection, error) {
	pa, pb, err := m.resolve(a, b)
	if err != nil {
		return core.Connection{}, err
	}
	return m.Connect(pa, pb), nil
}

// DisconnectByName looks both endpoints up and disconnects them.
func (m *Manual) DisconnectByName(a, b Endpoint) (int, error) {
	pa, pb, err := m.resolve(a, b)
	if err != nil {
		return 0, err
	}
	return m.Disconnect(pa, pb), nil
}

// Links returns the manual connections as named endpoints, in registry
// order.
func (m *Manual) Links() []Link {
	var out []Link
	for _, c := range m.u.Registry().ByAuthor(core.AuthorityManual) {
		ac, ap, aok := m.u.PortName(c.From)
		bc, bp, bok := m.u.PortName(c.To)
		if !aok || !bok {
			continue
		}
		out = append(out, Link{A: Endpoint{Component: ac, Port: ap}, B: Endpoint{Component: bc, Port: bp}})
	}
	return out
}

// Apply resolves every link first and asserts them only if all resolve.
func (m *Manual) Apply(links []Link) error {
	ids, err := m.resolveAll(links)
	if err != nil {
		return err
	}
	for _, pair := range ids {
		m.Connect(pair[0], pair[1])
	}
	return nil
}

// Replace swaps the whole manual set for links. The current set is kept
// when any link fails to resolve.
func (m *Manual) Replace(links []Link) error {
	ids, err := m.resolveAll(links)
	if err != nil {
		return err
	}
	for _, c := range m.u.Registry().ByAuthor(core.AuthorityManual) {
		m.Disconnect(c.From, c.To)
	}
	for _, pair := range ids {
		m.Connect(pair[0], pair[1])
	}
	return nil
}

// Queue stores links to replace the manual set at the next Update.
func (m *Manual) Queue(links []Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = links
	m.queued = true
}

// Update applies a queued manifest, if any.
func (m *Manual) Update(ctx context.Context, _ time.Time) error {
	m.mu.Lock()
	links, queued := m.pending, m.queued
	m.pending, m.queued = nil, false
	m.mu.Unlock()

	if !queued {
		return nil
	}
	if err := m.Replace(links); err != nil {
		return fmt.Errorf("reload manual connections: %w", err)
	}
	m.log.Info(ctx, "manual connections reloaded", logging.Int("links", len(links)))
	return nil
}

// SaveFile writes the manual connections to path, choosing the codec from
// the file extension.
func (m *Manual) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if err := CodecForPath(path).Encode(f, m.Links()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a manifest from path and applies it. A missing file means
// there is nothing to load.
func (m *Manual) LoadFile(path string) error {
	links, err := ReadManifest(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.Apply(links)
}

func (m *Manual) resolve(a, b Endpoint) (core.NodeID, core.NodeID, error) {
	pa, err := m.u.LookupPort(a.Component, a.Port)
	if err != nil {
		return core.NodeID{}, core.NodeID{}, err
	}
	pb, err := m.u.LookupPort(b.Component, b.Port)
	if err != nil {
		return core.NodeID{}, core.NodeID{}, err
	}
	if pa == pb {
		return core.NodeID{}, core.NodeID{}, fmt.Errorf("%w: %s - %s", ErrSelfLink, a, b)
	}
	return pa, pb, nil
}

func (m *Manual) resolveAll(links []Link) ([][2]core.NodeID, error) {
	out := make([][2]core.NodeID, 0, len(links))
	for i, l := range links {
		pa, pb, err := m.resolve(l.A, l.B)
		if errors.Is(err, ErrSelfLink) {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: link %d (%s - %s): %w", ErrEndpointNotFound, i, l.A, l.B, err)
		}
		out = append(out, [2]core.NodeID{pa, pb})
	}
	return out, nil
}
