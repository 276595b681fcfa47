package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jiri/constellation/internal/logging"
)

var (
	ErrComponentExists   = errors.New("component already exists")
	ErrComponentNotFound = errors.New("component not found")
	ErrComponentBadInput = errors.New("invalid component")
	ErrPortNotFound      = errors.New("port not found")
)

// Tick phases, in execution order.
const (
	PhaseComponents     = "components"
	PhaseSystems        = "systems"
	PhaseInfrastructure = "infrastructure"
)

// System exchanges per-channel state across the connections that support
// its channel. Update receives a frozen snapshot of the registry and must
// not mutate the graph or the registry.
type System interface {
	Name() string
	Update(ctx context.Context, conns []Connection) error
	// Forget drops any buffer held for a port that is being destroyed.
	Forget(port NodeID)
}

// Infrastructure is an authority that asserts and retracts connections.
type Infrastructure interface {
	Name() string
	Update(ctx context.Context, now time.Time) error
}

// TickReport summarises one completed tick.
type TickReport struct {
	Tick        uint64
	Time        time.Time
	Connections int
	Duration    time.Duration
	Err         error
}

// TickListener is notified after every tick.
type TickListener func(ctx context.Context, report TickReport)

// TickMetricsRecorder receives tick timings.
type TickMetricsRecorder interface {
	ObservePhase(phase string, d time.Duration)
	ObserveTick(d time.Duration)
}

// NamedPort pairs a port name with its handle.
type NamedPort struct {
	Name string
	ID   NodeID
}

// Antenna is a radio-tagged port with its current position.
type Antenna struct {
	Port      NodeID
	Component string
	Radio     Radio
	Position  r3.Vec
}

type componentEntry struct {
	c       Component
	ports   []NamedPort
	byName  map[string]NodeID
	offsets map[NodeID]r3.Vec
}

// Universe owns the node graph, the connection registry, the components
// and the systems and infrastructures that drive them each tick.
type Universe struct {
	mu     sync.RWMutex
	tickMu sync.Mutex

	graph    *Graph
	registry *Registry

	components []*componentEntry
	byName     map[string]*componentEntry
	portOwner  map[NodeID]*componentEntry

	systems   []System
	infras    []Infrastructure
	listeners []TickListener

	log     logging.Logger
	metrics TickMetricsRecorder
	tracer  trace.Tracer

	tick uint64
}

// Option configures a Universe.
type Option func(*Universe)

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) Option {
	return func(u *Universe) {
		if l != nil {
			u.log = l
		}
	}
}

// WithTickMetrics installs a recorder for tick timings.
func WithTickMetrics(rec TickMetricsRecorder) Option {
	return func(u *Universe) { u.metrics = rec }
}

// WithTracer overrides the tracer used for tick spans.
func WithTracer(t trace.Tracer) Option {
	return func(u *Universe) {
		if t != nil {
			u.tracer = t
		}
	}
}

// NewUniverse creates an empty universe.
func NewUniverse(opts ...Option) *Universe {
	u := &Universe{
		graph:     NewGraph(),
		registry:  NewRegistry(),
		byName:    make(map[string]*componentEntry),
		portOwner: make(map[NodeID]*componentEntry),
		log:       logging.Noop(),
		tracer:    otel.Tracer("github.com/jiri/constellation/core"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Graph returns the node graph.
func (u *Universe) Graph() *Graph { return u.graph }

// Registry returns the connection registry.
func (u *Universe) Registry() *Registry { return u.registry }

// Logger returns the universe logger.
func (u *Universe) Logger() logging.Logger { return u.log }

// AddSystem registers a system. Systems run concurrently during a tick.
func (u *Universe) AddSystem(s System) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.systems = append(u.systems, s)
}

// AddInfrastructure registers an infrastructure. Infrastructures run in
// registration order.
func (u *Universe) AddInfrastructure(i Infrastructure) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.infras = append(u.infras, i)
}

// RegisterTickListener adds a callback run after every tick.
func (u *Universe) RegisterTickListener(fn TickListener) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.listeners = append(u.listeners, fn)
}

// AddComponent creates the component's ports and binds them.
func (u *Universe) AddComponent(c Component) error {
	if c == nil || c.Name() == "" {
		return fmt.Errorf("%w: empty name", ErrComponentBadInput)
	}
	specs := c.Ports()
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return fmt.Errorf("%w: %q has an unnamed port", ErrComponentBadInput, c.Name())
		}
		if seen[spec.Name] {
			return fmt.Errorf("%w: %q declares port %q twice", ErrComponentBadInput, c.Name(), spec.Name)
		}
		seen[spec.Name] = true
	}
	if def := c.DefaultPort(); def != "" && !seen[def] {
		return fmt.Errorf("%w: default port %q of %q", ErrPortNotFound, def, c.Name())
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if _, exists := u.byName[c.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrComponentExists, c.Name())
	}

	entry := &componentEntry{
		c:       c,
		byName:  make(map[string]NodeID, len(specs)),
		offsets: make(map[NodeID]r3.Vec, len(specs)),
	}
	for _, spec := range specs {
		id := u.graph.AddPort(c.Name(), spec.Name, spec.Capabilities, spec.Radio)
		entry.ports = append(entry.ports, NamedPort{Name: spec.Name, ID: id})
		entry.byName[spec.Name] = id
		entry.offsets[id] = spec.Offset
		u.portOwner[id] = entry
	}
	u.components = append(u.components, entry)
	u.byName[c.Name()] = entry

	bound := make(map[string]NodeID, len(entry.byName))
	for k, v := range entry.byName {
		bound[k] = v
	}
	c.BindPorts(bound)
	return nil
}

// RemoveComponent destroys a component: every connection touching one of
// its ports is purged regardless of authority, the ports are unlinked and
// removed, and systems drop their buffers.
func (u *Universe) RemoveComponent(name string) error {
	u.mu.Lock()
	entry, ok := u.byName[name]
	if !ok {
		u.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrComponentNotFound, name)
	}
	delete(u.byName, name)
	for i, e := range u.components {
		if e == entry {
			u.components = append(u.components[:i], u.components[i+1:]...)
			break
		}
	}
	for _, p := range entry.ports {
		delete(u.portOwner, p.ID)
	}
	systems := append([]System(nil), u.systems...)
	u.mu.Unlock()

	purged := 0
	for _, p := range entry.ports {
		purged += u.registry.Purge(p.ID)
		u.graph.Remove(p.ID)
		for _, s := range systems {
			s.Forget(p.ID)
		}
	}
	u.log.Debug(context.Background(), "component removed",
		logging.String("component", name),
		logging.Int("connections_purged", purged),
	)
	return nil
}

// Component returns a component by name.
func (u *Universe) Component(name string) (Component, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	e, ok := u.byName[name]
	if !ok {
		return nil, false
	}
	return e.c, true
}

// Components returns every component in registration order.
func (u *Universe) Components() []Component {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]Component, 0, len(u.components))
	for _, e := range u.components {
		out = append(out, e.c)
	}
	return out
}

// LookupPort resolves a component and port name to a port handle. An empty
// port name selects the component's default port.
func (u *Universe) LookupPort(component, port string) (NodeID, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	e, ok := u.byName[component]
	if !ok {
		return NodeID{}, fmt.Errorf("%w: %q", ErrComponentNotFound, component)
	}
	if port == "" {
		port = e.c.DefaultPort()
		if port == "" {
			return NodeID{}, fmt.Errorf("%w: %q has no default port", ErrPortNotFound, component)
		}
	}
	id, ok := e.byName[port]
	if !ok {
		return NodeID{}, fmt.Errorf("%w: %q on %q", ErrPortNotFound, port, component)
	}
	return id, nil
}

// PortsOf lists the ports of a component in declaration order.
func (u *Universe) PortsOf(component string) []NamedPort {
	u.mu.RLock()
	defer u.mu.RUnlock()
	e, ok := u.byName[component]
	if !ok {
		return nil
	}
	return append([]NamedPort(nil), e.ports...)
}

// PortName returns the owning component and port name of a port handle.
func (u *Universe) PortName(id NodeID) (component, port string, ok bool) {
	u.mu.RLock()
	e, ok := u.portOwner[id]
	u.mu.RUnlock()
	if !ok {
		return "", "", false
	}
	_, port = u.graph.Owner(id)
	return e.c.Name(), port, true
}

// Owner returns the component a port belongs to.
func (u *Universe) Owner(id NodeID) (Component, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	e, ok := u.portOwner[id]
	if !ok {
		return nil, false
	}
	return e.c, true
}

// Redistributor returns the energy redistributor owning port, if its
// component routes energy.
func (u *Universe) Redistributor(port NodeID) (Redistributor, bool) {
	c, ok := u.Owner(port)
	if !ok {
		return nil, false
	}
	r, ok := c.(Redistributor)
	return r, ok
}

// PortPosition returns the position of a port at now: the owning
// component's position plus the port offset.
func (u *Universe) PortPosition(id NodeID, now time.Time) (r3.Vec, bool) {
	u.mu.RLock()
	e, ok := u.portOwner[id]
	u.mu.RUnlock()
	if !ok {
		return r3.Vec{}, false
	}
	return r3.Add(componentPosition(e.c, now), e.offsets[id]), true
}

// Antennas lists every radio-tagged port with its position at now.
func (u *Universe) Antennas(now time.Time) []Antenna {
	u.mu.RLock()
	entries := append([]*componentEntry(nil), u.components...)
	u.mu.RUnlock()

	var out []Antenna
	for _, e := range entries {
		base := componentPosition(e.c, now)
		for _, p := range e.ports {
			radio, ok := u.graph.Radio(p.ID)
			if !ok {
				continue
			}
			out = append(out, Antenna{
				Port:      p.ID,
				Component: e.c.Name(),
				Radio:     radio,
				Position:  r3.Add(base, e.offsets[p.ID]),
			})
		}
	}
	return out
}

func componentPosition(c Component, now time.Time) r3.Vec {
	if p, ok := c.(Positioned); ok {
		return p.PositionAt(now)
	}
	return r3.Vec{}
}

// Connect asserts a connection for author between a and b. The stored
// capabilities are the port capabilities negotiated with extra, which
// describes whatever carries the link.
func (u *Universe) Connect(author Authority, a, b NodeID, extra Capabilities) Connection {
	caps := CombineAll(u.graph.Capabilities(a), extra, u.graph.Capabilities(b))
	c, created := u.registry.Assert(author, a, b, caps)
	if created {
		u.log.Debug(context.Background(), "connection asserted",
			logging.String("authority", string(author)),
			logging.String("from", u.describe(a)),
			logging.String("to", u.describe(b)),
			logging.String("capabilities", caps.String()),
		)
	}
	return c
}

// AssertPath asserts a folded path as-is. The path capabilities already
// include both endpoint ports.
func (u *Universe) AssertPath(author Authority, p Path) Connection {
	c, created := u.registry.Assert(author, p.From, p.To, p.Capabilities)
	if created {
		u.log.Debug(context.Background(), "connection asserted",
			logging.String("authority", string(author)),
			logging.String("from", u.describe(p.From)),
			logging.String("to", u.describe(p.To)),
			logging.String("capabilities", p.Capabilities.String()),
		)
	}
	return c
}

// Disconnect retracts author's connection between a and b.
func (u *Universe) Disconnect(author Authority, a, b NodeID) int {
	n := u.registry.Retract(author, a, b)
	if n > 0 {
		u.log.Debug(context.Background(), "connection retracted",
			logging.String("authority", string(author)),
			logging.String("from", u.describe(a)),
			logging.String("to", u.describe(b)),
		)
	}
	return n
}

func (u *Universe) describe(id NodeID) string {
	if c, p, ok := u.PortName(id); ok {
		return c + ":" + p
	}
	return id.String()
}

// Describe renders a connection using component and port names.
func (u *Universe) Describe(c Connection) string {
	return fmt.Sprintf("%s %s <-> %s [%s]", c.Author, u.describe(c.From), u.describe(c.To), c.Capabilities)
}

// TickCount returns the number of completed ticks.
func (u *Universe) TickCount() uint64 {
	u.tickMu.Lock()
	defer u.tickMu.Unlock()
	return u.tick
}

// Tick advances the universe by one step. Components update first, then
// every system runs concurrently over the same registry snapshot, then
// infrastructures reconcile connections. Errors from any phase are joined
// and returned after the whole tick has run.
func (u *Universe) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	u.tickMu.Lock()
	defer u.tickMu.Unlock()

	start := time.Now()
	u.mu.RLock()
	components := make([]Component, 0, len(u.components))
	for _, e := range u.components {
		components = append(components, e.c)
	}
	systems := append([]System(nil), u.systems...)
	infras := append([]Infrastructure(nil), u.infras...)
	listeners := append([]TickListener(nil), u.listeners...)
	u.mu.RUnlock()

	if logging.LoggerFromContext(ctx) == nil {
		ctx = logging.ContextWithLogger(ctx, u.log)
	}
	ctx, span := u.tracer.Start(ctx, "universe.tick",
		trace.WithAttributes(attribute.Int64("tick", int64(u.tick))),
	)
	defer span.End()

	var errs []error

	u.phase(ctx, PhaseComponents, func(ctx context.Context) error {
		var perr []error
		for _, c := range components {
			if err := c.Update(ctx, now); err != nil {
				perr = append(perr, fmt.Errorf("component %q: %w", c.Name(), err))
			}
		}
		return errors.Join(perr...)
	}, &errs)

	u.phase(ctx, PhaseSystems, func(ctx context.Context) error {
		snapshot := u.registry.All()
		perr := make([]error, len(systems))
		var g errgroup.Group
		for i, s := range systems {
			g.Go(func() error {
				if err := s.Update(ctx, snapshot); err != nil {
					perr[i] = fmt.Errorf("system %q: %w", s.Name(), err)
				}
				return nil
			})
		}
		_ = g.Wait()
		return errors.Join(perr...)
	}, &errs)

	u.phase(ctx, PhaseInfrastructure, func(ctx context.Context) error {
		var perr []error
		for _, inf := range infras {
			if err := inf.Update(ctx, now); err != nil {
				perr = append(perr, fmt.Errorf("infrastructure %q: %w", inf.Name(), err))
			}
		}
		return errors.Join(perr...)
	}, &errs)

	err := errors.Join(errs...)
	report := TickReport{
		Tick:        u.tick,
		Time:        now,
		Connections: u.registry.Len(),
		Duration:    time.Since(start),
		Err:         err,
	}
	u.tick++

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tick failed")
		u.log.Warn(ctx, "tick completed with errors",
			logging.Uint64("tick", report.Tick),
			logging.Duration("duration_ms", report.Duration),
			logging.Err(err),
		)
	}
	span.SetAttributes(attribute.Int("connections", report.Connections))
	if u.metrics != nil {
		u.metrics.ObserveTick(report.Duration)
	}
	for _, fn := range listeners {
		fn(ctx, report)
	}
	return report, err
}

func (u *Universe) phase(ctx context.Context, name string, fn func(context.Context) error, errs *[]error) {
	ctx, span := u.tracer.Start(ctx, "universe."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if u.metrics != nil {
		u.metrics.ObservePhase(name, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" phase failed")
		*errs = append(*errs, err)
	}
}

// Run advances the universe ticks times starting at start, stepping the
// simulation clock by step. It stops early when ctx is cancelled.
func (u *Universe) Run(ctx context.Context, ticks int, start time.Time, step time.Duration) error {
	now := start
	var errs []error
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := u.Tick(ctx, now); err != nil {
			errs = append(errs, err)
		}
		now = now.Add(step)
	}
	return errors.Join(errs...)
}
