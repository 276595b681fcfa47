package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gonum.org/v1/gonum/spatial/r3"
)

// eventLog records the order in which tick participants ran.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeComponent struct {
	PortSet
	name     string
	def      string
	specs    []PortSpec
	position r3.Vec
	log      *eventLog
	err      error
}

func (c *fakeComponent) Name() string                { return c.name }
func (c *fakeComponent) DefaultPort() string         { return c.def }
func (c *fakeComponent) Ports() []PortSpec           { return c.specs }
func (c *fakeComponent) PositionAt(time.Time) r3.Vec { return c.position }

func (c *fakeComponent) Update(context.Context, time.Time) error {
	if c.log != nil {
		c.log.add("component:" + c.name)
	}
	return c.err
}

func newFake(name string, ports ...string) *fakeComponent {
	c := &fakeComponent{name: name}
	for _, p := range ports {
		c.specs = append(c.specs, PortSpec{Name: p, Capabilities: Unlimited()})
	}
	if len(ports) > 0 {
		c.def = ports[0]
	}
	return c
}

type fakeSystem struct {
	log       *eventLog
	seen      int
	forgotten []NodeID
	mu        sync.Mutex
}

func (s *fakeSystem) Name() string { return "fake" }

func (s *fakeSystem) Update(_ context.Context, conns []Connection) error {
	s.log.add("system")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = len(conns)
	return nil
}

func (s *fakeSystem) Forget(port NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forgotten = append(s.forgotten, port)
}

type fakeInfra struct {
	log *eventLog
	fn  func()
}

func (i *fakeInfra) Name() string { return "fake" }

func (i *fakeInfra) Update(context.Context, time.Time) error {
	i.log.add("infra")
	if i.fn != nil {
		i.fn()
	}
	return nil
}

func TestUniverse_AddComponentValidation(t *testing.T) {
	u := NewUniverse()

	if err := u.AddComponent(newFake("cam", "video")); err != nil {
		t.Fatalf("AddComponent error: %v", err)
	}
	if err := u.AddComponent(newFake("cam", "video")); !errors.Is(err, ErrComponentExists) {
		t.Fatalf("duplicate AddComponent err = %v, want ErrComponentExists", err)
	}
	if err := u.AddComponent(newFake("", "video")); !errors.Is(err, ErrComponentBadInput) {
		t.Fatalf("unnamed AddComponent err = %v, want ErrComponentBadInput", err)
	}
	if err := u.AddComponent(newFake("twice", "p", "p")); !errors.Is(err, ErrComponentBadInput) {
		t.Fatalf("duplicate port err = %v, want ErrComponentBadInput", err)
	}
	bad := newFake("bad", "p")
	bad.def = "missing"
	if err := u.AddComponent(bad); !errors.Is(err, ErrPortNotFound) {
		t.Fatalf("missing default port err = %v, want ErrPortNotFound", err)
	}
	if got := len(u.Components()); got != 1 {
		t.Fatalf("Components = %d, want 1", got)
	}
}

func TestUniverse_LookupPort(t *testing.T) {
	u := NewUniverse()
	c := newFake("sw", "in", "a", "b")
	if err := u.AddComponent(c); err != nil {
		t.Fatalf("AddComponent error: %v", err)
	}

	def, err := u.LookupPort("sw", "")
	if err != nil || def != c.Port("in") {
		t.Fatalf("default LookupPort = %s,%v, want %s", def, err, c.Port("in"))
	}
	b, err := u.LookupPort("sw", "b")
	if err != nil || b != c.Port("b") {
		t.Fatalf("LookupPort(b) = %s,%v, want %s", b, err, c.Port("b"))
	}
	if _, err := u.LookupPort("nope", ""); !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("unknown component err = %v", err)
	}
	if _, err := u.LookupPort("sw", "zzz"); !errors.Is(err, ErrPortNotFound) {
		t.Fatalf("unknown port err = %v", err)
	}

	comp, port, ok := u.PortName(b)
	if !ok || comp != "sw" || port != "b" {
		t.Fatalf("PortName = %s:%s,%v, want sw:b", comp, port, ok)
	}
	if names := u.PortsOf("sw"); len(names) != 3 || names[0].Name != "in" {
		t.Fatalf("PortsOf = %v, want declaration order", names)
	}
}

func TestUniverse_RemoveComponentPurgesConnections(t *testing.T) {
	log := &eventLog{}
	sys := &fakeSystem{log: log}
	u := NewUniverse()
	u.AddSystem(sys)

	a, b, c := newFake("a", "p"), newFake("b", "p"), newFake("c", "p")
	for _, comp := range []Component{a, b, c} {
		if err := u.AddComponent(comp); err != nil {
			t.Fatalf("AddComponent error: %v", err)
		}
	}
	u.Connect(AuthorityWiring, a.Port("p"), b.Port("p"), Unlimited())
	u.Connect(AuthorityManual, b.Port("p"), a.Port("p"), Unlimited())
	u.Connect(AuthorityWireless, b.Port("p"), c.Port("p"), PictureOnly(0))

	if err := u.RemoveComponent("a"); err != nil {
		t.Fatalf("RemoveComponent error: %v", err)
	}
	if got := u.Registry().Len(); got != 1 {
		t.Fatalf("connections after removal = %d, want 1", got)
	}
	if u.Graph().Alive(a.Port("p")) {
		t.Fatalf("removed component's port is still alive")
	}
	if len(sys.forgotten) != 1 || sys.forgotten[0] != a.Port("p") {
		t.Fatalf("Forget calls = %v, want the removed port", sys.forgotten)
	}
	if _, ok := u.Component("a"); ok {
		t.Fatalf("removed component still registered")
	}
	if err := u.RemoveComponent("a"); !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("second RemoveComponent err = %v, want ErrComponentNotFound", err)
	}
}

func TestUniverse_ConnectNegotiatesPortCapabilities(t *testing.T) {
	u := NewUniverse()
	cam := &fakeComponent{name: "cam", def: "v", specs: []PortSpec{{Name: "v", Capabilities: PictureOnly(0.1)}}}
	mon := &fakeComponent{name: "mon", def: "v", specs: []PortSpec{{Name: "v", Capabilities: PictureOnly(0.2)}}}
	_ = u.AddComponent(cam)
	_ = u.AddComponent(mon)

	conn := u.Connect(AuthorityWireless, cam.Port("v"), mon.Port("v"), PictureOnly(0.3))
	if !conn.Capabilities.Picture.Enabled || conn.Capabilities.Text.Enabled {
		t.Fatalf("capabilities = %s, want picture only", conn.Capabilities)
	}
	if diff := conn.Capabilities.Picture.ErrorRate - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("ErrorRate = %v, want 0.6", conn.Capabilities.Picture.ErrorRate)
	}
	if n := u.Disconnect(AuthorityWireless, mon.Port("v"), cam.Port("v")); n != 1 {
		t.Fatalf("Disconnect = %d, want 1", n)
	}
}

func TestUniverse_TickRunsPhasesInOrder(t *testing.T) {
	log := &eventLog{}
	sys := &fakeSystem{log: log}
	u := NewUniverse()

	a, b := newFake("a", "p"), newFake("b", "p")
	a.log, b.log = log, log
	_ = u.AddComponent(a)
	_ = u.AddComponent(b)
	u.AddSystem(sys)
	u.AddInfrastructure(&fakeInfra{log: log, fn: func() {
		u.Connect(AuthorityManual, a.Port("p"), b.Port("p"), Unlimited())
	}})

	var reports []TickReport
	u.RegisterTickListener(func(_ context.Context, r TickReport) { reports = append(reports, r) })

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := u.Run(context.Background(), 2, start, time.Second); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := []string{"component:a", "component:b", "system", "infra", "component:a", "component:b", "system", "infra"}
	got := log.snapshot()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	// The system saw the connection made by the first tick's infra only on
	// the second tick.
	if sys.seen != 1 {
		t.Fatalf("system saw %d connections on tick 2, want 1", sys.seen)
	}
	if len(reports) != 2 || reports[1].Tick != 1 || !reports[1].Time.Equal(start.Add(time.Second)) {
		t.Fatalf("reports = %+v", reports)
	}
	if u.TickCount() != 2 {
		t.Fatalf("TickCount = %d, want 2", u.TickCount())
	}
}

func TestUniverse_TickJoinsErrorsAndContinues(t *testing.T) {
	log := &eventLog{}
	u := NewUniverse()
	broken := newFake("broken", "p")
	broken.err = errors.New("boom")
	_ = u.AddComponent(broken)
	u.AddInfrastructure(&fakeInfra{log: log})

	report, err := u.Tick(context.Background(), time.Now())
	if err == nil || report.Err == nil {
		t.Fatalf("Tick err = nil, want the component failure")
	}
	if !errors.Is(err, broken.err) {
		t.Fatalf("Tick err = %v, want it to wrap boom", err)
	}
	if got := log.snapshot(); len(got) != 1 || got[0] != "infra" {
		t.Fatalf("infrastructure did not run after a component failed: %v", got)
	}
}

func TestUniverse_TickSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	u := NewUniverse(WithTracer(tp.Tracer("test")))
	if _, err := u.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("Tick error: %v", err)
	}

	names := map[string]bool{}
	for _, s := range sr.Ended() {
		names[s.Name()] = true
	}
	for _, want := range []string{"universe.tick", "universe." + PhaseComponents, "universe." + PhaseSystems, "universe." + PhaseInfrastructure} {
		if !names[want] {
			t.Fatalf("missing span %q, got %v", want, names)
		}
	}
}

func TestUniverse_AntennasUseOffsets(t *testing.T) {
	u := NewUniverse()
	radio := &fakeComponent{
		name:     "r",
		def:      "ant",
		position: r3.Vec{X: 10},
		specs: []PortSpec{
			{Name: "ant", Capabilities: PictureOnly(0), Radio: &Radio{Radius: 3, Frequency: 1}, Offset: r3.Vec{Y: 2}},
			{Name: "video", Capabilities: PictureOnly(0)},
		},
	}
	_ = u.AddComponent(radio)

	ants := u.Antennas(time.Now())
	if len(ants) != 1 {
		t.Fatalf("Antennas = %d, want 1", len(ants))
	}
	if want := (r3.Vec{X: 10, Y: 2}); ants[0].Position != want {
		t.Fatalf("antenna position = %v, want %v", ants[0].Position, want)
	}
	if ants[0].Component != "r" || ants[0].Radio.Radius != 3 {
		t.Fatalf("antenna = %+v", ants[0])
	}
	if pos, ok := u.PortPosition(radio.Port("video"), time.Now()); !ok || pos != (r3.Vec{X: 10}) {
		t.Fatalf("PortPosition(video) = %v,%v", pos, ok)
	}
}
