package components

import (
	"context"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/systems"
)

// PortPower is the energy port of generators and lamps.
const PortPower = "power"

// Generator offers a constant amount of energy every tick.
type Generator struct {
	Base
	energy     *systems.Energy
	output     float64
	throughput float64
}

// NewGenerator creates a generator offering output per tick through a port
// limited to throughput. A non-positive throughput is unlimited.
func NewGenerator(name string, energy *systems.Energy, output, throughput float64) *Generator {
	if throughput <= 0 {
		throughput = math.Inf(1)
	}
	return &Generator{Base: newBase(name), energy: energy, output: output, throughput: throughput}
}

func (g *Generator) DefaultPort() string { return PortPower }

func (g *Generator) Ports() []core.PortSpec {
	return []core.PortSpec{{Name: PortPower, Capabilities: core.EnergyOnly(g.throughput)}}
}

func (g *Generator) Update(context.Context, time.Time) error {
	g.energy.Offer(g.Port(PortPower), g.output)
	return nil
}

// Lamp draws its demand from its power port each tick and is lit when the
// demand was fully met.
type Lamp struct {
	Base
	energy *systems.Energy
	demand float64

	mu       sync.Mutex
	received float64
}

// NewLamp creates a lamp that needs demand per tick.
func NewLamp(name string, energy *systems.Energy, demand float64) *Lamp {
	return &Lamp{Base: newBase(name), energy: energy, demand: demand}
}

func (l *Lamp) DefaultPort() string { return PortPower }

func (l *Lamp) Ports() []core.PortSpec {
	return []core.PortSpec{{Name: PortPower, Capabilities: core.EnergyOnly(math.Inf(1))}}
}

func (l *Lamp) Update(context.Context, time.Time) error {
	got := l.energy.Request(l.Port(PortPower), l.demand)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.received = got
	return nil
}

// Received returns the energy drawn on the last update.
func (l *Lamp) Received() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.received
}

// Lit reports whether the last update met the full demand.
func (l *Lamp) Lit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.demand > 0 && l.received >= l.demand
}

// Splitter ports.
var splitterPorts = []string{"a", "b", "c"}

// Splitter divides energy arriving on one port evenly across the other two.
type Splitter struct {
	Base
}

// NewSplitter creates a three-way splitter.
func NewSplitter(name string) *Splitter {
	return &Splitter{Base: newBase(name)}
}

func (s *Splitter) DefaultPort() string { return splitterPorts[0] }

func (s *Splitter) Ports() []core.PortSpec {
	specs := make([]core.PortSpec, 0, len(splitterPorts))
	for _, p := range splitterPorts {
		specs = append(specs, core.PortSpec{Name: p, Capabilities: core.EnergyOnly(math.Inf(1))})
	}
	return specs
}

func (s *Splitter) Update(context.Context, time.Time) error { return nil }

// RedistributeEnergy sends half of the incoming energy out of each other
// port.
func (s *Splitter) RedistributeEnergy(ingress core.NodeID) []core.Route {
	routes := make([]core.Route, 0, len(splitterPorts)-1)
	for _, p := range splitterPorts {
		if id := s.Port(p); id != ingress {
			routes = append(routes, core.Route{Weight: 1, Target: id})
		}
	}
	return normalize(routes)
}

// Switch ports.
const (
	SwitchIn = "in"
	SwitchA  = "a"
	SwitchB  = "b"
)

// Switch routes energy from its input to whichever outputs are on, sharing
// it evenly. With every output off the input keeps the energy.
type Switch struct {
	Base

	mu sync.Mutex
	on map[string]bool
}

// NewSwitch creates a switch with both outputs on.
func NewSwitch(name string) *Switch {
	return &Switch{Base: newBase(name), on: map[string]bool{SwitchA: true, SwitchB: true}}
}

func (s *Switch) DefaultPort() string { return SwitchIn }

func (s *Switch) Ports() []core.PortSpec {
	caps := core.EnergyOnly(math.Inf(1))
	return []core.PortSpec{
		{Name: SwitchIn, Capabilities: caps},
		{Name: SwitchA, Capabilities: caps},
		{Name: SwitchB, Capabilities: caps},
	}
}

// Set turns an output on or off.
func (s *Switch) Set(output string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.on[output]; ok {
		s.on[output] = on
	}
}

func (s *Switch) Update(context.Context, time.Time) error { return nil }

// RedistributeEnergy routes input energy to the enabled outputs. Energy
// fed back into an enabled output flows to the input; a disabled output
// keeps it.
func (s *Switch) RedistributeEnergy(ingress core.NodeID) []core.Route {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ingress != s.Port(SwitchIn) {
		for _, out := range []string{SwitchA, SwitchB} {
			if s.Port(out) == ingress && s.on[out] {
				return []core.Route{{Weight: 1, Target: s.Port(SwitchIn)}}
			}
		}
		return nil
	}

	var routes []core.Route
	for _, out := range []string{SwitchA, SwitchB} {
		if s.on[out] {
			routes = append(routes, core.Route{Weight: 1, Target: s.Port(out)})
		}
	}
	return normalize(routes)
}

// normalize scales route weights so they sum to one.
func normalize(routes []core.Route) []core.Route {
	if len(routes) == 0 {
		return nil
	}
	weights := make([]float64, len(routes))
	for i, r := range routes {
		weights[i] = r.Weight
	}
	total := floats.Sum(weights)
	if total <= 0 {
		return nil
	}
	floats.Scale(1/total, weights)
	for i := range routes {
		routes[i].Weight = weights[i]
	}
	return routes
}
