package core

import (
	"context"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// PortSpec declares one port of a component.
type PortSpec struct {
	Name         string
	Capabilities Capabilities
	// Radio marks the port as an antenna.
	Radio *Radio
	// Offset is the antenna position relative to the component.
	Offset r3.Vec
}

// Component is a device placed in the Universe. Ports are created from
// Ports() when the component is added and handed back through BindPorts.
type Component interface {
	Name() string
	DefaultPort() string
	Ports() []PortSpec
	BindPorts(ports map[string]NodeID)
	Update(ctx context.Context, now time.Time) error
}

// Positioned is implemented by components that occupy a location.
// Components that do not implement it sit at the origin.
type Positioned interface {
	PositionAt(now time.Time) r3.Vec
}

// Route is one branch of an energy redistribution: Weight of the incoming
// energy leaves through Target.
type Route struct {
	Weight float64
	Target NodeID
}

// Redistributor is implemented by components that pass energy arriving on
// one port out through others. Returning no routes makes the ingress port
// a sink that keeps the energy.
type Redistributor interface {
	RedistributeEnergy(ingress NodeID) []Route
}

// PortSet is embedded by components to keep the handles of their ports.
type PortSet struct {
	ports map[string]NodeID
}

// BindPorts stores the port handles created for the component.
func (p *PortSet) BindPorts(ports map[string]NodeID) { p.ports = ports }

// Port returns the handle of the named port, or the zero NodeID.
func (p *PortSet) Port(name string) NodeID { return p.ports[name] }
