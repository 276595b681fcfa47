package infra

import (
	"context"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jiri/constellation/core"
)

// device is a minimal component with configurable ports and position.
type device struct {
	core.PortSet
	name  string
	specs []core.PortSpec

	mu  sync.Mutex
	pos r3.Vec
}

func newDevice(name string, caps core.Capabilities, ports ...string) *device {
	d := &device{name: name}
	for _, p := range ports {
		d.specs = append(d.specs, core.PortSpec{Name: p, Capabilities: caps})
	}
	return d
}

func newRadioDevice(name string, pos r3.Vec, radius, freq float64, antennas int) *device {
	d := &device{name: name, pos: pos}
	for i := 0; i < antennas; i++ {
		d.specs = append(d.specs, core.PortSpec{
			Name:         "ant" + string(rune('0'+i)),
			Capabilities: core.PictureOnly(0),
			Radio:        &core.Radio{Radius: radius, Frequency: freq},
		})
	}
	return d
}

func (d *device) Name() string                            { return d.name }
func (d *device) Ports() []core.PortSpec                  { return d.specs }
func (d *device) Update(context.Context, time.Time) error { return nil }

func (d *device) DefaultPort() string {
	if len(d.specs) == 0 {
		return ""
	}
	return d.specs[0].Name
}

func (d *device) PositionAt(time.Time) r3.Vec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos
}

func (d *device) moveTo(p r3.Vec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pos = p
}
