// Package components provides the devices that populate a Universe:
// picture sources and sinks, energy generators, consumers and routers,
// text terminals and radios.
package components

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jiri/constellation/core"
)

// Base carries what every device shares: its name, its bound ports and
// where it is.
type Base struct {
	core.PortSet

	name   string
	motion core.MotionModel
}

func newBase(name string) Base {
	return Base{name: name}
}

func (b *Base) Name() string { return b.name }

// SetMotion places the device. A nil model puts it at the origin.
func (b *Base) SetMotion(m core.MotionModel) { b.motion = m }

// PositionAt returns the device position at now.
func (b *Base) PositionAt(now time.Time) r3.Vec {
	if b.motion == nil {
		return r3.Vec{}
	}
	return b.motion.PositionAt(now)
}

// Placeable is implemented by every device in this package.
type Placeable interface {
	core.Component
	SetMotion(m core.MotionModel)
}
