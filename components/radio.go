package components

import (
	"context"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/systems"
)

// PortAntenna is the radio-tagged port of a Radio.
const PortAntenna = "antenna"

// Radio bridges its antenna and its wired video port, relaying whatever
// frame arrives on one side out of the other.
type Radio struct {
	Base
	picture *systems.Picture
	radio   core.Radio
	offset  r3.Vec
}

// NewRadio creates a radio with the given antenna range and frequency.
func NewRadio(name string, picture *systems.Picture, radio core.Radio, offset r3.Vec) *Radio {
	return &Radio{Base: newBase(name), picture: picture, radio: radio, offset: offset}
}

func (r *Radio) DefaultPort() string { return PortAntenna }

func (r *Radio) Ports() []core.PortSpec {
	radio := r.radio
	return []core.PortSpec{
		{Name: PortAntenna, Capabilities: core.PictureOnly(0), Radio: &radio, Offset: r.offset},
		{Name: PortVideo, Capabilities: core.PictureOnly(0)},
	}
}

func (r *Radio) Update(context.Context, time.Time) error {
	antenna, video := r.Port(PortAntenna), r.Port(PortVideo)
	fromAir, airOK := r.picture.Receive(antenna)
	fromWire, wireOK := r.picture.Receive(video)
	if airOK {
		r.picture.Send(video, fromAir)
	}
	if wireOK {
		r.picture.Send(antenna, fromWire)
	}
	return nil
}
