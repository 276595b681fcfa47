package components

import (
	"context"
	"sync"
	"time"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/systems"
)

// PortVideo is the picture port of cameras, monitors and radios.
const PortVideo = "video"

// Camera pushes a fixed color into its video port every tick.
type Camera struct {
	Base
	picture *systems.Picture

	mu    sync.Mutex
	color systems.Color
}

// NewCamera creates a camera that broadcasts color.
func NewCamera(name string, picture *systems.Picture, color systems.Color) *Camera {
	return &Camera{Base: newBase(name), picture: picture, color: color}
}

func (c *Camera) DefaultPort() string { return PortVideo }

func (c *Camera) Ports() []core.PortSpec {
	return []core.PortSpec{{Name: PortVideo, Capabilities: core.PictureOnly(0)}}
}

// SetColor changes the broadcast color.
func (c *Camera) SetColor(color systems.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.color = color
}

func (c *Camera) Update(context.Context, time.Time) error {
	c.mu.Lock()
	color := c.color
	c.mu.Unlock()
	c.picture.Send(c.Port(PortVideo), color)
	return nil
}

// Monitor shows the last frame that arrived on its video port.
type Monitor struct {
	Base
	picture *systems.Picture

	mu     sync.Mutex
	frame  systems.Color
	showed bool
}

// NewMonitor creates a blank monitor.
func NewMonitor(name string, picture *systems.Picture) *Monitor {
	return &Monitor{Base: newBase(name), picture: picture}
}

func (m *Monitor) DefaultPort() string { return PortVideo }

func (m *Monitor) Ports() []core.PortSpec {
	return []core.PortSpec{{Name: PortVideo, Capabilities: core.PictureOnly(0)}}
}

func (m *Monitor) Update(context.Context, time.Time) error {
	frame, ok := m.picture.Receive(m.Port(PortVideo))
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame, m.showed = frame, true
	return nil
}

// Frame returns the displayed frame and whether anything was ever shown.
func (m *Monitor) Frame() (systems.Color, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame, m.showed
}
