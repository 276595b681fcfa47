package systems

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jiri/constellation/core"
)

// Color is an RGB triple with components in [0, 1].
type Color struct {
	R float64 `json:"r" yaml:"r"`
	G float64 `json:"g" yaml:"g"`
	B float64 `json:"b" yaml:"b"`
}

// Picture carries one frame per port across picture-enabled connections.
type Picture struct {
	mu sync.Mutex

	rng    *rand.Rand
	frames map[core.NodeID]Color
	rec    Recorder
}

// NewPicture creates the picture system. A zero seed seeds from the clock.
func NewPicture(seed int64) *Picture {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Picture{
		rng:    rand.New(rand.NewSource(seed)),
		frames: make(map[core.NodeID]Color),
		rec:    nopRecorder{},
	}
}

// SetRecorder installs a metrics recorder.
func (p *Picture) SetRecorder(rec Recorder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec == nil {
		rec = nopRecorder{}
	}
	p.rec = rec
}

func (p *Picture) Name() string { return "picture" }

// Send places a frame in the port's buffer, replacing any previous frame.
func (p *Picture) Send(port core.NodeID, c Color) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames[port] = c
}

// Receive takes the frame held by the port, leaving the buffer empty.
func (p *Picture) Receive(port core.NodeID) (Color, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.frames[port]
	delete(p.frames, port)
	return c, ok
}

// Update exchanges frames across every picture-enabled connection.
func (p *Picture) Update(_ context.Context, conns []core.Connection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	exchange(conns, pictureEnabled, p.swapLocked)
	return nil
}

// Forget drops the buffer of a destroyed port.
func (p *Picture) Forget(port core.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.frames, port)
}

// swapLocked exchanges the two buffers, empty ones included. With
// probability equal to the connection error rate both ends receive noise.
func (p *Picture) swapLocked(c core.Connection) {
	rate := c.Capabilities.Picture.ErrorRate
	if rate > 1 {
		rate = 1
	}
	if rate > 0 && p.rng.Float64() < rate {
		p.frames[c.From] = p.randomColor()
		p.frames[c.To] = p.randomColor()
		p.rec.IncPictureCorruption()
		return
	}

	a, aok := p.frames[c.From]
	b, bok := p.frames[c.To]
	delete(p.frames, c.From)
	delete(p.frames, c.To)
	if aok {
		p.frames[c.To] = a
	}
	if bok {
		p.frames[c.From] = b
	}
}

func (p *Picture) randomColor() Color {
	return Color{R: p.rng.Float64(), G: p.rng.Float64(), B: p.rng.Float64()}
}
