package infra

import (
	"context"
	"math"
	"time"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/internal/logging"
)

// Wireless links antenna ports of different components that are within
// range of each other. Links carry pictures only; their error rate is the
// frequency mismatch between the two radios.
type Wireless struct {
	u              *core.Universe
	earthOcclusion bool
	log            logging.Logger
}

// WirelessOption configures the wireless authority.
type WirelessOption func(*Wireless)

// WithEarthOcclusion drops links whose line of sight crosses the Earth.
// Positions must then be ECEF kilometres.
func WithEarthOcclusion(enabled bool) WirelessOption {
	return func(w *Wireless) { w.earthOcclusion = enabled }
}

// NewWireless creates the wireless authority for u.
func NewWireless(u *core.Universe, opts ...WirelessOption) *Wireless {
	w := &Wireless{u: u, log: u.Logger().With(logging.String("authority", string(core.AuthorityWireless)))}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wireless) Name() string { return string(core.AuthorityWireless) }

// Update evaluates every pair of antennas on distinct components. The
// range of a pair is the larger of the two radii.
func (w *Wireless) Update(ctx context.Context, now time.Time) error {
	antennas := w.u.Antennas(now)
	for i := 0; i < len(antennas); i++ {
		for j := i + 1; j < len(antennas); j++ {
			a, b := antennas[i], antennas[j]
			if a.Component == b.Component {
				continue
			}
			if w.inRange(a, b) {
				mismatch := math.Abs(a.Radio.Frequency - b.Radio.Frequency)
				w.u.Connect(core.AuthorityWireless, a.Port, b.Port, core.PictureOnly(mismatch))
				continue
			}
			if w.u.Disconnect(core.AuthorityWireless, a.Port, b.Port) > 0 {
				w.log.Debug(ctx, "wireless link out of range",
					logging.String("from", a.Component),
					logging.String("to", b.Component),
				)
			}
		}
	}
	return nil
}

func (w *Wireless) inRange(a, b core.Antenna) bool {
	radius := math.Max(a.Radio.Radius, b.Radio.Radius)
	if core.Distance(a.Position, b.Position) > radius {
		return false
	}
	if w.earthOcclusion && !core.HasLineOfSight(a.Position, b.Position) {
		return false
	}
	return true
}
