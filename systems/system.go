// Package systems implements the typed channels that move state across
// connections every tick: picture frames, energy and text messages.
package systems

import "github.com/jiri/constellation/core"

// Recorder receives per-channel counters. The observability collector
// satisfies it; systems default to a recorder that drops everything.
type Recorder interface {
	AddEnergyDelivered(amount float64)
	AddEnergyDropped(amount float64)
	IncRedistributionDivergence()
	IncPictureCorruption()
	AddTextMessages(n int)
}

type nopRecorder struct{}

func (nopRecorder) AddEnergyDelivered(float64)   {}
func (nopRecorder) AddEnergyDropped(float64)     {}
func (nopRecorder) IncRedistributionDivergence() {}
func (nopRecorder) IncPictureCorruption()        {}
func (nopRecorder) AddTextMessages(int)          {}

// exchange applies swap to every connection accepted by filter and returns
// how many were swapped.
func exchange(conns []core.Connection, filter func(core.Connection) bool, swap func(core.Connection)) int {
	n := 0
	for _, c := range conns {
		if !filter(c) {
			continue
		}
		swap(c)
		n++
	}
	return n
}

func pictureEnabled(c core.Connection) bool { return c.Capabilities.Picture.Enabled }
func energyEnabled(c core.Connection) bool  { return c.Capabilities.Energy.Enabled }
func textEnabled(c core.Connection) bool    { return c.Capabilities.Text.Enabled }
