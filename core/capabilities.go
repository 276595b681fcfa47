package core

import (
	"fmt"
	"math"
	"strings"
)

// PictureCapability describes the picture channel of a port, cable or
// connection. ErrorRate is the probability that a transferred frame is
// replaced with noise; rates add up along a chain.
type PictureCapability struct {
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	ErrorRate float64 `json:"error_rate" yaml:"error_rate"`
}

// EnergyCapability describes the energy channel. Throughput caps the amount
// of energy a single transfer can carry.
type EnergyCapability struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Throughput float64 `json:"throughput" yaml:"throughput"`
}

// TextCapability describes the text channel.
type TextCapability struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Capabilities is the negotiated set of channels a node or connection
// supports.
type Capabilities struct {
	Picture PictureCapability `json:"picture" yaml:"picture"`
	Energy  EnergyCapability  `json:"energy" yaml:"energy"`
	Text    TextCapability    `json:"text" yaml:"text"`
}

// Unlimited returns the identity element of Combine: every channel enabled,
// no picture errors and unbounded energy throughput.
func Unlimited() Capabilities {
	return Capabilities{
		Picture: PictureCapability{Enabled: true},
		Energy:  EnergyCapability{Enabled: true, Throughput: math.Inf(1)},
		Text:    TextCapability{Enabled: true},
	}
}

// PictureOnly returns capabilities with only the picture channel enabled.
func PictureOnly(errorRate float64) Capabilities {
	c := Unlimited()
	c.Picture.ErrorRate = errorRate
	c.Energy.Enabled = false
	c.Text.Enabled = false
	return c
}

// EnergyOnly returns capabilities with only the energy channel enabled.
func EnergyOnly(throughput float64) Capabilities {
	c := Unlimited()
	c.Energy.Throughput = throughput
	c.Picture.Enabled = false
	c.Text.Enabled = false
	return c
}

// TextOnly returns capabilities with only the text channel enabled.
func TextOnly() Capabilities {
	c := Unlimited()
	c.Picture.Enabled = false
	c.Energy.Enabled = false
	return c
}

// Combine negotiates two capability sets. Channels must be enabled on both
// sides, picture error rates add and energy throughput is the minimum of
// both. The operation is commutative and associative.
func Combine(a, b Capabilities) Capabilities {
	return Capabilities{
		Picture: PictureCapability{
			Enabled:   a.Picture.Enabled && b.Picture.Enabled,
			ErrorRate: a.Picture.ErrorRate + b.Picture.ErrorRate,
		},
		Energy: EnergyCapability{
			Enabled:    a.Energy.Enabled && b.Energy.Enabled,
			Throughput: math.Min(a.Energy.Throughput, b.Energy.Throughput),
		},
		Text: TextCapability{
			Enabled: a.Text.Enabled && b.Text.Enabled,
		},
	}
}

// CombineAll folds every argument into Unlimited().
func CombineAll(cs ...Capabilities) Capabilities {
	out := Unlimited()
	for _, c := range cs {
		out = Combine(out, c)
	}
	return out
}

// Any reports whether at least one channel is enabled.
func (c Capabilities) Any() bool {
	return c.Picture.Enabled || c.Energy.Enabled || c.Text.Enabled
}

func (c Capabilities) String() string {
	var parts []string
	if c.Picture.Enabled {
		parts = append(parts, fmt.Sprintf("picture(err=%.3g)", c.Picture.ErrorRate))
	}
	if c.Energy.Enabled {
		if math.IsInf(c.Energy.Throughput, 1) {
			parts = append(parts, "energy(max=inf)")
		} else {
			parts = append(parts, fmt.Sprintf("energy(max=%.3g)", c.Energy.Throughput))
		}
	}
	if c.Text.Enabled {
		parts = append(parts, "text")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
