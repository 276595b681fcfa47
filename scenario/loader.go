package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/jiri/constellation/components"
	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/infra"
	"github.com/jiri/constellation/systems"
)

// ErrInvalidScenario wraps every validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

var validate = validator.New()

// Scenario describes the devices, cables and manual links of a universe.
type Scenario struct {
	Components []ComponentDef `json:"components" yaml:"components" validate:"dive"`
	Cables     []CableDef     `json:"cables" yaml:"cables" validate:"dive"`
	Links      []infra.Link   `json:"links" yaml:"links"`
}

// ComponentDef describes one device. Fields that do not apply to the kind
// are ignored.
type ComponentDef struct {
	Kind     string     `json:"kind" yaml:"kind" validate:"required,oneof=camera monitor generator lamp splitter switch terminal cpu radio"`
	Name     string     `json:"name" yaml:"name" validate:"required"`
	Position [3]float64 `json:"position" yaml:"position"`
	TLE      []string   `json:"tle,omitempty" yaml:"tle,omitempty" validate:"omitempty,len=2,dive,len=69"`

	// camera
	Color systems.Color `json:"color" yaml:"color"`
	// generator
	Output     float64 `json:"output" yaml:"output" validate:"gte=0"`
	Throughput float64 `json:"throughput" yaml:"throughput" validate:"gte=0"`
	// lamp
	Demand float64 `json:"demand" yaml:"demand" validate:"gte=0"`
	// switch
	Off []string `json:"off,omitempty" yaml:"off,omitempty" validate:"dive,oneof=a b"`
	// radio
	Radius        float64    `json:"radius" yaml:"radius" validate:"gte=0"`
	Frequency     float64    `json:"frequency" yaml:"frequency"`
	AntennaOffset [3]float64 `json:"antenna_offset" yaml:"antenna_offset"`
}

// CableDef joins two ports through Segments cables. Zero segments links
// the ports directly.
type CableDef struct {
	From     infra.Endpoint `json:"from" yaml:"from"`
	To       infra.Endpoint `json:"to" yaml:"to"`
	Segments int            `json:"segments" yaml:"segments" validate:"gte=0,lte=64"`
	Caps     *CapsDef       `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// CapsDef overrides the capabilities of each cable segment. Omitted
// channels stay enabled.
type CapsDef struct {
	Picture    *bool   `json:"picture,omitempty" yaml:"picture,omitempty"`
	ErrorRate  float64 `json:"error_rate" yaml:"error_rate" validate:"gte=0"`
	Energy     *bool   `json:"energy,omitempty" yaml:"energy,omitempty"`
	Throughput float64 `json:"throughput" yaml:"throughput" validate:"gte=0"`
	Text       *bool   `json:"text,omitempty" yaml:"text,omitempty"`
}

// Capabilities converts the definition, treating a zero throughput as
// unlimited.
func (d *CapsDef) Capabilities() core.Capabilities {
	c := core.Unlimited()
	if d == nil {
		return c
	}
	if d.Picture != nil {
		c.Picture.Enabled = *d.Picture
	}
	c.Picture.ErrorRate = d.ErrorRate
	if d.Energy != nil {
		c.Energy.Enabled = *d.Energy
	}
	if d.Throughput > 0 {
		c.Energy.Throughput = d.Throughput
	}
	if d.Text != nil {
		c.Text.Enabled = *d.Text
	}
	return c
}

// Summary reports what Build created.
type Summary struct {
	Components []string
	Cables     int
	Links      int
}

// Validate checks field constraints and name uniqueness.
func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	seen := make(map[string]bool, len(s.Components))
	for _, c := range s.Components {
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate component %q", ErrInvalidScenario, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// Decode reads a scenario in the given format ("json" or "yaml").
func Decode(r io.Reader, format string) (*Scenario, error) {
	var s Scenario
	switch strings.ToLower(format) {
	case "json":
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return nil, fmt.Errorf("decode scenario: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&s); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode scenario: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a scenario, choosing the format from the extension.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return Decode(f, format)
}

// Build adds every component, lays every cable and asserts every manual
// link. It stops at the first error.
func Build(w *World, s *Scenario) (*Summary, error) {
	if w == nil || s == nil {
		return nil, fmt.Errorf("Build: nil world or scenario")
	}
	sum := &Summary{}

	for _, def := range s.Components {
		c, err := NewComponent(w, def)
		if err != nil {
			return nil, err
		}
		if err := w.Universe.AddComponent(c); err != nil {
			return nil, fmt.Errorf("add component %q: %w", def.Name, err)
		}
		if sw, ok := c.(*components.Switch); ok {
			for _, out := range def.Off {
				sw.Set(out, false)
			}
		}
		sum.Components = append(sum.Components, def.Name)
	}

	for i, cd := range s.Cables {
		if err := layCable(w, cd); err != nil {
			return nil, fmt.Errorf("cable %d (%s - %s): %w", i, cd.From, cd.To, err)
		}
		sum.Cables++
	}

	if err := w.Manual.Apply(s.Links); err != nil {
		return nil, err
	}
	sum.Links = len(s.Links)
	return sum, nil
}

// NewComponent builds the device described by def without adding it.
func NewComponent(w *World, def ComponentDef) (core.Component, error) {
	var c components.Placeable
	switch def.Kind {
	case "camera":
		c = components.NewCamera(def.Name, w.Picture, def.Color)
	case "monitor":
		c = components.NewMonitor(def.Name, w.Picture)
	case "generator":
		c = components.NewGenerator(def.Name, w.Energy, def.Output, def.Throughput)
	case "lamp":
		c = components.NewLamp(def.Name, w.Energy, def.Demand)
	case "splitter":
		c = components.NewSplitter(def.Name)
	case "switch":
		c = components.NewSwitch(def.Name)
	case "terminal":
		c = components.NewTerminal(def.Name, w.Text)
	case "cpu":
		c = components.NewCPU(def.Name, w.Text)
	case "radio":
		c = components.NewRadio(def.Name, w.Picture,
			core.Radio{Radius: def.Radius, Frequency: def.Frequency},
			vec(def.AntennaOffset))
	default:
		return nil, fmt.Errorf("%w: unknown component kind %q", ErrInvalidScenario, def.Kind)
	}

	var tle1, tle2 string
	if len(def.TLE) == 2 {
		tle1, tle2 = def.TLE[0], def.TLE[1]
	}
	c.SetMotion(core.NewMotionModel(vec(def.Position), tle1, tle2))
	return c, nil
}

func layCable(w *World, cd CableDef) error {
	from, err := w.Universe.LookupPort(cd.From.Component, cd.From.Port)
	if err != nil {
		return err
	}
	to, err := w.Universe.LookupPort(cd.To.Component, cd.To.Port)
	if err != nil {
		return err
	}

	if from == to {
		return fmt.Errorf("%w: cable joins %s to itself", ErrInvalidScenario, cd.From)
	}

	g := w.Universe.Graph()
	for _, end := range []core.NodeID{from, to} {
		if len(g.Neighbours(end)) > 0 {
			return fmt.Errorf("port %s is already wired", end)
		}
	}

	chain := []core.NodeID{from}
	caps := cd.Caps.Capabilities()
	for i := 0; i < cd.Segments; i++ {
		chain = append(chain, w.Wiring.AddCable(caps))
	}
	chain = append(chain, to)
	w.Wiring.Chain(chain...)
	return nil
}

func vec(v [3]float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
