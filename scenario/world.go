// Package scenario assembles a ready-to-run Universe and populates it from
// scenario files.
package scenario

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/infra"
	"github.com/jiri/constellation/internal/logging"
	"github.com/jiri/constellation/systems"
)

// Metrics is everything the observability collector records.
type Metrics interface {
	core.TickMetricsRecorder
	core.RegistryMetricsRecorder
	systems.Recorder
}

// Options configures NewWorld.
type Options struct {
	Logger         logging.Logger
	Tracer         trace.Tracer
	Metrics        Metrics
	PictureSeed    int64
	MaxHops        int
	VisitBudget    int
	EarthOcclusion bool
}

// World is a Universe together with its systems and authorities.
type World struct {
	Universe *core.Universe

	Picture *systems.Picture
	Energy  *systems.Energy
	Text    *systems.Text

	Wiring   *infra.Wiring
	Wireless *infra.Wireless
	Manual   *infra.Manual
}

// NewWorld creates an empty universe with the three channel systems and
// the wiring, wireless and manual authorities registered.
func NewWorld(opts Options) *World {
	uopts := []core.Option{core.WithLogger(opts.Logger), core.WithTracer(opts.Tracer)}
	if opts.Metrics != nil {
		uopts = append(uopts, core.WithTickMetrics(opts.Metrics))
	}
	u := core.NewUniverse(uopts...)

	w := &World{
		Universe: u,
		Picture:  systems.NewPicture(opts.PictureSeed),
		Text:     systems.NewText(),
	}
	eopts := []systems.EnergyOption{
		systems.WithMaxHops(opts.MaxHops),
		systems.WithVisitBudget(opts.VisitBudget),
	}
	if opts.Metrics != nil {
		eopts = append(eopts, systems.WithEnergyRecorder(opts.Metrics))
		w.Picture.SetRecorder(opts.Metrics)
		w.Text.SetRecorder(opts.Metrics)
		u.Registry().SetMetricsRecorder(opts.Metrics)
	}
	w.Energy = systems.NewEnergy(u, eopts...)

	u.AddSystem(w.Picture)
	u.AddSystem(w.Energy)
	u.AddSystem(w.Text)

	w.Wiring = infra.NewWiring(u)
	w.Wireless = infra.NewWireless(u, infra.WithEarthOcclusion(opts.EarthOcclusion))
	w.Manual = infra.NewManual(u)

	u.AddInfrastructure(w.Wiring)
	u.AddInfrastructure(w.Wireless)
	u.AddInfrastructure(w.Manual)
	return w
}
