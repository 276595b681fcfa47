package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the simulation loop, the
// connection registry and the channel systems.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks         prometheus.Counter
	TickDurations *prometheus.HistogramVec
	Connections   *prometheus.GaugeVec

	EnergyDelivered    prometheus.Counter
	EnergyDropped      prometheus.Counter
	Divergences        prometheus.Counter
	PictureCorruptions prometheus.Counter
	TextMessages       prometheus.Counter
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_total",
		Help: "Total number of completed simulation ticks.",
	}), "sim_ticks_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Wall-clock duration of simulation ticks, labeled by phase (total for the whole tick).",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"phase"}), "sim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	conns, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_connections",
		Help: "Current number of connections, labeled by asserting authority.",
	}, []string{"authority"}), "sim_connections")
	if err != nil {
		return nil, err
	}

	delivered, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_energy_delivered_total",
		Help: "Total energy delivered into port pools.",
	}), "sim_energy_delivered_total")
	if err != nil {
		return nil, err
	}
	dropped, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_energy_dropped_total",
		Help: "Total energy lost to throughput caps, dead ends and diverged redistribution.",
	}), "sim_energy_dropped_total")
	if err != nil {
		return nil, err
	}
	divergences, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_redistribution_divergences_total",
		Help: "Number of energy offers whose redistribution exceeded the hop or visit limits.",
	}), "sim_redistribution_divergences_total")
	if err != nil {
		return nil, err
	}
	corruptions, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_picture_corruptions_total",
		Help: "Number of picture exchanges replaced with noise.",
	}), "sim_picture_corruptions_total")
	if err != nil {
		return nil, err
	}
	messages, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_text_messages_total",
		Help: "Number of text messages moved across connections.",
	}), "sim_text_messages_total")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:           gatherer,
		Ticks:              ticks,
		TickDurations:      durations,
		Connections:        conns,
		EnergyDelivered:    delivered,
		EnergyDropped:      dropped,
		Divergences:        divergences,
		PictureCorruptions: corruptions,
		TextMessages:       messages,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObservePhase records the duration of one tick phase.
func (c *SimCollector) ObservePhase(phase string, d time.Duration) {
	if c == nil || c.TickDurations == nil {
		return
	}
	c.TickDurations.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveTick counts a completed tick and records its total duration.
func (c *SimCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	if c.Ticks != nil {
		c.Ticks.Inc()
	}
	if c.TickDurations != nil {
		c.TickDurations.WithLabelValues("total").Observe(d.Seconds())
	}
}

// SetConnectionCount satisfies the registry metrics recorder.
func (c *SimCollector) SetConnectionCount(authority string, count int) {
	if c == nil || c.Connections == nil {
		return
	}
	c.Connections.WithLabelValues(authority).Set(float64(count))
}

func (c *SimCollector) AddEnergyDelivered(amount float64) {
	if c == nil || c.EnergyDelivered == nil || amount <= 0 {
		return
	}
	c.EnergyDelivered.Add(amount)
}

func (c *SimCollector) AddEnergyDropped(amount float64) {
	if c == nil || c.EnergyDropped == nil || amount <= 0 {
		return
	}
	c.EnergyDropped.Add(amount)
}

func (c *SimCollector) IncRedistributionDivergence() {
	if c == nil || c.Divergences == nil {
		return
	}
	c.Divergences.Inc()
}

func (c *SimCollector) IncPictureCorruption() {
	if c == nil || c.PictureCorruptions == nil {
		return
	}
	c.PictureCorruptions.Inc()
}

func (c *SimCollector) AddTextMessages(n int) {
	if c == nil || c.TextMessages == nil || n <= 0 {
		return
	}
	c.TextMessages.Add(float64(n))
}
