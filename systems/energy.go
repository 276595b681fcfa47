package systems

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/jiri/constellation/core"
)

// Default redistribution limits.
const (
	DefaultMaxHops     = 64
	DefaultVisitBudget = 100000
)

// Router finds the energy redistributor that owns a port. The Universe
// satisfies it.
type Router interface {
	Redistributor(port core.NodeID) (core.Redistributor, bool)
}

// Energy moves offered energy into the pools of the ports that receive it.
// Pools only live for one tick: whatever is not requested before the next
// Update is discarded.
type Energy struct {
	mu sync.Mutex

	router      Router
	offers      map[core.NodeID]float64
	offerOrder  []core.NodeID
	pools       map[core.NodeID]float64
	maxHops     int
	visitBudget int
	rec         Recorder
}

// EnergyOption configures the energy system.
type EnergyOption func(*Energy)

// WithMaxHops bounds how many redistributor hops a single packet may take.
func WithMaxHops(n int) EnergyOption {
	return func(e *Energy) {
		if n > 0 {
			e.maxHops = n
		}
	}
}

// WithVisitBudget bounds the total number of hops processed for one source.
func WithVisitBudget(n int) EnergyOption {
	return func(e *Energy) {
		if n > 0 {
			e.visitBudget = n
		}
	}
}

// WithEnergyRecorder installs a metrics recorder.
func WithEnergyRecorder(rec Recorder) EnergyOption {
	return func(e *Energy) {
		if rec != nil {
			e.rec = rec
		}
	}
}

// NewEnergy creates the energy system. A nil router treats every port as a
// plain endpoint.
func NewEnergy(router Router, opts ...EnergyOption) *Energy {
	e := &Energy{
		router:      router,
		offers:      make(map[core.NodeID]float64),
		pools:       make(map[core.NodeID]float64),
		maxHops:     DefaultMaxHops,
		visitBudget: DefaultVisitBudget,
		rec:         nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Energy) Name() string { return "energy" }

// Offer adds amount to what the port pushes out on the next Update.
func (e *Energy) Offer(port core.NodeID, amount float64) {
	if amount <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.offers[port]; !ok {
		e.offerOrder = append(e.offerOrder, port)
	}
	e.offers[port] += amount
}

// Request draws up to amount from the port's pool and returns what was
// available.
func (e *Energy) Request(port core.NodeID, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	got := math.Min(e.pools[port], amount)
	if got <= 0 {
		return 0
	}
	e.pools[port] -= got
	return got
}

// Pool returns the energy currently held by port.
func (e *Energy) Pool(port core.NodeID) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pools[port]
}

// Forget drops the buffers of a destroyed port.
func (e *Energy) Forget(port core.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pools, port)
	if _, ok := e.offers[port]; ok {
		delete(e.offers, port)
		for i, p := range e.offerOrder {
			if p == port {
				e.offerOrder = append(e.offerOrder[:i], e.offerOrder[i+1:]...)
				break
			}
		}
	}
}

// Update discards last tick's pools, swaps energy pairwise across plain
// connections, floods the remaining offers through redistributors and
// clears every offer.
func (e *Energy) Update(_ context.Context, conns []core.Connection) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pools = make(map[core.NodeID]float64, len(e.pools))

	links := make(map[core.NodeID]core.Connection)
	exchange(conns, energyEnabled, func(c core.Connection) {
		if _, ok := links[c.From]; !ok {
			links[c.From] = c
		}
		if _, ok := links[c.To]; !ok {
			links[c.To] = c
		}
		if e.routes(c.From) || e.routes(c.To) {
			return
		}
		e.swapLocked(c)
	})

	err := e.floodLocked(links)

	e.offers = make(map[core.NodeID]float64, len(e.offers))
	e.offerOrder = e.offerOrder[:0]
	return err
}

// swapLocked moves each side's offer into the other side's pool, capped by
// the connection throughput.
func (e *Energy) swapLocked(c core.Connection) {
	t := c.Capabilities.Energy.Throughput
	a, b := e.offers[c.From], e.offers[c.To]

	toA, toB := math.Min(t, b), math.Min(t, a)
	e.pools[c.From] += toA
	e.pools[c.To] += toB
	e.offers[c.From] = 0
	e.offers[c.To] = 0

	e.rec.AddEnergyDelivered(toA + toB)
	if lost := (a - toB) + (b - toA); lost > 0 {
		e.rec.AddEnergyDropped(lost)
	}
}

func (e *Energy) routes(port core.NodeID) bool {
	if e.router == nil {
		return false
	}
	_, ok := e.router.Redistributor(port)
	return ok
}

// TotalPooled returns the energy held across every pool.
func (e *Energy) TotalPooled() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	values := make([]float64, 0, len(e.pools))
	for _, v := range e.pools {
		values = append(values, v)
	}
	return floats.Sum(values)
}
