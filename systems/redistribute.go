package systems

import (
	"errors"
	"fmt"
	"math"

	"github.com/jiri/constellation/core"
)

// ErrRedistributionDiverged is returned when energy keeps travelling past
// the hop or visit limits, typically because redistributors form a cycle.
var ErrRedistributionDiverged = errors.New("energy redistribution diverged")

// DivergenceError reports which offer diverged and how much energy was
// still in flight when flooding stopped.
type DivergenceError struct {
	Source      core.NodeID
	Undelivered float64
	Hops        int
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("%s: source %s, %.6g undelivered after %d hops",
		ErrRedistributionDiverged, e.Source, e.Undelivered, e.Hops)
}

func (e *DivergenceError) Unwrap() error { return ErrRedistributionDiverged }

type packet struct {
	energy float64
	port   core.NodeID
	hops   int
}

// floodLocked pushes every outstanding offer through the network. Errors
// from individual sources are joined; the other sources are still
// delivered.
func (e *Energy) floodLocked(links map[core.NodeID]core.Connection) error {
	var errs []error
	for _, src := range e.offerOrder {
		amount := e.offers[src]
		if amount <= 0 {
			continue
		}
		if err := e.redistributeLocked(src, amount, links); err != nil {
			errs = append(errs, err)
		}
		e.offers[src] = 0
	}
	return errors.Join(errs...)
}

// redistributeLocked follows one offer breadth first. Each hop crosses the
// energy connection attached to the packet's port, is capped by that
// connection's throughput and is either kept by the far port or split
// across the routes its component returns.
func (e *Energy) redistributeLocked(src core.NodeID, amount float64, links map[core.NodeID]core.Connection) error {
	queue := []packet{{energy: amount, port: src}}
	visits := 0

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		visits++

		if p.hops >= e.maxHops || visits > e.visitBudget {
			undelivered := p.energy
			for _, rest := range queue {
				undelivered += rest.energy
			}
			e.rec.IncRedistributionDivergence()
			e.rec.AddEnergyDropped(undelivered)
			return &DivergenceError{Source: src, Undelivered: undelivered, Hops: p.hops}
		}

		conn, ok := links[p.port]
		if !ok {
			e.rec.AddEnergyDropped(p.energy)
			continue
		}
		next, _ := conn.Other(p.port)

		energy := math.Min(p.energy, conn.Capabilities.Energy.Throughput)
		if clipped := p.energy - energy; clipped > 0 {
			e.rec.AddEnergyDropped(clipped)
		}

		var routes []core.Route
		if e.router != nil {
			if r, ok := e.router.Redistributor(next); ok {
				routes = r.RedistributeEnergy(next)
			}
		}
		if len(routes) == 0 {
			e.pools[next] += energy
			e.rec.AddEnergyDelivered(energy)
			continue
		}
		for _, r := range routes {
			if r.Weight <= 0 || r.Target.IsZero() {
				continue
			}
			queue = append(queue, packet{energy: r.Weight * energy, port: r.Target, hops: p.hops + 1})
		}
	}
	return nil
}
