package systems

import (
	"context"
	"errors"
	"testing"

	"github.com/jiri/constellation/core"
)

// routeTable is a redistributor whose routes are fixed per ingress port.
type routeTable map[core.NodeID][]core.Route

func (r routeTable) RedistributeEnergy(ingress core.NodeID) []core.Route { return r[ingress] }

// fakeRouter maps ports to the redistributor that owns them.
type fakeRouter map[core.NodeID]core.Redistributor

func (f fakeRouter) Redistributor(port core.NodeID) (core.Redistributor, bool) {
	r, ok := f[port]
	return r, ok
}

func TestEnergy_PairwiseSwapIsCappedByThroughput(t *testing.T) {
	tests := []struct {
		name           string
		offerA, offerB float64
		throughput     float64
		wantA, wantB   float64
	}{
		{name: "unlimited", offerA: 10, offerB: 3, throughput: 1e9, wantA: 3, wantB: 10},
		{name: "capped", offerA: 10, offerB: 3, throughput: 4, wantA: 3, wantB: 4},
		{name: "one sided", offerA: 5, offerB: 0, throughput: 2, wantA: 0, wantB: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &testRecorder{}
			e := NewEnergy(nil, WithEnergyRecorder(rec))
			ports := newPorts(2)

			e.Offer(ports[0], tt.offerA)
			e.Offer(ports[1], tt.offerB)
			if err := e.Update(context.Background(), []core.Connection{conn(ports[0], ports[1], core.EnergyOnly(tt.throughput))}); err != nil {
				t.Fatalf("Update error: %v", err)
			}

			if got := e.Pool(ports[0]); !approx(got, tt.wantA) {
				t.Fatalf("pool(a) = %v, want %v", got, tt.wantA)
			}
			if got := e.Pool(ports[1]); !approx(got, tt.wantB) {
				t.Fatalf("pool(b) = %v, want %v", got, tt.wantB)
			}
			if !approx(rec.delivered+rec.dropped, tt.offerA+tt.offerB) {
				t.Fatalf("delivered %v + dropped %v != offered %v", rec.delivered, rec.dropped, tt.offerA+tt.offerB)
			}
		})
	}
}

func TestEnergy_RequestDrawsFromPool(t *testing.T) {
	e := NewEnergy(nil)
	ports := newPorts(2)
	e.Offer(ports[0], 6)
	_ = e.Update(context.Background(), []core.Connection{conn(ports[0], ports[1], unlimitedEnergy())})

	if got := e.Request(ports[1], 4); got != 4 {
		t.Fatalf("first Request = %v, want 4", got)
	}
	if got := e.Request(ports[1], 4); got != 2 {
		t.Fatalf("second Request = %v, want the remaining 2", got)
	}
	if got := e.Request(ports[1], 4); got != 0 {
		t.Fatalf("third Request = %v, want 0", got)
	}
}

func TestEnergy_PoolsLastOneTick(t *testing.T) {
	e := NewEnergy(nil)
	ports := newPorts(2)
	c := []core.Connection{conn(ports[0], ports[1], unlimitedEnergy())}

	e.Offer(ports[0], 6)
	_ = e.Update(context.Background(), c)
	_ = e.Update(context.Background(), c)

	if got := e.Pool(ports[1]); got != 0 {
		t.Fatalf("pool after an idle tick = %v, want 0", got)
	}
}

func TestEnergy_SplitterSharesEvenly(t *testing.T) {
	// gen - [in splitter a,b] - lamp1, lamp2
	p := newPorts(6)
	gen, in, outA, outB, lamp1, lamp2 := p[0], p[1], p[2], p[3], p[4], p[5]
	splitter := routeTable{in: {{Weight: 0.5, Target: outA}, {Weight: 0.5, Target: outB}}}
	router := fakeRouter{in: splitter, outA: splitter, outB: splitter}

	e := NewEnergy(router)
	e.Offer(gen, 10)
	err := e.Update(context.Background(), []core.Connection{
		conn(gen, in, unlimitedEnergy()),
		conn(outA, lamp1, unlimitedEnergy()),
		conn(outB, lamp2, unlimitedEnergy()),
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	for _, lamp := range []core.NodeID{lamp1, lamp2} {
		if got := e.Pool(lamp); !approx(got, 5) {
			t.Fatalf("pool(%s) = %v, want 5", lamp, got)
		}
	}
	if got := e.TotalPooled(); !approx(got, 10) {
		t.Fatalf("TotalPooled = %v, want 10", got)
	}
}

func TestEnergy_SinkKeepsEnergyWhenNoRoutes(t *testing.T) {
	p := newPorts(2)
	gen, sink := p[0], p[1]
	router := fakeRouter{sink: routeTable{}}

	e := NewEnergy(router)
	e.Offer(gen, 3)
	_ = e.Update(context.Background(), []core.Connection{conn(gen, sink, unlimitedEnergy())})

	if got := e.Pool(sink); !approx(got, 3) {
		t.Fatalf("pool(sink) = %v, want 3", got)
	}
}

func TestEnergy_CycleDivergesWithoutBlockingOthers(t *testing.T) {
	// src feeds a1; a routes a1->a2 and a3->a2; b routes b1->b2; a2-b1 and
	// b2-a3 close the loop.
	p := newPorts(8)
	src, a1, a2, a3, b1, b2, x, y := p[0], p[1], p[2], p[3], p[4], p[5], p[6], p[7]
	a := routeTable{a1: {{Weight: 1, Target: a2}}, a3: {{Weight: 1, Target: a2}}}
	b := routeTable{b1: {{Weight: 1, Target: b2}}}
	router := fakeRouter{a1: a, a2: a, a3: a, b1: b, b2: b}

	rec := &testRecorder{}
	e := NewEnergy(router, WithMaxHops(8), WithEnergyRecorder(rec))
	e.Offer(src, 10)
	e.Offer(x, 2)

	err := e.Update(context.Background(), []core.Connection{
		conn(src, a1, unlimitedEnergy()),
		conn(a2, b1, unlimitedEnergy()),
		conn(b2, a3, unlimitedEnergy()),
		conn(x, y, unlimitedEnergy()),
	})
	if !errors.Is(err, ErrRedistributionDiverged) {
		t.Fatalf("Update err = %v, want ErrRedistributionDiverged", err)
	}
	var div *DivergenceError
	if !errors.As(err, &div) {
		t.Fatalf("Update err = %v, want a *DivergenceError", err)
	}
	if div.Source != src || !approx(div.Undelivered, 10) || div.Hops != 8 {
		t.Fatalf("divergence = %+v, want source %s, 10 undelivered after 8 hops", div, src)
	}
	if got := e.Pool(y); !approx(got, 2) {
		t.Fatalf("unrelated pair pool = %v, want 2", got)
	}
	if rec.divergences != 1 {
		t.Fatalf("divergences = %d, want 1", rec.divergences)
	}
}

func TestEnergy_VisitBudgetStopsFanOut(t *testing.T) {
	// Every hop doubles the packet count, so the visit budget trips long
	// before the hop limit.
	p := newPorts(4)
	src, in, out, back := p[0], p[1], p[2], p[3]
	hub := routeTable{
		in:   {{Weight: 0.5, Target: out}, {Weight: 0.5, Target: out}},
		back: {{Weight: 0.5, Target: out}, {Weight: 0.5, Target: out}},
	}
	router := fakeRouter{in: hub, out: hub, back: hub}

	e := NewEnergy(router, WithVisitBudget(50))
	e.Offer(src, 1)
	err := e.Update(context.Background(), []core.Connection{
		conn(src, in, unlimitedEnergy()),
		conn(out, back, unlimitedEnergy()),
	})
	if !errors.Is(err, ErrRedistributionDiverged) {
		t.Fatalf("Update err = %v, want ErrRedistributionDiverged", err)
	}
}

func TestEnergy_ForgetDropsOffers(t *testing.T) {
	e := NewEnergy(nil)
	ports := newPorts(2)
	e.Offer(ports[0], 5)
	e.Forget(ports[0])
	_ = e.Update(context.Background(), []core.Connection{conn(ports[0], ports[1], unlimitedEnergy())})
	if got := e.Pool(ports[1]); got != 0 {
		t.Fatalf("pool = %v, want 0 after the offering port was forgotten", got)
	}
}
