package systems

import (
	"math"
	"sync"

	"github.com/jiri/constellation/core"
)

// testRecorder accumulates every counter so tests can assert on them.
type testRecorder struct {
	mu          sync.Mutex
	delivered   float64
	dropped     float64
	divergences int
	corruptions int
	messages    int
}

func (r *testRecorder) AddEnergyDelivered(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered += v
}

func (r *testRecorder) AddEnergyDropped(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped += v
}

func (r *testRecorder) IncRedistributionDivergence() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.divergences++
}

func (r *testRecorder) IncPictureCorruption() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.corruptions++
}

func (r *testRecorder) AddTextMessages(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages += n
}

func newPorts(n int) []core.NodeID {
	g := core.NewGraph()
	out := make([]core.NodeID, n)
	for i := range out {
		out[i] = g.AddPort("c", "p", core.Unlimited(), nil)
	}
	return out
}

func conn(a, b core.NodeID, caps core.Capabilities) core.Connection {
	return core.Connection{From: a, To: b, Capabilities: caps, Author: core.AuthorityManual}
}

func unlimitedEnergy() core.Capabilities { return core.EnergyOnly(math.Inf(1)) }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
