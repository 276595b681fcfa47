package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mlange-42/ark/ecs"
)

// NodeKind tags the two variants a graph node can take.
type NodeKind uint8

const (
	// KindPort is a component endpoint. A port links to at most one node.
	KindPort NodeKind = iota + 1
	// KindCable is an anonymous pass-through segment with two ends.
	KindCable
)

func (k NodeKind) String() string {
	switch k {
	case KindPort:
		return "port"
	case KindCable:
		return "cable"
	default:
		return "unknown"
	}
}

// maxDegree returns how many neighbours a node of kind k may hold.
func (k NodeKind) maxDegree() int {
	if k == KindCable {
		return 2
	}
	return 1
}

// NodeID is a stable handle to a node in a Graph. Handles are generational:
// once a node is removed its handle stays dead even if the slot is reused.
// The zero NodeID refers to no node.
type NodeID struct {
	entity ecs.Entity
}

// IsZero reports whether id refers to no node.
func (id NodeID) IsZero() bool { return id.entity.IsZero() }

func (id NodeID) String() string {
	if id.IsZero() {
		return "node(-)"
	}
	return fmt.Sprintf("node(%d)", id.entity.ID())
}

// Radio tags a port as a wireless antenna.
type Radio struct {
	Radius    float64 `json:"radius" yaml:"radius"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
}

// Path is the result of folding a complete chain between two ports.
type Path struct {
	From         NodeID
	To           NodeID
	Capabilities Capabilities
}

// node is the ECS component stored for every graph node.
type node struct {
	kind  NodeKind
	caps  Capabilities
	links [2]NodeID
	owner string
	name  string
	radio *Radio
}

func (n *node) degree() int {
	d := 0
	for _, l := range n.links {
		if !l.IsZero() {
			d++
		}
	}
	return d
}

func (n *node) linkedTo(other NodeID) bool {
	return n.links[0] == other || n.links[1] == other
}

func (n *node) attach(other NodeID) {
	for i := 0; i < n.kind.maxDegree(); i++ {
		if n.links[i].IsZero() {
			n.links[i] = other
			return
		}
	}
	panic(fmt.Sprintf("graph: %s has no free link", n.kind))
}

func (n *node) detach(other NodeID) {
	for i := range n.links {
		if n.links[i] == other {
			n.links[i] = NodeID{}
			return
		}
	}
}

// away returns the neighbour of a cable that is not prev.
func (n *node) away(prev NodeID) NodeID {
	switch prev {
	case n.links[0]:
		return n.links[1]
	case n.links[1]:
		return n.links[0]
	}
	panic(fmt.Sprintf("graph: %s is not a neighbour of this cable", prev))
}

// Graph is the arena of ports and cables. Nodes live in an ark ECS world so
// handles are generational and a removed node can never alias a new one.
//
// Structural misuse (linking a full node, unlinking nodes that are not
// linked, touching a dead handle) is a programming error and panics.
type Graph struct {
	mu sync.RWMutex

	world *ecs.World
	nodes *ecs.Map1[node]
	all   *ecs.Filter1[node]
	live  int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	world := ecs.NewWorld()
	return &Graph{
		world: world,
		nodes: ecs.NewMap1[node](world),
		all:   ecs.NewFilter1[node](world),
	}
}

// AddPort inserts a port owned by the named component.
func (g *Graph) AddPort(owner, name string, caps Capabilities, radio *Radio) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	var r *Radio
	if radio != nil {
		copied := *radio
		r = &copied
	}
	e := g.nodes.NewEntity(&node{kind: KindPort, caps: caps, owner: owner, name: name, radio: r})
	g.live++
	return NodeID{entity: e}
}

// AddCable inserts an unlinked cable.
func (g *Graph) AddCable(caps Capabilities) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	e := g.nodes.NewEntity(&node{kind: KindCable, caps: caps})
	g.live++
	return NodeID{entity: e}
}

// Remove severs every link of the node and deletes it.
func (g *Graph) Remove(id NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.mustGet(id)
	links := n.links
	for _, other := range links {
		if other.IsZero() {
			continue
		}
		g.mustGet(other).detach(id)
	}
	g.world.RemoveEntity(id.entity)
	g.live--
}

// Alive reports whether id refers to a node that still exists.
func (g *Graph) Alive(id NodeID) bool {
	if id.IsZero() {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.world.Alive(id.entity)
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.live
}

// Kind returns the variant of a node.
func (g *Graph) Kind(id NodeID) NodeKind {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mustGet(id).kind
}

// Capabilities returns the capabilities stored on a node.
func (g *Graph) Capabilities(id NodeID) Capabilities {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mustGet(id).caps
}

// Owner returns the owning component and port name of a port node. Cables
// return empty strings.
func (g *Graph) Owner(id NodeID) (component, port string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := g.mustGet(id)
	return n.owner, n.name
}

// Radio returns the antenna tag of a port, if any.
func (g *Graph) Radio(id NodeID) (Radio, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := g.mustGet(id)
	if n.radio == nil {
		return Radio{}, false
	}
	return *n.radio, true
}

// Neighbours returns the nodes linked to id.
func (g *Graph) Neighbours(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := g.mustGet(id)
	out := make([]NodeID, 0, 2)
	for _, l := range n.links {
		if !l.IsZero() {
			out = append(out, l)
		}
	}
	return out
}

// Linked reports whether a and b are neighbours.
func (g *Graph) Linked(a, b NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mustGet(a).linkedTo(b) && g.mustGet(b).linkedTo(a)
}

// Ports returns every live port ordered by creation.
func (g *Graph) Ports() []NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []NodeID
	query := g.all.Query()
	for query.Next() {
		if query.Get().kind == KindPort {
			out = append(out, NodeID{entity: query.Entity()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].entity.ID() < out[j].entity.ID() })
	return out
}

// Connect links a and b. If the new link completes a chain the folded path
// is returned. Linking nodes that are already neighbours is a no-op that
// reports the current resolution.
func (g *Graph) Connect(a, b NodeID) (Path, bool) {
	if a == b {
		panic("graph: cannot link a node to itself")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	na, nb := g.mustGet(a), g.mustGet(b)
	switch {
	case na.linkedTo(b) && nb.linkedTo(a):
		return g.resolveLocked(a)
	case na.degree() >= na.kind.maxDegree():
		panic(fmt.Sprintf("graph: %s %s is fully linked", na.kind, a))
	case nb.degree() >= nb.kind.maxDegree():
		panic(fmt.Sprintf("graph: %s %s is fully linked", nb.kind, b))
	}

	na.attach(b)
	nb.attach(a)
	return g.resolveLocked(a)
}

// Disconnect unlinks a and b and returns the path that was resolved through
// the link before it was removed, so the caller can retract it.
func (g *Graph) Disconnect(a, b NodeID) (Path, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	na, nb := g.mustGet(a), g.mustGet(b)
	if !na.linkedTo(b) || !nb.linkedTo(a) {
		panic(fmt.Sprintf("graph: %s and %s are not linked", a, b))
	}

	prior, ok := g.resolveLocked(a)
	na.detach(b)
	nb.detach(a)
	return prior, ok
}

// Fold computes the combined capabilities of the chain containing node,
// walking away from prev. A zero prev folds every direction the node has.
// Any missing link anywhere on the chain yields no path.
func (g *Graph) Fold(id, prev NodeID) (Capabilities, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.foldLocked(id, prev)
}

// FindPort returns the terminal port reached by walking from node away from
// prev. A port is its own terminal. Calling it on a cable with a zero prev
// panics because the direction is ambiguous.
func (g *Graph) FindPort(id, prev NodeID) (NodeID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := g.mustGet(id)
	if n.kind == KindPort {
		return id, true
	}
	if prev.IsZero() {
		panic("graph: FindPort on a cable needs a direction")
	}
	_, end, ok := g.walkLocked(id, prev)
	return end, ok
}

// Resolve returns the complete path running through id, if any. For a port
// From is the port itself.
func (g *Graph) Resolve(id NodeID) (Path, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.resolveLocked(id)
}

func (g *Graph) resolveLocked(id NodeID) (Path, bool) {
	n := g.mustGet(id)
	switch n.kind {
	case KindPort:
		if n.links[0].IsZero() {
			return Path{}, false
		}
		caps, far, ok := g.walkLocked(n.links[0], id)
		if !ok {
			return Path{}, false
		}
		return Path{From: id, To: far, Capabilities: Combine(n.caps, caps)}, true
	default:
		if n.links[0].IsZero() || n.links[1].IsZero() {
			return Path{}, false
		}
		left, from, ok := g.walkLocked(n.links[0], id)
		if !ok {
			return Path{}, false
		}
		right, to, ok := g.walkLocked(n.links[1], id)
		if !ok {
			return Path{}, false
		}
		return Path{From: from, To: to, Capabilities: CombineAll(left, n.caps, right)}, true
	}
}

func (g *Graph) foldLocked(id, prev NodeID) (Capabilities, bool) {
	n := g.mustGet(id)
	if n.kind == KindPort {
		if !prev.IsZero() {
			return n.caps, true
		}
		if n.links[0].IsZero() {
			return Capabilities{}, false
		}
		caps, _, ok := g.walkLocked(n.links[0], id)
		if !ok {
			return Capabilities{}, false
		}
		return Combine(n.caps, caps), true
	}

	if !prev.IsZero() {
		caps, _, ok := g.walkLocked(id, prev)
		return caps, ok
	}
	path, ok := g.resolveLocked(id)
	return path.Capabilities, ok
}

// walkLocked follows the chain starting at id (entered from prev) until it
// reaches a port, combining every node's capabilities on the way. A walk
// that visits more nodes than exist is a closed cable loop.
func (g *Graph) walkLocked(id, prev NodeID) (Capabilities, NodeID, bool) {
	acc := Unlimited()
	for steps := 0; steps <= g.live; steps++ {
		n := g.mustGet(id)
		acc = Combine(acc, n.caps)
		if n.kind == KindPort {
			return acc, id, true
		}
		next := n.away(prev)
		if next.IsZero() {
			return Capabilities{}, NodeID{}, false
		}
		prev, id = id, next
	}
	return Capabilities{}, NodeID{}, false
}

func (g *Graph) mustGet(id NodeID) *node {
	if id.IsZero() || !g.world.Alive(id.entity) {
		panic(fmt.Sprintf("graph: %s is not a live node", id))
	}
	return g.nodes.Get(id.entity)
}
