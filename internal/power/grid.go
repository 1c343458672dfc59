package power

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/gridsim/internal/world"
)

var (
	ErrNoTile    = errors.New("no tile at position")
	ErrOccupied  = errors.New("tile already has a conductor")
	ErrNotFound  = errors.New("no conductor at position")
	ErrInvariant = errors.New("power grid invariant violated")
)

// Config holds the settlement constants of the grid.
type Config struct {
	RevenueFactor     uint64 // multiplier applied to income before rollover
	CalibrationDeltaT uint64 // deltaT that counts as one unit of accumulation
	RevenueShift      uint   // income is shifted down by this many bits when booked
	RolloverThreshold uint64 // maxIncome above this books the income
}

// DefaultConfig returns the standard settlement constants.
func DefaultConfig() Config {
	return Config{
		RevenueFactor:     1,
		CalibrationDeltaT: 1024,
		RevenueShift:      11,
		RolloverThreshold: 2000 << 11,
	}
}

// Grid is the world-owned power simulation context. It indexes every node
// by tile, keeps the producer and consumer registries in registration order,
// and owns the network arena. Networks are freed only through setNet.
//
// A Grid is not safe for concurrent use; readers outside the simulation
// goroutine use Snapshot.
type Grid struct {
	cfg     Config
	terrain Terrain
	sites   Sites
	ledger  Ledger

	nodes   map[world.Koord3D]*Node
	supply  []*Node
	demand  []*Node
	nets    map[NetID]*Net
	members map[NetID]int
	lastNet NetID

	tick   uint64
	shares map[City]allocation
}

// NewGrid creates an empty grid over terrain. sites and ledger may be nil.
func NewGrid(cfg Config, terrain Terrain, sites Sites, ledger Ledger) *Grid {
	if cfg.CalibrationDeltaT == 0 {
		cfg.CalibrationDeltaT = DefaultConfig().CalibrationDeltaT
	}
	return &Grid{
		cfg:     cfg,
		terrain: terrain,
		sites:   sites,
		ledger:  ledger,
		nodes:   make(map[world.Koord3D]*Node),
		nets:    make(map[NetID]*Net),
		members: make(map[NetID]int),
		shares:  make(map[City]allocation),
	}
}

// Add builds a node at pos, connects it to matching neighbours and binds
// producers and consumers to an adjacent factory or city.
func (g *Grid) Add(pos world.Koord3D, kind Kind, owner world.PlayerID) (*Node, error) {
	n, err := g.Load(pos, kind, owner)
	if err != nil {
		return nil, err
	}
	g.attach(n)
	g.bind(n)
	return n, nil
}

// Load indexes a node without connecting it. Call FinishLoad once all nodes
// of a saved world are loaded.
func (g *Grid) Load(pos world.Koord3D, kind Kind, owner world.PlayerID) (*Node, error) {
	if g.terrain.Lookup(pos) == nil {
		return nil, fmt.Errorf("add %s at %s: %w", kind, pos, ErrNoTile)
	}
	if _, ok := g.nodes[pos]; ok {
		return nil, fmt.Errorf("add %s at %s: %w", kind, pos, ErrOccupied)
	}
	n := newNode(g, pos, kind, owner)
	g.nodes[pos] = n
	switch kind {
	case KindSupply:
		g.supply = append(g.supply, n)
	case KindDemand:
		g.demand = append(g.demand, n)
	}
	return n, nil
}

// Remove tears down the node at pos. If the node joined two or more
// branches, the remaining branches are re-partitioned so that every
// connected component ends up with its own network.
func (g *Grid) Remove(pos world.Koord3D) error {
	n, ok := g.nodes[pos]
	if !ok {
		return fmt.Errorf("remove at %s: %w", pos, ErrNotFound)
	}
	g.unbind(n)
	neighbours := g.detach(n)
	delete(g.nodes, pos)
	switch n.kind {
	case KindSupply:
		g.supply = removeNode(g.supply, n)
	case KindDemand:
		g.demand = removeNode(g.demand, n)
	}
	g.split(neighbours)
	return nil
}

// Refresh recomputes the connections of the node at pos, for use after
// the terrain around it changed.
func (g *Grid) Refresh(pos world.Koord3D) error {
	n, ok := g.nodes[pos]
	if !ok {
		return fmt.Errorf("refresh at %s: %w", pos, ErrNotFound)
	}
	g.split(g.detach(n))
	g.attach(n)
	return nil
}

// FinishLoad rebuilds every connection and network from scratch and binds
// producers and consumers. Network identity is derived, never persisted.
func (g *Grid) FinishLoad() {
	all := g.sortedNodes()
	for _, n := range all {
		n.links = [4]*Node{}
		g.setNet(n, 0)
	}
	for _, n := range all {
		g.attach(n)
	}
	// Bind in registration order so cities list their substations in the
	// order they were loaded.
	g.Rebind()
	slog.Debug("power grid reconnected", "nodes", len(all), "nets", len(g.nets))
}

// At returns the node on a tile, or nil.
func (g *Grid) At(pos world.Koord3D) *Node { return g.nodes[pos] }

// Net returns a network by id, or nil.
func (g *Grid) Net(id NetID) *Net { return g.nets[id] }

// Nets returns the live networks ordered by id.
func (g *Grid) Nets() []*Net {
	out := make([]*Net, 0, len(g.nets))
	for _, net := range g.nets {
		out = append(out, net)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Nodes returns every node ordered by position.
func (g *Grid) Nodes() []*Node { return g.sortedNodes() }

// NetCount returns the number of live networks.
func (g *Grid) NetCount() int { return len(g.nets) }

// NodeCount returns the number of nodes of all kinds.
func (g *Grid) NodeCount() int { return len(g.nodes) }

// Members returns the number of nodes in a network.
func (g *Grid) Members(id NetID) int { return g.members[id] }

// SupplyNodes returns the producer registry in registration order.
func (g *Grid) SupplyNodes() []*Node { return append([]*Node(nil), g.supply...) }

// DemandNodes returns the consumer registry in registration order.
func (g *Grid) DemandNodes() []*Node { return append([]*Node(nil), g.demand...) }

// Tick returns the number of steps run.
func (g *Grid) Tick() uint64 { return g.tick }

// attach discovers the node's neighbours and gives it a network: the first
// neighbour network found, into which every other neighbour network is then
// folded, or a new network if no neighbour has one.
func (g *Grid) attach(n *Node) {
	g.discover(n)

	var target NetID
	for _, nb := range n.links {
		if nb != nil && nb.net != 0 {
			target = nb.net
			break
		}
	}
	if target == 0 {
		target = g.newNet()
	}
	g.setNet(n, target)

	for _, nb := range n.links {
		if nb != nil && nb.net != target {
			moved := g.propagate(nb, target)
			slog.Debug("powernets merged", "into", target, "moved", moved)
		}
	}
}

// discover links n to every adjacent conductor it can electrically reach.
func (g *Grid) discover(n *Node) {
	tile := g.terrain.Lookup(n.pos)
	if tile == nil {
		return
	}
	for i, d := range world.Directions {
		nt := g.terrain.Neighbour(tile, d)
		if nt == nil {
			continue
		}
		other := g.nodes[nt.Pos]
		if other == nil || other == n || !connectable(n, other) {
			continue
		}
		n.links[i] = other
		other.links[opposite(i)] = n
	}
}

// detach unlinks n from its neighbours and drops its network membership.
// Returns the former neighbours in direction order.
func (g *Grid) detach(n *Node) []*Node {
	var neighbours []*Node
	for i, nb := range n.links {
		if nb == nil {
			continue
		}
		nb.links[opposite(i)] = nil
		n.links[i] = nil
		neighbours = append(neighbours, nb)
	}
	g.setNet(n, 0)
	return neighbours
}

// split gives each branch left behind by a removal a fresh network. Branches
// that are still connected converge on the first fresh network to reach them.
func (g *Grid) split(neighbours []*Node) {
	if len(neighbours) < 2 {
		return
	}
	fresh := mapset.New[NetID]()
	for _, nb := range neighbours {
		if fresh.Has(nb.net) {
			continue
		}
		id := g.newNet()
		fresh.Put(id)
		g.propagate(nb, id)
	}
	if fresh.Size() > 1 {
		slog.Debug("powernet split", "parts", fresh.Size())
	}
}

// propagate moves every node reachable from seed onto target with a
// breadth-first walk. Nodes already on target are not entered, which bounds
// the walk to the part of the graph that actually changes.
func (g *Grid) propagate(seed *Node, target NetID) int {
	visited := mapset.New[*Node]()
	queue := []*Node{seed}
	moved := 0

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited.Has(current) {
			continue
		}
		visited.Put(current)

		if current.net != target {
			g.setNet(current, target)
			moved++
		}

		for _, nb := range current.links {
			if nb != nil && nb.net != target && !visited.Has(nb) {
				queue = append(queue, nb)
			}
		}
	}
	return moved
}

func (g *Grid) newNet() NetID {
	g.lastNet++
	id := g.lastNet
	g.nets[id] = &Net{id: id}
	g.members[id] = 0
	slog.Debug("powernet created", "net", id)
	return id
}

// setNet is the only place network membership changes. A network whose
// last member leaves is freed here.
func (g *Grid) setNet(n *Node, id NetID) {
	if n.net == id {
		return
	}
	if old := n.net; old != 0 {
		g.members[old]--
		if g.members[old] <= 0 {
			delete(g.members, old)
			delete(g.nets, old)
			slog.Debug("powernet freed", "net", old)
		}
	}
	n.net = id
	if id != 0 {
		g.members[id]++
	}
}

// sortedNodes returns all nodes ordered by position for deterministic scans.
func (g *Grid) sortedNodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].pos, out[j].pos
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	return out
}

func removeNode(list []*Node, n *Node) []*Node {
	for i, m := range list {
		if m == n {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
