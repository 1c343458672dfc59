package power

import (
	"github.com/talgya/gridsim/internal/finance"
	"github.com/talgya/gridsim/internal/world"
)

// Terrain is the tile grid conductors are laid on.
type Terrain interface {
	Lookup(pos world.Koord3D) *world.Tile
	Neighbour(t *world.Tile, d world.Ribi) *world.Tile
}

// Sites locates the factories and cities a transformer can attach to.
// Both methods return a nil interface when nothing is there.
type Sites interface {
	FactoryAt(k world.Koord) Factory
	CityAt(k world.Koord) City
}

// Consumer is anything that draws power and carries unmet demand forward.
type Consumer interface {
	PowerDemand() uint64
	// Received is the power delivered so far this tick.
	Received() uint64
	AddPower(amount uint64)
	AddPowerDemand(amount uint64)
}

// Factory is an industry that either generates or consumes electricity.
type Factory interface {
	Consumer
	PowerOutput() uint64
	IsPowerProducer() bool
	// City returns the city the factory belongs to, or nil.
	City() City
}

// City is a municipal consumer: residential demand plus its own factories.
type City interface {
	Consumer
	Factories() []Factory
	// Substations lists the demand nodes serving the city in registration order.
	Substations() []*Node
	AddSubstation(n *Node)
	RemoveSubstation(n *Node)
}

// Ledger receives revenue at settlement rollover.
type Ledger interface {
	BookRevenue(owner world.PlayerID, amount int64, pos world.Koord, category finance.Category)
}

// Kind tags what a node does besides conducting.
type Kind uint8

const (
	KindConductor Kind = iota // Plain powerline
	KindSupply                // Feeds a power plant's output into the net
	KindDemand                // Draws power for a factory or city
)

func (k Kind) String() string {
	switch k {
	case KindConductor:
		return "conductor"
	case KindSupply:
		return "supply"
	case KindDemand:
		return "demand"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for _, k := range []Kind{KindConductor, KindSupply, KindDemand} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Node is a single tile-resident electrical connector.
type Node struct {
	grid  *Grid
	pos   world.Koord3D
	owner world.PlayerID
	kind  Kind
	net   NetID
	links [4]*Node // indexed like world.Directions

	supply *supplyState // set for KindSupply
	demand *demandState // set for KindDemand

	powered bool
}

type supplyState struct {
	factory        Factory
	supplyThisTick uint64
}

type demandState struct {
	factory Factory
	city    City

	lastPowerDemand uint64
	powerLoad       uint64
	loadProportion  uint64 // Q16 share of municipal demand claimed last tick
	short           bool   // powerLoad fell below the request it answered

	income    uint64
	maxIncome uint64
}

func newNode(g *Grid, pos world.Koord3D, kind Kind, owner world.PlayerID) *Node {
	n := &Node{grid: g, pos: pos, kind: kind, owner: owner}
	switch kind {
	case KindSupply:
		n.supply = &supplyState{}
	case KindDemand:
		n.demand = &demandState{maxIncome: 1, loadProportion: fullScale}
	}
	return n
}

func (n *Node) Pos() world.Koord3D    { return n.pos }
func (n *Node) Owner() world.PlayerID { return n.owner }
func (n *Node) Kind() Kind            { return n.kind }

// NetID returns the network the node belongs to.
func (n *Node) NetID() NetID { return n.net }

// Net returns the node's network.
func (n *Node) Net() *Net { return n.grid.nets[n.net] }

// Powered reports whether power flowed through the node last tick.
func (n *Node) Powered() bool { return n.powered }

// Ribi returns the directions the node is electrically connected in.
func (n *Node) Ribi() world.Ribi {
	var r world.Ribi
	for i, l := range n.links {
		if l != nil {
			r |= world.Directions[i]
		}
	}
	return r
}

// Neighbours returns the directly connected nodes in direction order.
func (n *Node) Neighbours() []*Node {
	out := make([]*Node, 0, 4)
	for _, l := range n.links {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

// Factory returns the bound factory, if any.
func (n *Node) Factory() Factory {
	switch {
	case n.supply != nil:
		return n.supply.factory
	case n.demand != nil:
		return n.demand.factory
	}
	return nil
}

// City returns the bound city of a demand node, if any.
func (n *Node) City() City {
	if n.demand != nil {
		return n.demand.city
	}
	return nil
}

// SupplyThisTick is the output a supply node pulled from its factory this tick.
func (n *Node) SupplyThisTick() uint64 {
	if n.supply == nil {
		return 0
	}
	return n.supply.supplyThisTick
}

// LastPowerDemand is the demand a demand node submitted on its last step.
func (n *Node) LastPowerDemand() uint64 {
	if n.demand == nil {
		return 0
	}
	return n.demand.lastPowerDemand
}

// PowerLoad is the load a demand node was served on its last step.
func (n *Node) PowerLoad() uint64 {
	if n.demand == nil {
		return 0
	}
	return n.demand.powerLoad
}

// LoadProportion is the Q16 fraction of municipal demand claimed last step.
func (n *Node) LoadProportion() uint64 {
	if n.demand == nil {
		return 0
	}
	return n.demand.loadProportion
}

// Income returns the revenue accumulators of a demand node.
func (n *Node) Income() (income, maxIncome uint64) {
	if n.demand == nil {
		return 0, 0
	}
	return n.demand.income, n.demand.maxIncome
}

// Idle reports whether a producer or consumer has nothing bound and may be
// removed by the world's sync pass. Conductors are never idle.
func (n *Node) Idle() bool {
	switch n.kind {
	case KindSupply:
		return n.supply.factory == nil
	case KindDemand:
		return n.demand.factory == nil && n.demand.city == nil
	}
	return false
}

// Step runs the node's share of a simulation tick. Conductors do nothing;
// a zero deltaT never changes any accumulator.
func (n *Node) Step(deltaT uint32) {
	if deltaT == 0 {
		return
	}
	switch n.kind {
	case KindSupply:
		n.stepSupply()
	case KindDemand:
		n.stepDemand(deltaT)
	}
}

func connectable(a, b *Node) bool { return CanConnect(a.owner, b.owner) }

// CanConnect reports whether lines of two owners join. Lines of different
// players stay apart unless one of them belongs to the public service.
func CanConnect(a, b world.PlayerID) bool {
	return a == b || a == world.PublicPlayer || b == world.PublicPlayer
}

func directionIndex(d world.Ribi) int {
	for i, dir := range world.Directions {
		if dir == d {
			return i
		}
	}
	return -1
}

// opposite maps a link index to the index of the reverse direction.
func opposite(i int) int { return (i + 2) % 4 }
