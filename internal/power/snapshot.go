package power

import (
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/talgya/gridsim/internal/world"
)

// NetSnapshot is a read-only copy of one network after a tick.
type NetSnapshot struct {
	ID      NetID  `json:"id"`
	Supply  uint64 `json:"supply"`
	Demand  uint64 `json:"demand"`
	Members int    `json:"members"`
}

// NodeSnapshot is a read-only copy of a producer or consumer after a tick.
type NodeSnapshot struct {
	Pos     world.Koord3D  `json:"pos"`
	Kind    string         `json:"kind"`
	Owner   world.PlayerID `json:"owner"`
	Net     NetID          `json:"net"`
	Ribi    string         `json:"ribi"`
	Supply  uint64         `json:"supply,omitempty"`
	Demand  uint64         `json:"demand,omitempty"`
	Load    uint64         `json:"load,omitempty"`
	Powered bool           `json:"powered"`
	Bound   bool           `json:"bound"`
}

// Snapshot is the state renderers and the API read. It shares nothing with
// the live grid and may be handed to other goroutines.
type Snapshot struct {
	Tick       uint64         `json:"tick"`
	Nets       []NetSnapshot  `json:"nets"`
	Supply     []NodeSnapshot `json:"supply"`
	Demand     []NodeSnapshot `json:"demand"`
	Conductors int            `json:"conductors"`
}

// TotalSupply sums the supply of every network.
func (s *Snapshot) TotalSupply() uint64 {
	var total uint64
	for _, n := range s.Nets {
		total = satAdd(total, n.Supply)
	}
	return total
}

// TotalDemand sums the demand of every network.
func (s *Snapshot) TotalDemand() uint64 {
	var total uint64
	for _, n := range s.Nets {
		total = satAdd(total, n.Demand)
	}
	return total
}

// Snapshot copies the grid state.
func (g *Grid) Snapshot() *Snapshot {
	s := &Snapshot{
		Tick: g.tick,
		Nets: make([]NetSnapshot, 0, len(g.nets)),
	}
	for id, net := range g.nets {
		s.Nets = append(s.Nets, NetSnapshot{
			ID:      id,
			Supply:  net.supply,
			Demand:  net.demand,
			Members: g.members[id],
		})
	}
	sort.Slice(s.Nets, func(i, j int) bool { return s.Nets[i].ID < s.Nets[j].ID })

	for _, n := range g.supply {
		s.Supply = append(s.Supply, nodeSnapshot(n))
	}
	for _, n := range g.demand {
		s.Demand = append(s.Demand, nodeSnapshot(n))
	}
	s.Conductors = len(g.nodes) - len(g.supply) - len(g.demand)
	return s
}

func nodeSnapshot(n *Node) NodeSnapshot {
	ns := NodeSnapshot{
		Pos:     n.pos,
		Kind:    n.kind.String(),
		Owner:   n.owner,
		Net:     n.net,
		Ribi:    n.Ribi().String(),
		Powered: n.powered,
		Bound:   !n.Idle(),
	}
	switch n.kind {
	case KindSupply:
		ns.Supply = n.supply.supplyThisTick
	case KindDemand:
		ns.Demand = n.demand.lastPowerDemand
		ns.Load = n.demand.powerLoad
	}
	return ns
}

// FormatPower renders a power quantity with SI prefixes, e.g. "1.5 MW".
func FormatPower(v uint64) string {
	return humanize.SIWithDigits(float64(v)*WattsPerUnit, 1, "W")
}
