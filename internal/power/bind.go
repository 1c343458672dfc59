package power

import (
	"log/slog"

	"github.com/talgya/gridsim/internal/world"
)

// bind attaches a producer or consumer to whatever factory or city it
// touches. Ground nodes look at the four adjacent columns; tunnel nodes
// only at the column they sit under.
func (g *Grid) bind(n *Node) {
	if n.kind == KindConductor || g.sites == nil {
		return
	}
	if !n.Idle() {
		return
	}

	f := g.findFactory(n)
	switch n.kind {
	case KindSupply:
		if f != nil {
			n.supply.factory = f
			slog.Debug("supply node bound", "pos", n.pos)
		}
	case KindDemand:
		if f != nil {
			if c := f.City(); c != nil {
				g.bindCity(n, c)
				return
			}
			n.demand.factory = f
			slog.Debug("demand node bound to factory", "pos", n.pos)
			return
		}
		if c := g.sites.CityAt(n.pos.XY()); c != nil {
			g.bindCity(n, c)
		}
	}
}

func (g *Grid) findFactory(n *Node) Factory {
	var columns []world.Koord
	if tile := g.terrain.Lookup(n.pos); tile != nil && tile.IsTunnel() {
		columns = []world.Koord{n.pos.XY()}
	} else {
		for _, d := range world.Directions {
			columns = append(columns, n.pos.XY().Add(d.Offset()))
		}
	}
	for _, k := range columns {
		f := g.sites.FactoryAt(k)
		if f == nil {
			continue
		}
		if f.IsPowerProducer() == (n.kind == KindSupply) {
			return f
		}
	}
	return nil
}

func (g *Grid) bindCity(n *Node, c City) {
	n.demand.factory = nil
	n.demand.city = c
	c.AddSubstation(n)
	slog.Debug("demand node bound to city", "pos", n.pos)
}

func (g *Grid) unbind(n *Node) {
	switch n.kind {
	case KindSupply:
		n.supply.factory = nil
		n.supply.supplyThisTick = 0
	case KindDemand:
		if n.demand.city != nil {
			n.demand.city.RemoveSubstation(n)
		}
		n.demand.factory = nil
		n.demand.city = nil
	}
	n.powered = false
}

// DetachFactory releases every node bound to f, for use when the factory
// closes. The nodes become idle and are picked up by the sync pass.
func (g *Grid) DetachFactory(f Factory) {
	for _, n := range g.supply {
		if n.supply.factory == f {
			g.unbind(n)
		}
	}
	for _, n := range g.demand {
		if n.demand.factory == f {
			g.unbind(n)
		}
	}
}

// Rebind retries binding every idle producer and consumer, for use after
// new factories or cities were founded next to existing lines.
func (g *Grid) Rebind() {
	for _, n := range g.supply {
		g.bind(n)
	}
	for _, n := range g.demand {
		g.bind(n)
	}
}

// IdleNodes returns the producers and consumers with nothing bound.
func (g *Grid) IdleNodes() []*Node {
	var out []*Node
	for _, n := range g.supply {
		if n.Idle() {
			out = append(out, n)
		}
	}
	for _, n := range g.demand {
		if n.Idle() {
			out = append(out, n)
		}
	}
	return out
}
