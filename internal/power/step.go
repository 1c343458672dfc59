package power

// Step runs one simulation tick over the whole grid: every network is reset,
// then all producers step, then all consumers step, each pass in
// registration order. Producers therefore finish contributing supply before
// any consumer reads its network. A zero deltaT leaves the grid untouched.
func (g *Grid) Step(deltaT uint32) {
	if deltaT == 0 {
		return
	}
	g.tick++
	for _, net := range g.nets {
		net.Reset()
	}
	clear(g.shares)

	for _, n := range g.supply {
		n.Step(deltaT)
	}
	g.rerouteMunicipal()
	for _, n := range g.demand {
		n.Step(deltaT)
	}
}

// rerouteMunicipal moves demand nodes whose factory has joined a city onto
// that city's pool. It runs before any city's fair share is computed.
func (g *Grid) rerouteMunicipal() {
	for _, n := range g.demand {
		if f := n.demand.factory; f != nil {
			if c := f.City(); c != nil {
				g.bindCity(n, c)
			}
		}
	}
}

func (n *Node) stepSupply() {
	s := n.supply
	if s.factory == nil {
		return
	}
	s.supplyThisTick = s.factory.PowerOutput()
	if s.supplyThisTick > 0 {
		n.Net().AddSupply(s.supplyThisTick)
	}
	n.powered = s.supplyThisTick > 0
}
