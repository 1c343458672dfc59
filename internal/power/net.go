// Package power simulates electrical grids laid on the tile map: connectivity of
// conductors into networks, producers feeding those networks, and consumers
// drawing from them with revenue booked to the line owner.
package power

import "fmt"

// NetID identifies a network in the grid arena. Zero means "no network".
type NetID uint32

// Net is one connected component of conductors. It only aggregates the supply
// and demand submitted by its members during the current tick; membership is
// tracked by the owning Grid.
type Net struct {
	id     NetID
	supply uint64
	demand uint64
}

// ID returns the network identity. IDs are assigned monotonically and never reused.
func (n *Net) ID() NetID { return n.id }

// AddSupply accumulates producer output for this tick.
func (n *Net) AddSupply(amount uint64) { n.supply = satAdd(n.supply, amount) }

// AddDemand accumulates consumer demand for this tick.
func (n *Net) AddDemand(amount uint64) { n.demand = satAdd(n.demand, amount) }

// Supply returns the supply accumulated so far this tick.
func (n *Net) Supply() uint64 { return n.supply }

// Demand returns the demand accumulated so far this tick.
func (n *Net) Demand() uint64 { return n.demand }

// Slack is the supply not yet claimed by demand, never negative.
func (n *Net) Slack() uint64 {
	if n.demand >= n.supply {
		return 0
	}
	return n.supply - n.demand
}

// Reset clears both accumulators. The grid calls it at the start of every tick.
func (n *Net) Reset() {
	n.supply = 0
	n.demand = 0
}

func (n *Net) String() string {
	return fmt.Sprintf("Net(%d supply=%d demand=%d)", n.id, n.supply, n.demand)
}
