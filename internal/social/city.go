// Package social provides cities: residents, their power consumption and
// the substations and factories that serve them.
package social

import (
	"fmt"

	"github.com/talgya/gridsim/internal/economy"
	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/world"
)

// CityID is a unique identifier for a city.
type CityID = uint64

// DefaultPerCapita is the residential draw per resident, in watts.
const DefaultPerCapita = 400

// City is a population center. Its municipal demand is the residential draw
// plus every consuming factory inside its limits.
type City struct {
	ID         CityID      `json:"id"`
	Name       string      `json:"name"`
	Origin     world.Koord `json:"origin"`
	Size       world.Koord `json:"size"`
	Population uint32      `json:"population"`
	PerCapita  uint64      `json:"per_capita"` // watts per resident at 100% load

	factories   []*economy.Factory
	substations []*power.Node

	curve  *economy.LoadCurve
	demand uint64

	received  uint64
	shortfall uint64

	LastReceived  uint64 `json:"last_received"`
	LastShortfall uint64 `json:"last_shortfall"`
}

// NewCity creates a city on a footprint.
func NewCity(id CityID, name string, origin, size world.Koord, population uint32) *City {
	c := &City{
		ID:         id,
		Name:       name,
		Origin:     origin,
		Size:       size,
		Population: population,
		PerCapita:  DefaultPerCapita,
	}
	c.demand = c.baseDemand()
	return c
}

// SetLoadCurve makes residential demand follow curve from the next tick on.
func (c *City) SetLoadCurve(curve *economy.LoadCurve) { c.curve = curve }

func (c *City) baseDemand() uint64 {
	return uint64(c.Population) * c.PerCapita / 1000
}

// BeginTick closes last tick's statistics and recomputes residential demand.
// Residents who went short ask again, up to one tick's base draw.
func (c *City) BeginTick(tick uint64) {
	c.LastReceived = c.received
	c.LastShortfall = c.shortfall
	c.received, c.shortfall = 0, 0
	base := c.curve.Scale(c.baseDemand(), tick, float64(c.ID)*5.3+100)
	c.demand = base + min(c.LastShortfall, base)
}

// Contains reports whether k lies within city limits.
func (c *City) Contains(k world.Koord) bool {
	return k.X >= c.Origin.X && k.Y >= c.Origin.Y &&
		k.X < c.Origin.X+c.Size.X && k.Y < c.Origin.Y+c.Size.Y
}

// AddFactory makes f one of the city's factories.
func (c *City) AddFactory(f *economy.Factory) {
	for _, g := range c.factories {
		if g == f {
			return
		}
	}
	c.factories = append(c.factories, f)
	f.SetCity(c.ID, c)
}

// RemoveFactory releases f from the city.
func (c *City) RemoveFactory(f *economy.Factory) {
	for i, g := range c.factories {
		if g == f {
			c.factories = append(c.factories[:i], c.factories[i+1:]...)
			f.SetCity(0, nil)
			return
		}
	}
}

// CityFactories returns the concrete factories of the city.
func (c *City) CityFactories() []*economy.Factory { return c.factories }

// Factories implements power.City.
func (c *City) Factories() []power.Factory {
	out := make([]power.Factory, len(c.factories))
	for i, f := range c.factories {
		out[i] = f
	}
	return out
}

// Substations lists the demand nodes serving the city in the order they
// were bound.
func (c *City) Substations() []*power.Node { return c.substations }

// AddSubstation registers a demand node. Registering twice is a no-op.
func (c *City) AddSubstation(n *power.Node) {
	for _, s := range c.substations {
		if s == n {
			return
		}
	}
	c.substations = append(c.substations, n)
}

// RemoveSubstation drops a demand node, keeping the order of the rest.
func (c *City) RemoveSubstation(n *power.Node) {
	for i, s := range c.substations {
		if s == n {
			c.substations = append(c.substations[:i], c.substations[i+1:]...)
			return
		}
	}
}

// PowerDemand is the residential demand this tick.
func (c *City) PowerDemand() uint64 { return c.demand }

// AddPower records electricity delivered to residents.
func (c *City) AddPower(amount uint64) { c.received += amount }

// AddPowerDemand records residential demand that went unmet.
func (c *City) AddPowerDemand(amount uint64) { c.shortfall += amount }

// Received returns the power delivered to residents so far this tick.
func (c *City) Received() uint64 { return c.received }

// Shortfall returns the residential demand left unmet so far this tick.
func (c *City) Shortfall() uint64 { return c.shortfall }

// Satisfaction is last tick's delivered share of residential demand, in percent.
func (c *City) Satisfaction() uint64 {
	want := c.LastReceived + c.LastShortfall
	if want == 0 {
		return 100
	}
	return c.LastReceived * 100 / want
}

// Grow adjusts the population once a day: well supplied cities grow by
// 1%, cities getting less than half their power shrink by 1%.
func (c *City) Grow() {
	switch s := c.Satisfaction(); {
	case s >= 90:
		c.Population += max(c.Population/100, 1)
	case s < 50 && c.Population > 100:
		c.Population -= c.Population / 100
	}
}

func (c *City) String() string {
	return fmt.Sprintf("City(%d %s pop=%d)", c.ID, c.Name, c.Population)
}
