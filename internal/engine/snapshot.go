package engine

import (
	"github.com/talgya/gridsim/internal/economy"
	"github.com/talgya/gridsim/internal/finance"
	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/world"
)

// Snapshot is an immutable view of the world after a tick. It is safe to
// share between goroutines.
type Snapshot struct {
	Tick      uint64          `json:"tick"`
	Time      string          `json:"time"`
	Stats     SimStats        `json:"stats"`
	Power     *power.Snapshot `json:"power"`
	Cities    []CityStatus    `json:"cities"`
	Factories []FactoryStatus `json:"factories"`
	Revenue   finance.Money   `json:"revenue"`
}

// CityStatus summarizes one city.
type CityStatus struct {
	ID           uint64      `json:"id"`
	Name         string      `json:"name"`
	Origin       world.Koord `json:"origin"`
	Population   uint32      `json:"population"`
	Demand       uint64      `json:"demand"`
	Received     uint64      `json:"received"`
	Shortfall    uint64      `json:"shortfall"`
	Satisfaction uint64      `json:"satisfaction"`
	Substations  int         `json:"substations"`
	Factories    int         `json:"factories"`
}

// FactoryStatus summarizes one factory.
type FactoryStatus struct {
	ID           uint64      `json:"id"`
	Name         string      `json:"name"`
	Kind         string      `json:"kind"`
	Origin       world.Koord `json:"origin"`
	CityID       uint64      `json:"city_id,omitempty"`
	Output       uint64      `json:"output,omitempty"`
	Demand       uint64      `json:"demand,omitempty"`
	Received     uint64      `json:"received"`
	Shortfall    uint64      `json:"shortfall"`
	Satisfaction uint64      `json:"satisfaction"`
}

// Publish builds and publishes a snapshot outside the tick, e.g. at startup
// so readers have state before the first tick.
func (s *Simulation) Publish() {
	s.mu.Lock()
	s.updateStats()
	snap := s.buildSnapshot()
	s.mu.Unlock()
	s.publish(snap)
}

// buildSnapshot copies state; the caller holds mu. Received and shortfall
// are this tick's values, so they are read before the next BeginTick.
func (s *Simulation) buildSnapshot() *Snapshot {
	snap := &Snapshot{
		Tick:    s.LastTick,
		Time:    SimTime(s.LastTick, s.Config.TicksPerDay),
		Stats:   s.Stats,
		Power:   s.Grid.Snapshot(),
		Revenue: s.Ledger.Total(finance.CategoryPower),
	}
	for _, c := range s.sortedCities() {
		snap.Cities = append(snap.Cities, CityStatus{
			ID:           c.ID,
			Name:         c.Name,
			Origin:       c.Origin,
			Population:   c.Population,
			Demand:       c.PowerDemand(),
			Received:     c.Received(),
			Shortfall:    c.Shortfall(),
			Satisfaction: c.Satisfaction(),
			Substations:  len(c.Substations()),
			Factories:    len(c.CityFactories()),
		})
	}
	for _, f := range s.Factories {
		snap.Factories = append(snap.Factories, factoryStatus(f))
	}
	return snap
}

func factoryStatus(f *economy.Factory) FactoryStatus {
	return FactoryStatus{
		ID:           f.ID,
		Name:         f.Name,
		Kind:         f.Kind.String(),
		Origin:       f.Origin,
		CityID:       f.CityID,
		Output:       f.PowerOutput(),
		Demand:       f.PowerDemand(),
		Received:     f.Received(),
		Shortfall:    f.Shortfall(),
		Satisfaction: f.Satisfaction(),
	}
}
