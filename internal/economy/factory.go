// Package economy provides the industries of the world: power stations
// feeding the grid and works drawing from it.
package economy

import (
	"fmt"

	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/world"
)

// FactoryID is a unique identifier for a factory.
type FactoryID = uint64

// FactoryKind separates producers from consumers.
type FactoryKind uint8

const (
	FactoryPowerPlant FactoryKind = iota // Generates electricity
	FactoryWorks                         // Consumes electricity
)

func (k FactoryKind) String() string {
	if k == FactoryPowerPlant {
		return "power_plant"
	}
	return "works"
}

// Factory is an industry on a rectangular footprint. Power stations report
// output and never demand; works report demand and accept power.
type Factory struct {
	ID     FactoryID      `json:"id"`
	Name   string         `json:"name"`
	Kind   FactoryKind    `json:"kind"`
	Origin world.Koord    `json:"origin"`
	Size   world.Koord    `json:"size"`
	Owner  world.PlayerID `json:"owner"`

	BaseOutput uint64 `json:"base_output"` // kW at 100% load
	BaseDemand uint64 `json:"base_demand"` // kW at 100% load

	// CityID is set for works inside city limits; 0 for none.
	CityID uint64 `json:"city_id,omitempty"`
	city   power.City

	curve  *LoadCurve
	output uint64
	demand uint64

	// This tick, filled by the grid.
	received  uint64
	shortfall uint64

	// Last completed tick.
	LastReceived  uint64 `json:"last_received"`
	LastShortfall uint64 `json:"last_shortfall"`
	TotalReceived uint64 `json:"total_received"`
}

// NewPowerPlant creates a power station producing baseOutput at full load.
func NewPowerPlant(id FactoryID, name string, origin, size world.Koord, baseOutput uint64) *Factory {
	f := &Factory{ID: id, Name: name, Kind: FactoryPowerPlant, Origin: origin, Size: size, BaseOutput: baseOutput}
	f.output = baseOutput
	return f
}

// NewWorks creates a consuming factory drawing baseDemand at full load.
func NewWorks(id FactoryID, name string, origin, size world.Koord, baseDemand uint64) *Factory {
	f := &Factory{ID: id, Name: name, Kind: FactoryWorks, Origin: origin, Size: size, BaseDemand: baseDemand}
	f.demand = baseDemand
	return f
}

// SetLoadCurve makes output and demand follow c from the next tick on.
func (f *Factory) SetLoadCurve(c *LoadCurve) { f.curve = c }

// SetCity places the factory inside a city's limits. Pass nil to clear.
func (f *Factory) SetCity(id uint64, c power.City) {
	f.CityID = id
	f.city = c
}

// BeginTick closes the statistics of the previous tick and recomputes this
// tick's output and demand. Unmet demand reported last tick is asked for
// again on top of the base demand, up to one tick's base demand.
func (f *Factory) BeginTick(tick uint64) {
	f.LastReceived = f.received
	f.LastShortfall = f.shortfall
	f.TotalReceived += f.received
	f.received, f.shortfall = 0, 0

	salt := float64(f.ID) * 3.7
	switch f.Kind {
	case FactoryPowerPlant:
		f.output = f.curve.Scale(f.BaseOutput, tick, salt)
	default:
		base := f.curve.Scale(f.BaseDemand, tick, salt)
		f.demand = base + min(f.LastShortfall, base)
	}
}

// Contains reports whether k lies on the factory footprint.
func (f *Factory) Contains(k world.Koord) bool {
	return k.X >= f.Origin.X && k.Y >= f.Origin.Y &&
		k.X < f.Origin.X+f.Size.X && k.Y < f.Origin.Y+f.Size.Y
}

// IsPowerProducer reports whether the factory is a power station.
func (f *Factory) IsPowerProducer() bool { return f.Kind == FactoryPowerPlant }

// PowerOutput is the electricity generated this tick.
func (f *Factory) PowerOutput() uint64 {
	if f.Kind != FactoryPowerPlant {
		return 0
	}
	return f.output
}

// PowerDemand is the electricity wanted this tick.
func (f *Factory) PowerDemand() uint64 {
	if f.Kind == FactoryPowerPlant {
		return 0
	}
	return f.demand
}

// AddPower records electricity delivered this tick.
func (f *Factory) AddPower(amount uint64) { f.received += amount }

// AddPowerDemand records demand that went unmet this tick. It is added to
// next tick's demand.
func (f *Factory) AddPowerDemand(amount uint64) { f.shortfall += amount }

// Received returns the power delivered so far this tick.
func (f *Factory) Received() uint64 { return f.received }

// Shortfall returns the unmet demand reported so far this tick.
func (f *Factory) Shortfall() uint64 { return f.shortfall }

// City returns the city the factory belongs to, or nil.
func (f *Factory) City() power.City {
	if f.city == nil {
		return nil
	}
	return f.city
}

// Satisfaction is the share of last tick's demand that was delivered, in percent.
func (f *Factory) Satisfaction() uint64 {
	want := f.LastReceived + f.LastShortfall
	if want == 0 {
		return 100
	}
	return f.LastReceived * 100 / want
}

func (f *Factory) String() string {
	return fmt.Sprintf("Factory(%d %s %s at %s)", f.ID, f.Kind, f.Name, f.Origin)
}
