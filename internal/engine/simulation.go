// Simulation ties together the world map, the power grid, industry and
// cities, and runs them each tick.
package engine

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/talgya/gridsim/internal/config"
	"github.com/talgya/gridsim/internal/economy"
	"github.com/talgya/gridsim/internal/finance"
	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/social"
	"github.com/talgya/gridsim/internal/world"
)

// Simulation holds the complete world state. The engine goroutine is the
// only writer; construction requests from the API are serialized with
// ticks by mu. Readers use Latest.
type Simulation struct {
	WorldID   uuid.UUID
	Map       *world.Map
	Grid      *power.Grid
	Ledger    *finance.Ledger
	Cities    []*social.City
	Factories []*economy.Factory
	Tunnels   []world.Koord3D // dug after generation; the map itself is regenerated from the seed
	LastTick  uint64
	Config    config.SimConfig
	Stats     SimStats

	curve     *economy.LoadCurve
	perCapita uint64

	cityIndex    map[social.CityID]*social.City
	factoryIndex map[economy.FactoryID]*economy.Factory
	footprints   map[world.Koord]*economy.Factory
	nextCityID   social.CityID
	nextFactory  economy.FactoryID

	mu     sync.Mutex
	latest atomic.Pointer[Snapshot]

	events eventLog
}

// SimStats tracks aggregate grid statistics for the last tick.
type SimStats struct {
	Nets        int    `json:"nets"`
	Nodes       int    `json:"nodes"`
	Supply      uint64 `json:"supply"`
	Demand      uint64 `json:"demand"`
	Served      uint64 `json:"served"`
	IdlePruned  int    `json:"idle_pruned"`
	AuditErrors int    `json:"audit_errors"`
}

// NewSimulation creates an empty simulation over m. Cities and factories
// are added with AddCity and AddFactory, lines with Build or Found.
func NewSimulation(m *world.Map, cfg config.Config, ledger *finance.Ledger) *Simulation {
	s := &Simulation{
		WorldID:      uuid.New(),
		Map:          m,
		Ledger:       ledger,
		Config:       cfg.Sim,
		curve:        economy.NewLoadCurve(cfg.World.Seed),
		perCapita:    cfg.Power.PerCapitaDemand,
		cityIndex:    make(map[social.CityID]*social.City),
		factoryIndex: make(map[economy.FactoryID]*economy.Factory),
		footprints:   make(map[world.Koord]*economy.Factory),
	}
	s.Grid = power.NewGrid(cfg.Power.GridConfig(), m, s, ledger)
	return s
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	if snap := s.latest.Load(); snap != nil {
		return snap.Tick
	}
	return 0
}

// AddCity registers a city. A zero ID is assigned the next free one.
func (s *Simulation) AddCity(c *social.City) {
	if c.ID == 0 {
		c.ID = s.nextCityID + 1
	}
	s.nextCityID = max(s.nextCityID, c.ID)
	if s.perCapita > 0 {
		c.PerCapita = s.perCapita
	}
	c.SetLoadCurve(s.curve)
	s.Cities = append(s.Cities, c)
	s.cityIndex[c.ID] = c
}

// AddFactory registers a factory and claims its footprint. A zero ID is
// assigned the next free one. Works with a CityID join that city.
func (s *Simulation) AddFactory(f *economy.Factory) {
	if f.ID == 0 {
		f.ID = s.nextFactory + 1
	}
	s.nextFactory = max(s.nextFactory, f.ID)
	f.SetLoadCurve(s.curve)
	s.Factories = append(s.Factories, f)
	s.factoryIndex[f.ID] = f
	for dx := 0; dx < f.Size.X; dx++ {
		for dy := 0; dy < f.Size.Y; dy++ {
			s.footprints[f.Origin.Add(world.Koord{X: dx, Y: dy})] = f
		}
	}
	if f.CityID != 0 {
		if c := s.cityIndex[f.CityID]; c != nil {
			c.AddFactory(f)
		}
	}
}

// FactoryAt implements power.Sites.
func (s *Simulation) FactoryAt(k world.Koord) power.Factory {
	if f, ok := s.footprints[k]; ok {
		return f
	}
	return nil
}

// CityAt implements power.Sites.
func (s *Simulation) CityAt(k world.Koord) power.City {
	for _, c := range s.Cities {
		if c.Contains(k) {
			return c
		}
	}
	return nil
}

// City returns a city by ID, or nil.
func (s *Simulation) City(id social.CityID) *social.City { return s.cityIndex[id] }

// Factory returns a factory by ID, or nil.
func (s *Simulation) Factory(id economy.FactoryID) *economy.Factory { return s.factoryIndex[id] }

// Step runs one tick: industry and cities open the tick, the grid steps,
// idle producers and consumers are pruned, the grid is audited on schedule
// and a snapshot is published.
func (s *Simulation) Step(tick uint64) {
	s.mu.Lock()
	s.LastTick = tick
	for _, f := range s.Factories {
		f.BeginTick(tick)
	}
	for _, c := range s.Cities {
		c.BeginTick(tick)
	}

	s.Grid.Step(s.Config.DeltaT)

	if s.Config.PruneIdle {
		s.pruneIdle()
	}
	if s.Config.AuditEvery > 0 && tick%s.Config.AuditEvery == 0 {
		s.audit()
	}
	s.updateStats()
	snap := s.buildSnapshot()
	s.mu.Unlock()

	s.publish(snap)
}

// TickDay runs once per simulated day: city growth, rebinding of idle
// nodes to anything founded next to them, and the daily report.
func (s *Simulation) TickDay(tick uint64) {
	s.mu.Lock()
	for _, c := range s.Cities {
		c.Grow()
	}
	s.Grid.Rebind()
	s.mu.Unlock()

	s.report(tick)
}

// pruneIdle is the sync pass: producers and consumers with nothing bound
// are torn down like any other removal.
func (s *Simulation) pruneIdle() {
	idle := s.Grid.IdleNodes()
	for _, n := range idle {
		pos := n.Pos()
		if err := s.Grid.Remove(pos); err != nil {
			slog.Warn("prune idle node", "pos", pos, "error", err)
			continue
		}
		slog.Debug("idle node pruned", "pos", pos, "kind", n.Kind())
	}
	s.Stats.IdlePruned += len(idle)
}

func (s *Simulation) audit() {
	err := s.Grid.Audit()
	if err == nil {
		return
	}
	s.Stats.AuditErrors++
	if s.Config.Strict {
		panic(err)
	}
	slog.Error("power grid audit failed", "tick", s.LastTick, "error", err)
}

func (s *Simulation) updateStats() {
	s.Stats.Nets = s.Grid.NetCount()
	s.Stats.Nodes = s.Grid.NodeCount()
	s.Stats.Supply, s.Stats.Demand, s.Stats.Served = 0, 0, 0
	for _, net := range s.Grid.Nets() {
		s.Stats.Supply += net.Supply()
		s.Stats.Demand += net.Demand()
	}
	for _, n := range s.Grid.DemandNodes() {
		s.Stats.Served += n.PowerLoad()
	}
}

// sortedCities returns cities ordered by ID.
func (s *Simulation) sortedCities() []*social.City {
	out := append([]*social.City(nil), s.Cities...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
