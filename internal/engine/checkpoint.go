package engine

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/gridsim/internal/economy"
	"github.com/talgya/gridsim/internal/finance"
	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/social"
	"github.com/talgya/gridsim/internal/world"
)

// Checkpoint is the persisted form of a simulation. Networks are not part
// of it: connectivity is rebuilt from the nodes on restore.
type Checkpoint struct {
	WorldID   uuid.UUID
	Tick      uint64
	Players   []PlayerRecord
	Cities    []CityRecord
	Factories []FactoryRecord
	Nodes     []NodeRecord
	Tunnels   []TunnelRecord
}

type PlayerRecord struct {
	ID           uuid.UUID     `db:"id"`
	Number       uint8         `db:"number"`
	Name         string        `db:"name"`
	Balance      finance.Money `db:"balance"`
	PowerRevenue finance.Money `db:"power_revenue"`
}

type CityRecord struct {
	ID         uint64 `db:"id"`
	Name       string `db:"name"`
	OriginX    int    `db:"origin_x"`
	OriginY    int    `db:"origin_y"`
	SizeX      int    `db:"size_x"`
	SizeY      int    `db:"size_y"`
	Population uint32 `db:"population"`
	PerCapita  uint64 `db:"per_capita"`
}

type FactoryRecord struct {
	ID            uint64 `db:"id"`
	Name          string `db:"name"`
	Kind          uint8  `db:"kind"`
	OriginX       int    `db:"origin_x"`
	OriginY       int    `db:"origin_y"`
	SizeX         int    `db:"size_x"`
	SizeY         int    `db:"size_y"`
	BaseOutput    uint64 `db:"base_output"`
	BaseDemand    uint64 `db:"base_demand"`
	CityID        uint64 `db:"city_id"`
	TotalReceived uint64 `db:"total_received"`
}

// NodeRecord is one grid node. Order matters: nodes are restored in the
// order saved, which keeps producer and consumer registration order.
type NodeRecord struct {
	Seq             int    `db:"seq"`
	X               int    `db:"x"`
	Y               int    `db:"y"`
	Z               int    `db:"z"`
	Kind            string `db:"kind"`
	Owner           uint8  `db:"owner"`
	LastPowerDemand uint64 `db:"last_power_demand"`
	PowerLoad       uint64 `db:"power_load"`
	Income          uint64 `db:"income"`
	MaxIncome       uint64 `db:"max_income"`
}

type TunnelRecord struct {
	X int `db:"x"`
	Y int `db:"y"`
	Z int `db:"z"`
}

// Checkpoint copies the state to persist.
func (s *Simulation) Checkpoint() Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := Checkpoint{WorldID: s.WorldID, Tick: s.LastTick}
	for _, p := range s.Ledger.Players() {
		cp.Players = append(cp.Players, PlayerRecord{
			ID:           p.ID,
			Number:       uint8(p.Number),
			Name:         p.Name,
			Balance:      p.Balance,
			PowerRevenue: p.Revenue[finance.CategoryPower],
		})
	}
	for _, c := range s.Cities {
		cp.Cities = append(cp.Cities, CityRecord{
			ID: c.ID, Name: c.Name,
			OriginX: c.Origin.X, OriginY: c.Origin.Y,
			SizeX: c.Size.X, SizeY: c.Size.Y,
			Population: c.Population, PerCapita: c.PerCapita,
		})
	}
	for _, f := range s.Factories {
		cp.Factories = append(cp.Factories, FactoryRecord{
			ID: f.ID, Name: f.Name, Kind: uint8(f.Kind),
			OriginX: f.Origin.X, OriginY: f.Origin.Y,
			SizeX: f.Size.X, SizeY: f.Size.Y,
			BaseOutput: f.BaseOutput, BaseDemand: f.BaseDemand,
			CityID: f.CityID, TotalReceived: f.TotalReceived,
		})
	}

	// Conductors first in position order, then producers and consumers in
	// registration order.
	seq := 0
	add := func(n *power.Node) {
		pos := n.Pos()
		income, maxIncome := n.Income()
		cp.Nodes = append(cp.Nodes, NodeRecord{
			Seq: seq, X: pos.X, Y: pos.Y, Z: pos.Z,
			Kind:            n.Kind().String(),
			Owner:           uint8(n.Owner()),
			LastPowerDemand: n.LastPowerDemand(),
			PowerLoad:       n.PowerLoad(),
			Income:          income,
			MaxIncome:       maxIncome,
		})
		seq++
	}
	for _, n := range s.Grid.Nodes() {
		if n.Kind() == power.KindConductor {
			add(n)
		}
	}
	for _, n := range s.Grid.SupplyNodes() {
		add(n)
	}
	for _, n := range s.Grid.DemandNodes() {
		add(n)
	}

	for _, t := range s.Tunnels {
		cp.Tunnels = append(cp.Tunnels, TunnelRecord{X: t.X, Y: t.Y, Z: t.Z})
	}
	return cp
}

// Restore rebuilds state from a checkpoint on a simulation created with
// NewSimulation over a freshly generated map. Every node is loaded first
// and connected in one pass afterwards.
func (s *Simulation) Restore(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cp.WorldID != uuid.Nil {
		s.WorldID = cp.WorldID
	}
	s.LastTick = cp.Tick

	for _, p := range cp.Players {
		s.Ledger.AddPlayer(finance.Player{
			ID:      p.ID,
			Number:  world.PlayerID(p.Number),
			Name:    p.Name,
			Balance: p.Balance,
			Revenue: map[finance.Category]finance.Money{finance.CategoryPower: p.PowerRevenue},
		})
	}
	for _, t := range cp.Tunnels {
		pos := world.Koord3D{X: t.X, Y: t.Y, Z: t.Z}
		if _, err := s.Map.AddTunnel(pos); err != nil {
			return fmt.Errorf("restore tunnel: %w", err)
		}
		s.Tunnels = append(s.Tunnels, pos)
	}
	for _, r := range cp.Cities {
		c := social.NewCity(r.ID, r.Name, world.Koord{X: r.OriginX, Y: r.OriginY}, world.Koord{X: r.SizeX, Y: r.SizeY}, r.Population)
		s.AddCity(c)
		c.PerCapita = r.PerCapita
	}
	for _, r := range cp.Factories {
		origin, size := world.Koord{X: r.OriginX, Y: r.OriginY}, world.Koord{X: r.SizeX, Y: r.SizeY}
		var f *economy.Factory
		if economy.FactoryKind(r.Kind) == economy.FactoryPowerPlant {
			f = economy.NewPowerPlant(r.ID, r.Name, origin, size, r.BaseOutput)
		} else {
			f = economy.NewWorks(r.ID, r.Name, origin, size, r.BaseDemand)
		}
		f.CityID = r.CityID
		f.TotalReceived = r.TotalReceived
		s.AddFactory(f)
	}

	for _, r := range cp.Nodes {
		kind, ok := power.ParseKind(r.Kind)
		if !ok {
			return fmt.Errorf("restore node %d,%d,%d: unknown kind %q", r.X, r.Y, r.Z, r.Kind)
		}
		n, err := s.Grid.Load(world.Koord3D{X: r.X, Y: r.Y, Z: r.Z}, kind, world.PlayerID(r.Owner))
		if err != nil {
			return fmt.Errorf("restore node: %w", err)
		}
		n.RestoreDemandState(r.LastPowerDemand, r.PowerLoad, r.Income, r.MaxIncome)
	}
	s.Grid.FinishLoad()

	slog.Info("world state restored",
		"tick", cp.Tick,
		"cities", len(s.Cities),
		"factories", len(s.Factories),
		"nodes", s.Grid.NodeCount(),
		"nets", s.Grid.NetCount(),
	)
	return nil
}
