package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"

	"github.com/talgya/gridsim/internal/config"
	"github.com/talgya/gridsim/internal/economy"
	"github.com/talgya/gridsim/internal/finance"
	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/social"
	"github.com/talgya/gridsim/internal/world"
)

func flatWorld(w, h int) *world.Map {
	m := world.NewMap(w, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			m.SetGround(&world.Tile{Pos: world.Koord3D{X: x, Y: y, Z: 1}})
		}
	}
	return m
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Sim.AuditEvery = 1
	cfg.Sim.Strict = true
	return cfg
}

// townSim has a plant at (1,1) feeding a town at (12,1) over a line owned
// by player 2.
func townSim(t *testing.T) (*Simulation, *social.City) {
	t.Helper()
	sim := NewSimulation(flatWorld(20, 10), testConfig(), finance.NewLedger())
	sim.AddFactory(economy.NewPowerPlant(0, "Ashford Power Station", world.Koord{X: 1, Y: 1}, world.Koord{X: 2, Y: 2}, 5000))
	town := social.NewCity(0, "Greenford", world.Koord{X: 12, Y: 1}, world.Koord{X: 5, Y: 5}, 2500)
	sim.AddCity(town)

	built, err := sim.LayLine(world.Koord{X: 3, Y: 1}, world.Koord{X: 12, Y: 1}, 2, power.KindSupply, power.KindDemand)
	assert.NilError(t, err)
	assert.Equal(t, built, 10)
	return sim, town
}

func TestStepPowersCity(t *testing.T) {
	sim, town := townSim(t)
	assert.Equal(t, len(town.Substations()), 1)

	for tick := uint64(1); tick <= 3; tick++ {
		sim.Step(tick)
	}
	snap := sim.Latest()
	assert.Equal(t, snap.Tick, uint64(3))
	assert.Equal(t, snap.Stats.Nets, 1)
	assert.Assert(t, snap.Stats.Supply >= 3750)
	assert.Assert(t, snap.Stats.Served > 0)
	assert.Assert(t, snap.Cities[0].Received > 0)
	assert.Equal(t, snap.Cities[0].Substations, 1)
	assert.Equal(t, sim.CurrentTick(), uint64(3))
}

func TestTwoPlantsFeedOneCity(t *testing.T) {
	sim, town := townSim(t)
	sim.AddFactory(economy.NewPowerPlant(0, "Northby Power Station", world.Koord{X: 1, Y: 6}, world.Koord{X: 2, Y: 2}, 5000))
	_, err := sim.LayLine(world.Koord{X: 3, Y: 6}, world.Koord{X: 12, Y: 5}, 2, power.KindSupply, power.KindDemand)
	assert.NilError(t, err)
	assert.Equal(t, len(town.Substations()), 2)
	assert.Equal(t, sim.Grid.NetCount(), 2)

	town.SetLoadCurve(nil)
	for _, f := range sim.Factories {
		f.SetLoadCurve(nil)
	}
	for tick := uint64(1); tick <= 6; tick++ {
		sim.Step(tick)
	}

	assert.Equal(t, town.PowerDemand(), uint64(1000))
	assert.Equal(t, town.Received(), uint64(1000))
	assert.Equal(t, town.LastReceived, uint64(1000))
	assert.Equal(t, town.LastShortfall, uint64(0))
	for _, n := range town.Substations() {
		assert.Equal(t, n.LastPowerDemand(), uint64(500), "substation %s", n.Pos())
		assert.Assert(t, n.Powered())
	}
	assert.Equal(t, sim.Latest().Cities[0].Received, uint64(1000))
}

func TestSubscribersReceiveSnapshots(t *testing.T) {
	sim, _ := townSim(t)
	id, ch := sim.Subscribe()
	sim.Step(1)

	snap := <-ch
	assert.Equal(t, snap.Tick, uint64(1))
	sim.Unsubscribe(id)
	_, open := <-ch
	assert.Assert(t, !open)
}

func TestBuildAndDemolish(t *testing.T) {
	sim, _ := townSim(t)
	err := sim.Build(world.Koord3D{X: 5, Y: 1, Z: 1}, power.KindConductor, 2)
	assert.Assert(t, errors.Is(err, power.ErrOccupied))

	assert.NilError(t, sim.Demolish(world.Koord3D{X: 7, Y: 1, Z: 1}))
	assert.Equal(t, sim.Grid.NetCount(), 2)
	assert.NilError(t, sim.Build(world.Koord3D{X: 7, Y: 1, Z: 1}, power.KindConductor, 2))
	assert.Equal(t, sim.Grid.NetCount(), 1)

	events := sim.RecentEvents(10)
	assert.Equal(t, len(events), 2)
	assert.Equal(t, events[0].Category, "demolish")
}

func TestForeignLineBlocksRoute(t *testing.T) {
	sim, _ := townSim(t)
	// Player 3 cannot cross player 2's line at y=1 in either orientation.
	_, err := sim.LayLine(world.Koord{X: 8, Y: 0}, world.Koord{X: 8, Y: 4}, 3, power.KindConductor, power.KindConductor)
	assert.Assert(t, errors.Is(err, errNoRoute))
}

func TestCloseFactoryPrunesTransformer(t *testing.T) {
	sim, _ := townSim(t)
	sim.Config.PruneIdle = true
	sim.Step(1)
	nodes := sim.Grid.NodeCount()

	plant := sim.Factories[0]
	assert.NilError(t, sim.CloseFactory(plant.ID))
	assert.Assert(t, sim.FactoryAt(plant.Origin) == nil)

	sim.Step(2)
	assert.Equal(t, sim.Grid.NodeCount(), nodes-1)
	assert.Equal(t, len(sim.Grid.SupplyNodes()), 0)
	assert.Equal(t, sim.Latest().Stats.IdlePruned, 1)
	assert.ErrorContains(t, sim.CloseFactory(plant.ID), "not found")
}

func TestSitesReturnNilInterface(t *testing.T) {
	sim, _ := townSim(t)
	assert.Assert(t, sim.FactoryAt(world.Koord{X: 19, Y: 9}) == nil)
	assert.Assert(t, sim.CityAt(world.Koord{X: 0, Y: 9}) == nil)
}

func TestCheckpointRoundTrip(t *testing.T) {
	sim, town := townSim(t)
	assert.NilError(t, sim.DigTunnel(world.Koord3D{X: 5, Y: 6, Z: 0}))
	_, err := sim.LayLine(world.Koord{X: 3, Y: 2}, world.Koord{X: 12, Y: 5}, 2, power.KindConductor, power.KindDemand)
	assert.NilError(t, err)
	assert.Equal(t, len(town.Substations()), 2)
	for tick := uint64(1); tick <= 5; tick++ {
		sim.Step(tick)
	}
	cp := sim.Checkpoint()

	restored := NewSimulation(flatWorld(20, 10), testConfig(), finance.NewLedger())
	assert.NilError(t, restored.Restore(cp))

	if diff := cmp.Diff(cp, restored.Checkpoint()); diff != "" {
		t.Fatalf("checkpoint after restore (-want +got):\n%s", diff)
	}
	assert.Equal(t, restored.Grid.NetCount(), sim.Grid.NetCount())
	assert.NilError(t, restored.Grid.Audit())

	got := restored.City(town.ID).Substations()
	assert.Equal(t, len(got), 2)
	assert.Equal(t, got[0].Pos(), town.Substations()[0].Pos())
	assert.Equal(t, got[1].Pos(), town.Substations()[1].Pos())
}

func TestFoundGeneratedWorld(t *testing.T) {
	gen := world.DefaultGenConfig()
	gen.Width, gen.Height, gen.Seed = 64, 64, 42
	cfg := testConfig()
	cfg.World.Seed = gen.Seed

	sim := NewSimulation(world.Generate(gen), cfg, finance.NewLedger())
	sim.Found(gen.Seed)

	assert.Equal(t, len(sim.Ledger.Players()), 3)
	assert.NilError(t, sim.Grid.Audit())
	assert.Equal(t, len(sim.Grid.IdleNodes()), 0)
	for tick := uint64(1); tick <= 10; tick++ {
		sim.Step(tick)
	}
	assert.Equal(t, sim.Latest().Stats.AuditErrors, 0)
}
