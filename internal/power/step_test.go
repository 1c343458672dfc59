package power

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"

	"github.com/talgya/gridsim/internal/world"
)

// pairFixture lays a plant at (0,1), a consumer factory at (3,1) and a line
// between them ending in a supply node at (1,1) and a demand node at (2,1).
func pairFixture(t *testing.T, output, demand uint64) (*fixture, *testFactory, *testFactory) {
	t.Helper()
	fx := newFixture(4, 3, DefaultConfig())
	plant := &testFactory{output: output, producer: true}
	works := &testFactory{demand: demand}
	fx.sites.factories[world.Koord{X: 0, Y: 1}] = plant
	fx.sites.factories[world.Koord{X: 3, Y: 1}] = works

	fx.add(t, at(1, 1), KindSupply)
	fx.add(t, at(2, 1), KindDemand)
	return fx, plant, works
}

func TestBindsProducerAndConsumer(t *testing.T) {
	fx, plant, works := pairFixture(t, 1000, 800)
	a, b := fx.grid.At(at(1, 1)), fx.grid.At(at(2, 1))

	assert.Equal(t, a.Factory(), Factory(plant))
	assert.Equal(t, b.Factory(), Factory(works))
	assert.Equal(t, a.NetID(), b.NetID())
	assert.Equal(t, len(fx.grid.IdleNodes()), 0)
}

func TestServedLoadLagsOneTick(t *testing.T) {
	fx, _, works := pairFixture(t, 1000, 800)
	b := fx.grid.At(at(2, 1))

	fx.grid.Step(1)
	net := b.Net()
	assert.Equal(t, net.Supply(), uint64(1000))
	assert.Equal(t, net.Demand(), uint64(800))
	assert.Equal(t, b.PowerLoad(), uint64(0))
	assert.Equal(t, b.LastPowerDemand(), uint64(800))
	assert.Equal(t, works.carry, uint64(800))

	works.beginTick()
	fx.grid.Step(1)
	assert.Equal(t, b.PowerLoad(), uint64(800))
	assert.Equal(t, works.received, uint64(800))
	assert.Equal(t, works.carry, uint64(0))
	assert.Assert(t, b.Powered())
}

func TestScarcityCarriesShortfall(t *testing.T) {
	fx, _, works := pairFixture(t, 1000, 800)
	b := fx.grid.At(at(2, 1))
	fx.grid.Step(1)

	works.beginTick()
	works.demand = 1500
	fx.grid.Step(1)

	assert.Equal(t, b.Net().Demand(), uint64(1500))
	assert.Equal(t, b.PowerLoad(), uint64(533))
	assert.Equal(t, works.received, uint64(533))
	assert.Equal(t, works.carry, uint64(967))
}

func TestScarcityIsProportional(t *testing.T) {
	fx, _, works := pairFixture(t, 300, 900)
	b := fx.grid.At(at(2, 1))
	for i := 0; i < 3; i++ {
		works.beginTick()
		fx.grid.Step(1)
	}
	assert.Equal(t, b.PowerLoad(), uint64(300))
	assert.Assert(t, b.demand.short)
	assert.Assert(t, b.PowerLoad() < b.LastPowerDemand())
	assert.Equal(t, works.carry, uint64(600))
}

func TestZeroDeltaIsNoop(t *testing.T) {
	fx, _, works := pairFixture(t, 1000, 800)
	a, b := fx.grid.At(at(1, 1)), fx.grid.At(at(2, 1))
	fx.grid.Step(1)
	fx.grid.Step(1)

	before := fx.grid.Snapshot()
	income, maxIncome := b.Income()
	received := works.received

	fx.grid.Step(0)
	a.Step(0)
	b.Step(0)

	if diff := cmp.Diff(before, fx.grid.Snapshot()); diff != "" {
		t.Fatalf("step(0) changed the grid (-before +after):\n%s", diff)
	}
	gotIncome, gotMax := b.Income()
	assert.Equal(t, gotIncome, income)
	assert.Equal(t, gotMax, maxIncome)
	assert.Equal(t, works.received, received)
}

func TestSupplyWithoutFactoryIsIdle(t *testing.T) {
	fx := newFixture(3, 1, DefaultConfig())
	n := fx.add(t, at(1, 0), KindSupply)
	fx.grid.Step(1)

	assert.Equal(t, n.Net().Supply(), uint64(0))
	assert.Assert(t, n.Idle())
	assert.Equal(t, len(fx.grid.IdleNodes()), 1)
}

func TestDetachFactoryUnbinds(t *testing.T) {
	fx, plant, _ := pairFixture(t, 1000, 800)
	fx.grid.Step(1)

	fx.grid.DetachFactory(plant)
	a := fx.grid.At(at(1, 1))
	assert.Assert(t, a.Idle())
	assert.Equal(t, a.SupplyThisTick(), uint64(0))

	fx.grid.Step(1)
	assert.Equal(t, a.Net().Supply(), uint64(0))
}

// cityFixture gives a city three substations at (0,0), (4,0) and (8,0),
// each on its own net fed by a plant through a supply node below it.
func cityFixture(t *testing.T, cityDemand uint64, outputs [3]uint64) (*fixture, *testCity, []*Node) {
	t.Helper()
	fx := newFixture(10, 3, DefaultConfig())
	city := &testCity{demand: cityDemand}
	var subs []*Node
	for i, out := range outputs {
		x := 4 * i
		fx.sites.cities[world.Koord{X: x, Y: 0}] = city
		fx.sites.factories[world.Koord{X: x + 1, Y: 1}] = &testFactory{output: out, producer: true}
		subs = append(subs, fx.add(t, at(x, 0), KindDemand))
		fx.add(t, at(x, 1), KindSupply)
	}
	return fx, city, subs
}

func TestFairShareCapsShortNets(t *testing.T) {
	fx, city, subs := cityFixture(t, 900, [3]uint64{100, 1000, 1000})
	assert.Equal(t, len(city.subs), 3)
	assert.Equal(t, fx.grid.NetCount(), 3)

	fx.grid.Step(1)
	var got []uint64
	for _, s := range subs {
		got = append(got, s.LastPowerDemand())
	}
	if diff := cmp.Diff([]uint64{100, 400, 400}, got); diff != "" {
		t.Fatalf("fair share (-want +got):\n%s", diff)
	}
	assert.Equal(t, subs[0].LoadProportion(), mulDiv(100, fullScale, 900))
}

func TestFairShareNeverExceedsMunicipalDemand(t *testing.T) {
	cases := [][3]uint64{
		{0, 0, 0},
		{1, 1, 1},
		{100, 1000, 1000},
		{5000, 5000, 5000},
		{700, 10, 300},
	}
	for _, outputs := range cases {
		fx, city, subs := cityFixture(t, 1000, outputs)
		for tick := 0; tick < 4; tick++ {
			city.beginTick()
			fx.grid.Step(1)
			var sum uint64
			for _, s := range subs {
				sum += s.LastPowerDemand()
			}
			assert.Assert(t, sum <= 1000, "outputs %v tick %d: %d", outputs, tick, sum)
		}
	}
}

func TestCitySubstationsServeSteadily(t *testing.T) {
	fx, city, subs := cityFixture(t, 900, [3]uint64{5000, 5000, 5000})
	for tick := 1; tick <= 6; tick++ {
		city.beginTick()
		fx.grid.Step(1)
		for i, s := range subs {
			assert.Equal(t, s.LastPowerDemand(), uint64(300), "tick %d substation %d", tick, i)
			assert.Assert(t, !s.demand.short, "tick %d substation %d", tick, i)
		}
		if tick == 1 {
			assert.Equal(t, city.received, uint64(0))
			assert.Equal(t, city.carry, uint64(900))
			continue
		}
		for i, s := range subs {
			assert.Equal(t, s.PowerLoad(), uint64(300), "tick %d substation %d", tick, i)
		}
		assert.Equal(t, city.received, uint64(900), "tick %d", tick)
		assert.Equal(t, city.carry, uint64(0), "tick %d", tick)
	}
}

func TestCityNeverReceivesMoreThanDemand(t *testing.T) {
	fx, city, _ := cityFixture(t, 900, [3]uint64{5000, 5000, 5000})
	fx.grid.Step(1)
	city.beginTick()
	fx.grid.Step(1)
	assert.Equal(t, city.received, uint64(900))

	// Load answering last tick's larger claims still arrives.
	city.beginTick()
	city.demand = 300
	fx.grid.Step(1)
	assert.Equal(t, city.received, uint64(300))
	assert.Equal(t, city.carry, uint64(0))
}

func TestSubstationRecoversAfterOutage(t *testing.T) {
	fx, city, subs := cityFixture(t, 900, [3]uint64{5000, 5000, 5000})
	plant := fx.sites.factories[world.Koord{X: 1, Y: 1}]
	claims := func() []uint64 {
		var out []uint64
		for _, s := range subs {
			out = append(out, s.LastPowerDemand())
		}
		return out
	}
	fx.grid.Step(1)

	city.beginTick()
	plant.output = 0
	fx.grid.Step(1)
	assert.DeepEqual(t, claims(), []uint64{0, 450, 450})
	assert.Equal(t, subs[0].PowerLoad(), uint64(0))
	assert.Equal(t, city.received, uint64(600))

	// Held to the load it got for one tick, then back to an equal share.
	city.beginTick()
	plant.output = 5000
	fx.grid.Step(1)
	assert.DeepEqual(t, claims(), []uint64{0, 450, 450})
	assert.Equal(t, city.received, uint64(900))

	city.beginTick()
	fx.grid.Step(1)
	assert.DeepEqual(t, claims(), []uint64{300, 300, 300})
	assert.Equal(t, city.received, uint64(900))
}

func TestFactoryJoiningCityClaimsAtOnce(t *testing.T) {
	fx, city, subs := cityFixture(t, 900, [3]uint64{5000, 5000, 5000})
	works := &testFactory{demand: 300}
	fx.sites.factories[world.Koord{X: 1, Y: 2}] = works
	feeder := fx.add(t, at(0, 2), KindDemand)
	assert.Equal(t, feeder.Factory(), Factory(works))
	fx.grid.Step(1)
	assert.Equal(t, feeder.LastPowerDemand(), uint64(300))

	works.city = city
	city.factories = append(city.factories, works)
	city.beginTick()
	works.beginTick()
	fx.grid.Step(1)

	assert.Equal(t, feeder.City(), City(city))
	assert.Equal(t, len(city.subs), 4)
	var sum uint64
	for _, s := range append(subs, feeder) {
		assert.Equal(t, s.LastPowerDemand(), uint64(300), "substation %s", s.Pos())
		sum += s.LastPowerDemand()
	}
	assert.Equal(t, sum, uint64(1200))
}

func TestMunicipalDistribution(t *testing.T) {
	fx := newFixture(4, 3, DefaultConfig())
	city := &testCity{demand: 300}
	mill := &testFactory{demand: 100, city: city}
	city.factories = []*testFactory{mill}
	fx.sites.cities[world.Koord{X: 2, Y: 1}] = city
	fx.sites.factories[world.Koord{X: 0, Y: 1}] = &testFactory{output: 200, producer: true}

	fx.add(t, at(1, 1), KindSupply)
	sub := fx.add(t, at(2, 1), KindDemand)
	assert.Equal(t, sub.City(), City(city))

	fx.grid.Step(1)
	city.beginTick()
	mill.beginTick()
	fx.grid.Step(1)

	assert.Equal(t, sub.PowerLoad(), uint64(200))
	assert.Equal(t, mill.received, uint64(50))
	assert.Equal(t, mill.carry, uint64(50))
	assert.Equal(t, city.received, uint64(150))
	assert.Equal(t, city.carry, uint64(150))
}

func TestFactoryInCityReroutesToCity(t *testing.T) {
	fx, _, works := pairFixture(t, 1000, 800)
	b := fx.grid.At(at(2, 1))
	city := &testCity{demand: 200, factories: []*testFactory{works}}
	works.city = city

	fx.grid.Step(1)
	assert.Assert(t, b.Factory() == nil)
	assert.Equal(t, b.City(), City(city))
	assert.Equal(t, b.LastPowerDemand(), uint64(1000))
	assert.Equal(t, len(city.subs), 1)
}

func TestRevenueRolloverIsDeterministic(t *testing.T) {
	cfg := Config{RevenueFactor: 1, CalibrationDeltaT: 1, RevenueShift: 0, RolloverThreshold: 25}
	run := func() []booking {
		fx := newFixture(4, 3, cfg)
		fx.sites.factories[world.Koord{X: 0, Y: 1}] = &testFactory{output: 100, producer: true}
		fx.sites.factories[world.Koord{X: 3, Y: 1}] = &testFactory{demand: 10}
		fx.add(t, at(1, 1), KindSupply)
		fx.add(t, at(2, 1), KindDemand)
		for i := 0; i < 8; i++ {
			fx.grid.Step(1)
		}
		return fx.ledger.bookings
	}

	want := []booking{
		{tick: 4, owner: world.PublicPlayer, amount: 30},
		{tick: 7, owner: world.PublicPlayer, amount: 30},
	}
	first := run()
	if diff := cmp.Diff(want, first, cmp.AllowUnexported(booking{})); diff != "" {
		t.Fatalf("bookings (-want +got):\n%s", diff)
	}
	assert.DeepEqual(t, first, run(), cmp.AllowUnexported(booking{}))
}

func TestRemoveDemandLeavesCity(t *testing.T) {
	fx, city, subs := cityFixture(t, 900, [3]uint64{100, 100, 100})
	assert.NilError(t, fx.grid.Remove(subs[1].Pos()))
	assert.Equal(t, len(city.subs), 2)
	assert.Equal(t, len(fx.grid.DemandNodes()), 2)
	assertConsistent(t, fx.grid)
}

func TestSnapshotCopiesState(t *testing.T) {
	fx, _, _ := pairFixture(t, 1000, 800)
	fx.grid.Step(1)
	s := fx.grid.Snapshot()

	assert.Equal(t, s.Tick, uint64(1))
	assert.Equal(t, len(s.Nets), 1)
	assert.Equal(t, s.TotalSupply(), uint64(1000))
	assert.Equal(t, s.TotalDemand(), uint64(800))
	assert.Equal(t, s.Demand[0].Ribi, "W")
	assert.Equal(t, s.Conductors, 0)

	fx.grid.Step(1)
	assert.Equal(t, s.Tick, uint64(1))
}

func TestFormatPower(t *testing.T) {
	assert.Equal(t, FormatPower(1500), "1.5 MW")
	assert.Equal(t, FormatPower(0), "0 W")
}
