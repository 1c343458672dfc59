package power

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/talgya/gridsim/internal/finance"
	"github.com/talgya/gridsim/internal/world"
)

type testFactory struct {
	output   uint64
	demand   uint64
	producer bool
	city     *testCity

	received uint64
	carry    uint64
}

func (f *testFactory) PowerOutput() uint64     { return f.output }
func (f *testFactory) PowerDemand() uint64     { return f.demand }
func (f *testFactory) Received() uint64        { return f.received }
func (f *testFactory) IsPowerProducer() bool   { return f.producer }
func (f *testFactory) AddPower(a uint64)       { f.received += a }
func (f *testFactory) AddPowerDemand(a uint64) { f.carry += a }
func (f *testFactory) beginTick()              { f.received, f.carry = 0, 0 }
func (f *testFactory) City() City {
	if f.city == nil {
		return nil
	}
	return f.city
}

type testCity struct {
	demand    uint64
	factories []*testFactory
	subs      []*Node

	received uint64
	carry    uint64
}

func (c *testCity) PowerDemand() uint64     { return c.demand }
func (c *testCity) Received() uint64        { return c.received }
func (c *testCity) AddPower(a uint64)       { c.received += a }
func (c *testCity) AddPowerDemand(a uint64) { c.carry += a }
func (c *testCity) Substations() []*Node    { return c.subs }
func (c *testCity) AddSubstation(n *Node)   { c.subs = append(c.subs, n) }
func (c *testCity) beginTick()              { c.received, c.carry = 0, 0 }

func (c *testCity) RemoveSubstation(n *Node) {
	for i, s := range c.subs {
		if s == n {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

func (c *testCity) Factories() []Factory {
	out := make([]Factory, len(c.factories))
	for i, f := range c.factories {
		out[i] = f
	}
	return out
}

type testSites struct {
	factories map[world.Koord]*testFactory
	cities    map[world.Koord]*testCity
}

func newTestSites() *testSites {
	return &testSites{
		factories: make(map[world.Koord]*testFactory),
		cities:    make(map[world.Koord]*testCity),
	}
}

func (s *testSites) FactoryAt(k world.Koord) Factory {
	if f, ok := s.factories[k]; ok {
		return f
	}
	return nil
}

func (s *testSites) CityAt(k world.Koord) City {
	if c, ok := s.cities[k]; ok {
		return c
	}
	return nil
}

type booking struct {
	tick   uint64
	owner  world.PlayerID
	amount int64
}

type testLedger struct {
	grid     *Grid
	bookings []booking
}

func (l *testLedger) BookRevenue(owner world.PlayerID, amount int64, _ world.Koord, _ finance.Category) {
	l.bookings = append(l.bookings, booking{tick: l.grid.Tick(), owner: owner, amount: amount})
}

func flatMap(w, h int) *world.Map {
	m := world.NewMap(w, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			m.SetGround(&world.Tile{Pos: world.Koord3D{X: x, Y: y}})
		}
	}
	return m
}

func at(x, y int) world.Koord3D { return world.Koord3D{X: x, Y: y} }

type fixture struct {
	m      *world.Map
	sites  *testSites
	ledger *testLedger
	grid   *Grid
}

func newFixture(w, h int, cfg Config) *fixture {
	fx := &fixture{m: flatMap(w, h), sites: newTestSites(), ledger: &testLedger{}}
	fx.grid = NewGrid(cfg, fx.m, fx.sites, fx.ledger)
	fx.ledger.grid = fx.grid
	return fx
}

func (fx *fixture) add(t *testing.T, pos world.Koord3D, kind Kind) *Node {
	t.Helper()
	n, err := fx.grid.Add(pos, kind, world.PublicPlayer)
	assert.NilError(t, err)
	return n
}

func (fx *fixture) line(t *testing.T, y, from, to int) {
	t.Helper()
	for x := from; x <= to; x++ {
		fx.add(t, at(x, y), KindConductor)
	}
}

func assertConsistent(t *testing.T, g *Grid) {
	t.Helper()
	assert.NilError(t, g.Audit())
}
