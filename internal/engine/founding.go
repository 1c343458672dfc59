package engine

import (
	"log/slog"
	"math/rand"

	"github.com/talgya/gridsim/internal/economy"
	"github.com/talgya/gridsim/internal/finance"
	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/social"
	"github.com/talgya/gridsim/internal/world"
)

// suburbRadius is how far from a city's center a works still counts as
// one of the city's factories.
const suburbRadius = 14

// companies own the lines laid at founding, alternating per power station.
var companies = []finance.Player{
	{Number: 2, Name: "Northern Grid Co."},
	{Number: 3, Name: "Southern Grid Co."},
}

// Found populates a fresh world from the site plan: players, cities,
// factories, and a line from every power station to its nearest works and
// its nearest city. It must run before the engine starts.
func (s *Simulation) Found(seed int64) {
	plan := world.PlaceSites(s.Map, seed)
	rng := rand.New(rand.NewSource(seed + 400))

	s.Ledger.AddPlayer(finance.Player{Number: world.PublicPlayer, Name: "Public Service"})
	for _, p := range companies {
		s.Ledger.AddPlayer(p)
	}

	for _, site := range plan.Cities {
		s.AddCity(social.NewCity(0, site.Name, site.Origin, site.Size, world.PopulationForSite(rng)))
	}

	var plants, works []*economy.Factory
	for _, site := range plan.Factories {
		switch site.Kind {
		case world.SitePowerPlant:
			f := economy.NewPowerPlant(0, site.Name, site.Origin, site.Size, 1500+uint64(rng.Intn(2500)))
			s.AddFactory(f)
			plants = append(plants, f)
		default:
			f := economy.NewWorks(0, site.Name, site.Origin, site.Size, 200+uint64(rng.Intn(800)))
			if c := s.nearestCity(site.Center()); c != nil && manhattan(cityCenter(c), site.Center()) <= suburbRadius {
				f.CityID = c.ID
			}
			s.AddFactory(f)
			works = append(works, f)
		}
	}

	terminals := make(map[*economy.Factory]world.Koord)
	laid, failed := 0, 0
	lay := func(from, to world.Koord, owner world.PlayerID) {
		if _, err := s.layLine(from, to, owner, power.KindSupply, power.KindDemand); err != nil {
			slog.Debug("line not laid", "error", err)
			failed++
			return
		}
		laid++
	}

	for i, plant := range plants {
		owner := companies[i%len(companies)].Number
		w := nearestFactory(works, factoryCenter(plant))
		c := s.nearestCity(factoryCenter(plant))

		aim := factoryCenter(plant)
		switch {
		case w != nil:
			aim = factoryCenter(w)
		case c != nil:
			aim = cityCenter(c)
		}
		start, ok := s.terminal(plant.Origin, plant.Size, aim)
		if !ok {
			continue
		}

		if w != nil {
			end, known := terminals[w]
			if !known {
				if end, ok = s.terminal(w.Origin, w.Size, start); ok {
					terminals[w] = end
				}
			}
			if known || ok {
				lay(start, end, owner)
			}
		}
		if c != nil {
			if end, ok := s.cityTerminal(c, start); ok {
				lay(start, end, owner)
			}
		}
	}

	slog.Info("world founded",
		"cities", len(s.Cities),
		"power_plants", len(plants),
		"works", len(works),
		"lines", laid,
		"lines_failed", failed,
		"nets", s.Grid.NetCount(),
	)
}

// terminal picks the buildable column next to a footprint closest to aim.
func (s *Simulation) terminal(origin, size, aim world.Koord) (world.Koord, bool) {
	var ring []world.Koord
	for x := origin.X; x < origin.X+size.X; x++ {
		ring = append(ring, world.Koord{X: x, Y: origin.Y - 1}, world.Koord{X: x, Y: origin.Y + size.Y})
	}
	for y := origin.Y; y < origin.Y+size.Y; y++ {
		ring = append(ring, world.Koord{X: origin.X - 1, Y: y}, world.Koord{X: origin.X + size.X, Y: y})
	}
	return s.closestBuildable(ring, aim)
}

// cityTerminal picks the buildable column inside city limits closest to from.
func (s *Simulation) cityTerminal(c *social.City, from world.Koord) (world.Koord, bool) {
	var cols []world.Koord
	for x := c.Origin.X; x < c.Origin.X+c.Size.X; x++ {
		for y := c.Origin.Y; y < c.Origin.Y+c.Size.Y; y++ {
			cols = append(cols, world.Koord{X: x, Y: y})
		}
	}
	return s.closestBuildable(cols, from)
}

func (s *Simulation) closestBuildable(cols []world.Koord, aim world.Koord) (world.Koord, bool) {
	best, found := world.Koord{}, false
	for _, k := range cols {
		t := s.Map.Ground(k)
		if t == nil || t.Terrain == world.TerrainWater || s.footprints[k] != nil {
			continue
		}
		if !found || manhattan(k, aim) < manhattan(best, aim) {
			best, found = k, true
		}
	}
	return best, found
}

func (s *Simulation) nearestCity(k world.Koord) *social.City {
	var best *social.City
	for _, c := range s.Cities {
		if best == nil || manhattan(cityCenter(c), k) < manhattan(cityCenter(best), k) {
			best = c
		}
	}
	return best
}

func nearestFactory(list []*economy.Factory, k world.Koord) *economy.Factory {
	var best *economy.Factory
	for _, f := range list {
		if best == nil || manhattan(factoryCenter(f), k) < manhattan(factoryCenter(best), k) {
			best = f
		}
	}
	return best
}

func cityCenter(c *social.City) world.Koord {
	return world.Koord{X: c.Origin.X + c.Size.X/2, Y: c.Origin.Y + c.Size.Y/2}
}

func factoryCenter(f *economy.Factory) world.Koord {
	return world.Koord{X: f.Origin.X + f.Size.X/2, Y: f.Origin.Y + f.Size.Y/2}
}
