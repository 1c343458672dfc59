// Site placement — finds flat land for cities and factories.
package world

import (
	"math/rand"
	"sort"

	"github.com/zyedidia/generic/mapset"
)

// SiteKind categorizes what a site is used for.
type SiteKind uint8

const (
	SiteCity       SiteKind = iota
	SitePowerPlant          // Factory that feeds the grid
	SiteConsumer            // Factory that draws from the grid
)

// Site holds the parameters for one initial placement.
type Site struct {
	Kind   SiteKind
	Origin Koord // north-west corner of the footprint
	Size   Koord // footprint in columns
	Z      int
	Score  float64
	Name   string
}

// Contains reports whether k lies inside the site footprint.
func (s Site) Contains(k Koord) bool {
	return k.X >= s.Origin.X && k.Y >= s.Origin.Y &&
		k.X < s.Origin.X+s.Size.X && k.Y < s.Origin.Y+s.Size.Y
}

// Center returns the middle column of the footprint.
func (s Site) Center() Koord {
	return Koord{X: s.Origin.X + s.Size.X/2, Y: s.Origin.Y + s.Size.Y/2}
}

// SitePlan is the result of PlaceSites.
type SitePlan struct {
	Cities    []Site
	Factories []Site
}

// PlaceSites finds locations for cities, power plants and consumer factories.
// Placement is deterministic for a given map and seed.
func PlaceSites(m *Map, seed int64) SitePlan {
	rng := rand.New(rand.NewSource(seed + 200))

	type scored struct {
		at    Koord
		score float64
	}
	var candidates []scored
	m.EachGround(func(t *Tile) {
		if s := siteScore(m, t); s > 0 {
			candidates = append(candidates, scored{t.Pos.XY(), s})
		}
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	taken := mapset.New[Koord]()
	var plan SitePlan

	place := func(kind SiteKind, size Koord, count, spacing int) []Site {
		var out []Site
		for _, c := range candidates {
			if len(out) >= count {
				break
			}
			site, ok := fitSite(m, c.at, size)
			if !ok || overlaps(site, taken, spacing) {
				continue
			}
			site.Kind = kind
			site.Score = c.score
			claim(site, taken)
			out = append(out, site)
		}
		return out
	}

	plan.Cities = place(SiteCity, Koord{X: 5, Y: 5}, 2+rng.Intn(3), 12)
	plan.Factories = append(plan.Factories, place(SitePowerPlant, Koord{X: 2, Y: 2}, 2+rng.Intn(2), 6)...)
	plan.Factories = append(plan.Factories, place(SiteConsumer, Koord{X: 2, Y: 2}, 3+rng.Intn(3), 4)...)

	names := generateNames(rng, len(plan.Cities)+len(plan.Factories))
	for i := range plan.Cities {
		plan.Cities[i].Name = names[i]
	}
	for i := range plan.Factories {
		suffix := " Works"
		if plan.Factories[i].Kind == SitePowerPlant {
			suffix = " Power Station"
		}
		plan.Factories[i].Name = names[len(plan.Cities)+i] + suffix
	}
	return plan
}

// siteScore evaluates how desirable a tile is as a site origin.
// Prefers flat plains with buildable land around.
func siteScore(m *Map, t *Tile) float64 {
	if t.Slope != SlopeFlat {
		return 0
	}
	score := 0.0
	switch t.Terrain {
	case TerrainPlains:
		score += 3.0
	case TerrainForest:
		score += 1.5
	default:
		return 0
	}
	for _, d := range Directions {
		n := m.Ground(t.Pos.XY().Add(d.Offset()))
		if n != nil && n.Terrain != TerrainWater && n.Slope == SlopeFlat {
			score += 0.5
		}
	}
	// Prefer lower land slightly; tie-break by position for determinism.
	score -= float64(t.Pos.Z) * 0.1
	return score
}

// fitSite checks that the whole footprint is flat, dry and level.
func fitSite(m *Map, origin Koord, size Koord) (Site, bool) {
	first := m.Ground(origin)
	if first == nil {
		return Site{}, false
	}
	for dx := 0; dx < size.X; dx++ {
		for dy := 0; dy < size.Y; dy++ {
			t := m.Ground(origin.Add(Koord{X: dx, Y: dy}))
			if t == nil || t.Slope != SlopeFlat || t.Terrain == TerrainWater || t.Pos.Z != first.Pos.Z {
				return Site{}, false
			}
		}
	}
	return Site{Origin: origin, Size: size, Z: first.Pos.Z}, true
}

// overlaps reports whether the footprint grown by spacing touches a claimed column.
func overlaps(s Site, taken mapset.Set[Koord], spacing int) bool {
	for x := s.Origin.X - spacing; x < s.Origin.X+s.Size.X+spacing; x++ {
		for y := s.Origin.Y - spacing; y < s.Origin.Y+s.Size.Y+spacing; y++ {
			if taken.Has(Koord{X: x, Y: y}) {
				return true
			}
		}
	}
	return false
}

func claim(s Site, taken mapset.Set[Koord]) {
	for dx := 0; dx < s.Size.X; dx++ {
		for dy := 0; dy < s.Size.Y; dy++ {
			taken.Put(s.Origin.Add(Koord{X: dx, Y: dy}))
		}
	}
}

// generateNames produces procedural names by combining syllables.
func generateNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"Iron", "Green", "Ash", "Stone", "Mill", "Cross", "Black",
		"Silver", "Red", "White", "Dark", "Bright", "High", "Low",
		"Old", "New", "Far", "Deep", "Long", "Broad", "Gold", "Frost",
		"Storm", "Thorn", "Elm", "Oak", "Pine", "Copper", "River",
	}
	suffixes := []string{
		"haven", "ford", "hollow", "wick", "bridge", "gate", "keep",
		"stead", "wood", "field", "dale", "crest", "vale", "port",
		"town", "bury", "marsh", "well", "brook", "cliff", "moor",
		"ridge", "watch", "fall", "rest", "point", "reach", "helm",
	}

	used := mapset.New[string]()
	names := make([]string, 0, count)

	for len(names) < count {
		name := prefixes[rng.Intn(len(prefixes))] + suffixes[rng.Intn(len(suffixes))]
		if !used.Has(name) {
			used.Put(name)
			names = append(names, name)
		}
	}

	return names
}

// PopulationForSite returns an initial population for a city site.
func PopulationForSite(rng *rand.Rand) uint32 {
	return 500 + uint32(rng.Intn(2500))
}
