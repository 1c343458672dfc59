// World generation using layered simplex noise.
// Generates an integer height map, then derives slopes and terrain.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Width       int     // Columns along x
	Height      int     // Columns along y
	Seed        int64   // Random seed (0 = random)
	Levels      int     // Number of height levels above sea
	SeaLevel    float64 // Elevation threshold for water (0.0–1.0)
	MountainLvl float64 // Elevation threshold for mountains (0.0–1.0)
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:       128,
		Height:      128,
		Seed:        0,
		Levels:      8,
		SeaLevel:    0.22,
		MountainLvl: 0.78,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:       24,
		Height:      24,
		Seed:        42,
		Levels:      4,
		SeaLevel:    0.15,
		MountainLvl: 0.85,
	}
}

// Generate creates a complete world map with heights, slopes and terrain.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	levels := cfg.Levels
	if levels < 1 {
		levels = 1
	}

	elevNoise := opensimplex.NewNormalized(seed)
	forestNoise := opensimplex.NewNormalized(seed + 1)

	elev := make([][]float64, cfg.Width)
	heights := make([][]int, cfg.Width)
	for x := 0; x < cfg.Width; x++ {
		elev[x] = make([]float64, cfg.Height)
		heights[x] = make([]int, cfg.Height)
		for y := 0; y < cfg.Height; y++ {
			e := octaveNoise(elevNoise, float64(x), float64(y), 4, 0.04, 0.5)
			elev[x][y] = e
			heights[x][y] = heightLevel(e, cfg.SeaLevel, levels)
		}
	}

	m := NewMap(cfg.Width, cfg.Height)
	for x := 0; x < cfg.Width; x++ {
		for y := 0; y < cfg.Height; y++ {
			z := heights[x][y]
			slope := deriveSlope(heights, x, y)
			terrain := deriveTerrain(elev[x][y], octaveNoise(forestNoise, float64(x), float64(y), 2, 0.09, 0.5), slope, cfg)
			m.SetGround(&Tile{
				Pos:     Koord3D{X: x, Y: y, Z: z},
				Slope:   slope,
				Terrain: terrain,
			})
		}
	}
	return m
}

// heightLevel quantises a normalised elevation into a height level.
// Everything at or below the sea threshold sits on level 0.
func heightLevel(e, sea float64, levels int) int {
	if e <= sea {
		return 0
	}
	z := int(math.Floor((e - sea) / (1 - sea) * float64(levels+1)))
	if z > levels {
		z = levels
	}
	return z
}

// deriveSlope raises the edge towards a neighbour exactly one level higher,
// unless the opposite side is also higher (a trough stays flat).
func deriveSlope(h [][]int, x, y int) Slope {
	z := h[x][y]
	at := func(k Koord) (int, bool) {
		if k.X < 0 || k.Y < 0 || k.X >= len(h) || k.Y >= len(h[0]) {
			return 0, false
		}
		return h[k.X][k.Y], true
	}
	here := Koord{X: x, Y: y}
	for _, d := range Directions {
		up, ok := at(here.Add(d.Offset()))
		if !ok || up != z+1 {
			continue
		}
		if down, ok := at(here.Add(d.Reverse().Offset())); ok && down > z {
			continue
		}
		return d
	}
	return SlopeFlat
}

// deriveTerrain determines the surface type from elevation and vegetation noise.
func deriveTerrain(elev, vegetation float64, slope Slope, cfg GenConfig) Terrain {
	if elev <= cfg.SeaLevel {
		return TerrainWater
	}
	if elev > cfg.MountainLvl {
		return TerrainMountain
	}
	if slope != SlopeFlat {
		return TerrainHills
	}
	if vegetation > 0.6 {
		return TerrainForest
	}
	return TerrainPlains
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(m *Map) map[Terrain]int {
	counts := make(map[Terrain]int)
	m.EachGround(func(t *Tile) {
		counts[t.Terrain]++
	})
	return counts
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainPlains:
		return "Plains"
	case TerrainForest:
		return "Forest"
	case TerrainHills:
		return "Hills"
	case TerrainMountain:
		return "Mountain"
	case TerrainWater:
		return "Water"
	default:
		return "Unknown"
	}
}
