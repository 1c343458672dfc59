package world

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestGenerateDeterministic(t *testing.T) {
	cfg := SmallTestConfig()
	a := Generate(cfg)
	b := Generate(cfg)
	assert.Equal(t, a.TileCount(), cfg.Width*cfg.Height)
	a.EachGround(func(ta *Tile) {
		tb := b.Ground(ta.Pos.XY())
		assert.Equal(t, *ta, *tb)
	})
}

func TestGeneratedSlopesConnectUphill(t *testing.T) {
	m := Generate(SmallTestConfig())
	m.EachGround(func(tile *Tile) {
		if tile.Slope == SlopeFlat {
			return
		}
		up := m.Ground(tile.Pos.XY().Add(tile.Slope.Offset()))
		assert.Assert(t, up != nil)
		assert.Equal(t, up.Pos.Z, tile.Pos.Z+1)
	})
}

func TestPlaceSitesDoNotOverlap(t *testing.T) {
	m := Generate(DefaultGenConfig())
	plan := PlaceSites(m, 7)
	all := append(append([]Site{}, plan.Cities...), plan.Factories...)
	for i := range all {
		assert.Assert(t, all[i].Name != "")
		for j := i + 1; j < len(all); j++ {
			for x := 0; x < all[j].Size.X; x++ {
				for y := 0; y < all[j].Size.Y; y++ {
					k := all[j].Origin.Add(Koord{X: x, Y: y})
					assert.Assert(t, !all[i].Contains(k), "%s overlaps %s", all[i].Name, all[j].Name)
				}
			}
		}
	}
}
