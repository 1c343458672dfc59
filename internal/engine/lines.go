package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/world"
)

var errNoRoute = errors.New("no buildable route")

// LayLine builds a line between two columns along an L-shaped route,
// horizontal leg first, falling back to vertical first. The first tile
// gets a node of kind first and the last a node of kind last. Tiles that
// already carry a connectable node are reused as they are. Returns the
// number of nodes built.
func (s *Simulation) LayLine(from, to world.Koord, owner world.PlayerID, first, last power.Kind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layLine(from, to, owner, first, last)
}

func (s *Simulation) layLine(from, to world.Koord, owner world.PlayerID, first, last power.Kind) (int, error) {
	var tiles []*world.Tile
	for _, horizontal := range []bool{true, false} {
		if t, ok := s.routeTiles(route(from, to, horizontal), owner); ok {
			tiles = t
			break
		}
	}
	if tiles == nil {
		return 0, fmt.Errorf("line %s -> %s: %w", from, to, errNoRoute)
	}

	built := 0
	for i, t := range tiles {
		if s.Grid.At(t.Pos) != nil {
			continue
		}
		kind := power.KindConductor
		switch i {
		case len(tiles) - 1:
			kind = last
		case 0:
			kind = first
		}
		if _, err := s.Grid.Add(t.Pos, kind, owner); err != nil {
			return built, fmt.Errorf("line %s -> %s: %w", from, to, err)
		}
		built++
	}
	return built, nil
}

// routeTiles resolves a column path to ground tiles, or reports false if a
// column is water, factory ground, a foreign line, or not reachable from
// the previous tile.
func (s *Simulation) routeTiles(path []world.Koord, owner world.PlayerID) ([]*world.Tile, bool) {
	tiles := make([]*world.Tile, 0, len(path))
	for i, k := range path {
		t := s.Map.Ground(k)
		if t == nil || t.Terrain == world.TerrainWater || s.footprints[k] != nil {
			return nil, false
		}
		if n := s.Grid.At(t.Pos); n != nil && !power.CanConnect(n.Owner(), owner) {
			return nil, false
		}
		if i > 0 && s.Map.Neighbour(tiles[i-1], direction(path[i-1], k)) != t {
			return nil, false
		}
		tiles = append(tiles, t)
	}
	return tiles, true
}

// route walks from one column to another, one axis at a time.
func route(from, to world.Koord, horizontalFirst bool) []world.Koord {
	path := []world.Koord{from}
	cur := from
	alongX := func() {
		for cur.X != to.X {
			cur.X += sign(to.X - cur.X)
			path = append(path, cur)
		}
	}
	alongY := func() {
		for cur.Y != to.Y {
			cur.Y += sign(to.Y - cur.Y)
			path = append(path, cur)
		}
	}
	if horizontalFirst {
		alongX()
		alongY()
	} else {
		alongY()
		alongX()
	}
	return path
}

func direction(a, b world.Koord) world.Ribi {
	for _, d := range world.Directions {
		if a.Add(d.Offset()) == b {
			return d
		}
	}
	return world.RibiNone
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func manhattan(a, b world.Koord) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
