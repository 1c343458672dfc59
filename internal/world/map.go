package world

import "fmt"

// Terrain describes the surface of a ground tile.
type Terrain uint8

const (
	TerrainPlains   Terrain = iota // Flat buildable land
	TerrainForest                  // Buildable, lower site score
	TerrainHills                   // Sloped land
	TerrainMountain                // High ground
	TerrainWater                   // Below sea level, nothing is built here
)

// TileKind separates surface tiles from tunnel interiors.
type TileKind uint8

const (
	KindGround TileKind = iota
	KindTunnel
)

// Slope is the raised edge of a tile, or SlopeFlat.
// A sloped tile rises one height level towards that edge.
type Slope = Ribi

// SlopeFlat marks a level tile.
const SlopeFlat Slope = RibiNone

// Tile is one ground or tunnel tile.
type Tile struct {
	Pos     Koord3D  `json:"pos"`
	Kind    TileKind `json:"kind"`
	Slope   Slope    `json:"slope"`
	Terrain Terrain  `json:"terrain"`
}

// IsGround reports whether the tile is on the surface.
func (t *Tile) IsGround() bool { return t.Kind == KindGround }

// IsTunnel reports whether the tile is a tunnel interior.
func (t *Tile) IsTunnel() bool { return t.Kind == KindTunnel }

// EdgeHeight returns the height of the tile edge facing d, and false if
// that edge cannot carry a connection (the sides of a slope).
func (t *Tile) EdgeHeight(d Ribi) (int, bool) {
	switch {
	case t.Slope == SlopeFlat:
		return t.Pos.Z, true
	case d == t.Slope:
		return t.Pos.Z + 1, true
	case d == t.Slope.Reverse():
		return t.Pos.Z, true
	default:
		return 0, false
	}
}

// Map holds every tile of the world. A column has at most one ground tile
// and any number of tunnel tiles below or above it.
type Map struct {
	Width   int               `json:"width"`
	Height  int               `json:"height"`
	columns map[Koord][]*Tile // ground tile first
}

// NewMap creates an empty map of the given size.
func NewMap(width, height int) *Map {
	return &Map{
		Width:   width,
		Height:  height,
		columns: make(map[Koord][]*Tile, width*height),
	}
}

// InBounds returns true if the column lies on the map.
func (m *Map) InBounds(k Koord) bool {
	return k.X >= 0 && k.Y >= 0 && k.X < m.Width && k.Y < m.Height
}

// SetGround places (or replaces) the ground tile of a column.
func (m *Map) SetGround(t *Tile) {
	t.Kind = KindGround
	k := t.Pos.XY()
	col := m.columns[k]
	if len(col) > 0 && col[0].IsGround() {
		col[0] = t
		return
	}
	m.columns[k] = append([]*Tile{t}, col...)
}

// AddTunnel digs a flat tunnel tile at pos. It fails if a tile already
// occupies that height level.
func (m *Map) AddTunnel(pos Koord3D) (*Tile, error) {
	k := pos.XY()
	if !m.InBounds(k) {
		return nil, fmt.Errorf("tunnel at %s: out of bounds", pos)
	}
	if m.Lookup(pos) != nil {
		return nil, fmt.Errorf("tunnel at %s: tile occupied", pos)
	}
	t := &Tile{Pos: pos, Kind: KindTunnel}
	m.columns[k] = append(m.columns[k], t)
	return t, nil
}

// Ground returns the surface tile of a column, or nil.
func (m *Map) Ground(k Koord) *Tile {
	col := m.columns[k]
	if len(col) > 0 && col[0].IsGround() {
		return col[0]
	}
	return nil
}

// Lookup returns the tile at an exact position, or nil.
func (m *Map) Lookup(pos Koord3D) *Tile {
	for _, t := range m.columns[pos.XY()] {
		if t.Pos.Z == pos.Z {
			return t
		}
	}
	return nil
}

// Neighbour returns the tile adjacent to t in direction d that a line could
// run into: same kind (ground to ground, tunnel to tunnel) and a matching
// edge height on both sides. Returns nil if there is none.
func (m *Map) Neighbour(t *Tile, d Ribi) *Tile {
	h, ok := t.EdgeHeight(d)
	if !ok {
		return nil
	}
	k := t.Pos.XY().Add(d.Offset())
	back := d.Reverse()
	for _, n := range m.columns[k] {
		if n.Kind != t.Kind {
			continue
		}
		if nh, ok := n.EdgeHeight(back); ok && nh == h {
			return n
		}
	}
	return nil
}

// TileCount returns the total number of tiles in the map.
func (m *Map) TileCount() int {
	n := 0
	for _, col := range m.columns {
		n += len(col)
	}
	return n
}

// EachGround calls fn for every ground tile in row-major order.
func (m *Map) EachGround(fn func(t *Tile)) {
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if t := m.Ground(Koord{X: x, Y: y}); t != nil {
				fn(t)
			}
		}
	}
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(%dx%d, tiles=%d)", m.Width, m.Height, m.TileCount())
}
