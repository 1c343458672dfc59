// Package world provides the tile grid, terrain, and spatial data structures.
// Positions are square-grid columns (x, y) with an integer height level z.
package world

import "fmt"

// Koord is a column position on the map.
type Koord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the koord offset by o.
func (k Koord) Add(o Koord) Koord {
	return Koord{X: k.X + o.X, Y: k.Y + o.Y}
}

func (k Koord) String() string {
	return fmt.Sprintf("%d,%d", k.X, k.Y)
}

// Koord3D is a tile position: a column plus a height level.
type Koord3D struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// XY drops the height level.
func (k Koord3D) XY() Koord {
	return Koord{X: k.X, Y: k.Y}
}

func (k Koord3D) String() string {
	return fmt.Sprintf("%d,%d,%d", k.X, k.Y, k.Z)
}

// Ribi is a bitmask of the four cardinal directions.
type Ribi uint8

const (
	RibiNone Ribi = 0
	North    Ribi = 1 << 0
	East     Ribi = 1 << 1
	South    Ribi = 1 << 2
	West     Ribi = 1 << 3
	RibiAll  Ribi = North | East | South | West
)

// Directions lists the single-direction ribis in scan order.
var Directions = [4]Ribi{North, East, South, West}

// Reverse mirrors every direction in r.
func (r Ribi) Reverse() Ribi {
	return ((r << 2) | (r >> 2)) & RibiAll
}

// Has reports whether all directions of d are set in r.
func (r Ribi) Has(d Ribi) bool {
	return d != RibiNone && r&d == d
}

// Count returns the number of directions set.
func (r Ribi) Count() int {
	n := 0
	for _, d := range Directions {
		if r&d != 0 {
			n++
		}
	}
	return n
}

// Offset returns the column step for a single direction.
// North is towards smaller y.
func (r Ribi) Offset() Koord {
	switch r {
	case North:
		return Koord{X: 0, Y: -1}
	case East:
		return Koord{X: 1, Y: 0}
	case South:
		return Koord{X: 0, Y: 1}
	case West:
		return Koord{X: -1, Y: 0}
	default:
		return Koord{}
	}
}

func (r Ribi) String() string {
	if r == RibiNone {
		return "-"
	}
	s := ""
	for i, d := range Directions {
		if r&d != 0 {
			s += string("NESW"[i])
		}
	}
	return s
}

// PlayerID identifies the owner of a built object.
type PlayerID uint8

// PublicPlayer is the neutral public-service owner. Its objects connect to everyone.
const PublicPlayer PlayerID = 1
