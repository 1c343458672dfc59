package world

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestRibiReverse(t *testing.T) {
	assert.Equal(t, North.Reverse(), South)
	assert.Equal(t, East.Reverse(), West)
	assert.Equal(t, South.Reverse(), North)
	assert.Equal(t, West.Reverse(), East)
	assert.Equal(t, (North | East).Reverse(), South|West)
	assert.Equal(t, RibiAll.Reverse(), RibiAll)
}

func TestRibiCountAndHas(t *testing.T) {
	r := North | West
	assert.Equal(t, r.Count(), 2)
	assert.Assert(t, r.Has(North))
	assert.Assert(t, !r.Has(East))
	assert.Assert(t, !r.Has(RibiNone))
	assert.Equal(t, r.String(), "NW")
}

func TestOffsetsCancel(t *testing.T) {
	for _, d := range Directions {
		sum := d.Offset().Add(d.Reverse().Offset())
		assert.Equal(t, sum, Koord{})
	}
}
