package power

import (
	"math"
	"math/bits"
)

// Power quantities are unsigned 64-bit integers in kilowatts. Accumulators
// saturate at math.MaxUint64 instead of wrapping, so the largest
// representable grid carries about 1.8e19 kW per tick.

// WattsPerUnit converts a power quantity to watts for display.
const WattsPerUnit = 1000

// fullScale is 1.0 in the Q16 fixed-point ratios kept for display.
const fullScale uint64 = 1 << 16

func satAdd(a, b uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return s
}

// mulDiv returns a*b/c using a 128-bit intermediate, so the product is
// scaled before the division and small values do not truncate to zero.
// Saturates if the quotient does not fit; returns 0 when c is 0.
func mulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, c)
	return q
}

// servedLoad scales a request by min(1, supply/demand).
func servedLoad(requested, supply, demand uint64) uint64 {
	if requested == 0 || supply == 0 {
		return 0
	}
	if supply >= demand {
		return requested
	}
	return mulDiv(requested, supply, demand)
}
