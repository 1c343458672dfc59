package economy

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// LoadCurve modulates base output and demand over time with smooth noise,
// so consumption drifts instead of holding a flat line. The curve is
// deterministic for a seed, a tick and a salt.
type LoadCurve struct {
	noise  opensimplex.Noise
	Period float64 // ticks per noise unit; larger is smoother
	Swing  uint64  // maximum deviation from 100, in percent
}

// NewLoadCurve returns a curve swinging ±25% with a period of 96 ticks.
func NewLoadCurve(seed int64) *LoadCurve {
	return &LoadCurve{
		noise:  opensimplex.NewNormalized(seed + 7),
		Period: 96,
		Swing:  25,
	}
}

// Percent returns the load factor for a tick, within 100 ± Swing.
// A nil curve is flat.
func (c *LoadCurve) Percent(tick uint64, salt float64) uint64 {
	if c == nil || c.Swing == 0 {
		return 100
	}
	period := c.Period
	if period <= 0 {
		period = 1
	}
	n := c.noise.Eval2(float64(tick)/period, salt) // 0..1
	return 100 - c.Swing + uint64(n*float64(2*c.Swing))
}

// Scale applies the load factor of a tick to a base value.
func (c *LoadCurve) Scale(base, tick uint64, salt float64) uint64 {
	return base * c.Percent(tick, salt) / 100
}
