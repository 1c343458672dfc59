package watchdog

import "sort"

// Crisis levels, most severe first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelWatch    = "WATCH"
	LevelHealthy  = "HEALTHY"
)

// GridHealth holds diagnostic signals derived from an Observation.
type GridHealth struct {
	Tick           uint64
	ServedRatio    float64  // served load over submitted demand, 1 when nothing is demanded
	DarkCities     []string // cities with substations receiving under half their demand
	IdleNodes      int      // producers and consumers with nothing bound
	OverloadedNets int      // nets whose demand exceeds supply
	AuditErrors    int
	CrisisLevel    string
}

// Triage computes a GridHealth from an observation.
func Triage(obs *Observation) *GridHealth {
	h := &GridHealth{
		Tick:        obs.Status.Tick,
		ServedRatio: 1,
		AuditErrors: obs.Status.Stats.AuditErrors,
	}
	if d := obs.Status.Stats.Demand; d > 0 {
		h.ServedRatio = float64(obs.Status.Stats.Served) / float64(d)
	}

	for _, c := range obs.Cities {
		if c.Substations > 0 && c.Satisfaction < 50 {
			h.DarkCities = append(h.DarkCities, c.Name)
		}
	}
	sort.Strings(h.DarkCities)

	for _, n := range obs.Nodes {
		if !n.Bound {
			h.IdleNodes++
		}
	}
	for _, n := range obs.Nets {
		if n.Demand > n.Supply {
			h.OverloadedNets++
		}
	}

	connected := 0
	for _, c := range obs.Cities {
		if c.Substations > 0 {
			connected++
		}
	}
	darkShare := 0.0
	if connected > 0 {
		darkShare = float64(len(h.DarkCities)) / float64(connected)
	}

	h.CrisisLevel = LevelHealthy
	switch {
	case h.AuditErrors > 0:
		h.CrisisLevel = LevelCritical
	case h.ServedRatio < 0.5 || darkShare > 0.5:
		h.CrisisLevel = LevelCritical
	case h.ServedRatio < 0.8 || len(h.DarkCities) > 0:
		h.CrisisLevel = LevelWarning
	case h.OverloadedNets > 0 || h.IdleNodes > 0:
		h.CrisisLevel = LevelWatch
	}
	return h
}
