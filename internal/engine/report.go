package engine

import (
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/gridsim/internal/finance"
	"github.com/talgya/gridsim/internal/power"
)

// report logs the daily summary.
func (s *Simulation) report(tick uint64) {
	snap := s.Latest()
	if snap == nil {
		return
	}

	var population uint64
	for _, c := range snap.Cities {
		population += uint64(c.Population)
	}

	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick, s.Config.TicksPerDay),
		"nets", snap.Stats.Nets,
		"nodes", snap.Stats.Nodes,
		"supply", power.FormatPower(snap.Stats.Supply),
		"demand", power.FormatPower(snap.Stats.Demand),
		"served", power.FormatPower(snap.Stats.Served),
		"population", humanize.Comma(int64(population)),
		"revenue", s.Ledger.Total(finance.CategoryPower).String(),
	)

	for _, c := range snap.Cities {
		if c.Satisfaction < 50 {
			slog.Info("city underpowered",
				"city", c.Name,
				"satisfaction", c.Satisfaction,
				"substations", c.Substations,
			)
		}
	}
}
