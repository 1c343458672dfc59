package watchdog

import (
	"context"
	"fmt"
	"log/slog"
)

// RunCycle executes one observe, triage, decide, act cycle and records it.
func RunCycle(ctx context.Context, observer *Observer, actor *Actor, mem *CycleMemory) (Decision, error) {
	obs, err := observer.Observe(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("observe: %w", err)
	}
	h := Triage(obs)
	slog.Info("observation complete",
		"tick", h.Tick,
		"level", h.CrisisLevel,
		"served", fmt.Sprintf("%.2f", h.ServedRatio),
		"dark_cities", len(h.DarkCities),
		"idle_nodes", h.IdleNodes,
	)

	d := Decide(h, mem)
	mem.Record(CycleRecord{
		Tick:        h.Tick,
		Action:      d.Action,
		ServedRatio: h.ServedRatio,
		DarkCities:  len(h.DarkCities),
		AuditErrors: h.AuditErrors,
		CrisisLevel: h.CrisisLevel,
		Rationale:   d.Rationale,
	})
	mem.Save()

	if d.Action == ActionNone {
		return d, nil
	}
	slog.Info("watchdog acting", "action", d.Action, "rationale", d.Rationale)
	if err := actor.Act(ctx, d); err != nil {
		return d, fmt.Errorf("act: %w", err)
	}
	return d, nil
}
