package watchdog

import "fmt"

// Actions the watchdog can take.
const (
	ActionNone     = "none"
	ActionSnapshot = "snapshot" // save a checkpoint
	ActionPause    = "pause"    // set speed 0
)

// criticalStreak is how many critical cycles in a row trigger a checkpoint.
const criticalStreak = 3

// Decision is the outcome of one cycle.
type Decision struct {
	Action    string
	Rationale string
}

// Decide picks at most one action from the current health and the recent
// history. A new audit failure pauses the simulation so the state can be
// inspected. A grid that stays critical is checkpointed once per streak.
func Decide(h *GridHealth, mem *CycleMemory) Decision {
	last, seen := mem.Last()

	if h.AuditErrors > 0 && (!seen || h.AuditErrors > last.AuditErrors) {
		return Decision{
			Action:    ActionPause,
			Rationale: fmt.Sprintf("grid audit failed %d times, pausing at tick %d", h.AuditErrors, h.Tick),
		}
	}

	if h.CrisisLevel == LevelCritical {
		// The current cycle is not recorded yet.
		if streak := mem.Streak(LevelCritical) + 1; streak == criticalStreak {
			return Decision{
				Action: ActionSnapshot,
				Rationale: fmt.Sprintf("grid critical for %d cycles (served %.0f%%, %d dark cities)",
					streak, h.ServedRatio*100, len(h.DarkCities)),
			}
		}
	}

	return Decision{Action: ActionNone, Rationale: fmt.Sprintf("grid %s", h.CrisisLevel)}
}
