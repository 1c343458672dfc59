package watchdog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxRecords = 10

// CycleRecord captures what happened in a single watchdog cycle.
type CycleRecord struct {
	Tick        uint64  `json:"tick"`
	Action      string  `json:"action"`
	ServedRatio float64 `json:"served_ratio"`
	DarkCities  int     `json:"dark_cities"`
	AuditErrors int     `json:"audit_errors"`
	CrisisLevel string  `json:"crisis_level"`
	Rationale   string  `json:"rationale,omitempty"`
}

// CycleMemory keeps a ring of recent cycle records, optionally on disk.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file at path. Returns empty memory if it is
// missing or unreadable. An empty path keeps memory in process only.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("watchdog memory corrupted, starting fresh", "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal watchdog memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		slog.Error("failed to write watchdog memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Last returns the most recent record, if any.
func (m *CycleMemory) Last() (CycleRecord, bool) {
	if len(m.Records) == 0 {
		return CycleRecord{}, false
	}
	return m.Records[len(m.Records)-1], true
}

// Streak counts how many of the most recent records have the given level.
func (m *CycleMemory) Streak(level string) int {
	n := 0
	for i := len(m.Records) - 1; i >= 0 && m.Records[i].CrisisLevel == level; i-- {
		n++
	}
	return n
}

func (m *CycleMemory) String() string {
	var b strings.Builder
	for _, r := range m.Records {
		fmt.Fprintf(&b, "tick %d: %s served=%.2f dark=%d audit=%d action=%s\n",
			r.Tick, r.CrisisLevel, r.ServedRatio, r.DarkCities, r.AuditErrors, r.Action)
	}
	return b.String()
}
