// Package watchdog implements an external grid operator. It observes the
// running simulation through the public API, triages grid health and acts
// through the admin endpoints: checkpointing a degrading grid and pausing
// the simulation when the grid audit starts failing.
package watchdog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Observation holds all data collected during one observation cycle.
type Observation struct {
	Status GridStatus  `json:"status"`
	Cities []CityInfo  `json:"cities"`
	Nets   []NetInfo   `json:"nets"`
	Nodes  []NodeInfo  `json:"nodes"`
	Events []EventInfo `json:"events"`
}

// GridStatus mirrors GET /api/v1/status.
type GridStatus struct {
	Tick    uint64  `json:"tick"`
	SimTime string  `json:"sim_time"`
	Speed   float64 `json:"speed"`
	Running bool    `json:"running"`
	Stats   struct {
		Nets        int    `json:"nets"`
		Nodes       int    `json:"nodes"`
		Supply      uint64 `json:"supply"`
		Demand      uint64 `json:"demand"`
		Served      uint64 `json:"served"`
		IdlePruned  int    `json:"idle_pruned"`
		AuditErrors int    `json:"audit_errors"`
	} `json:"stats"`
	Revenue string `json:"revenue"`
}

// CityInfo mirrors items from GET /api/v1/cities.
type CityInfo struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Population   uint32 `json:"population"`
	Demand       uint64 `json:"demand"`
	Received     uint64 `json:"received"`
	Satisfaction uint64 `json:"satisfaction"`
	Substations  int    `json:"substations"`
}

// NetInfo mirrors items from GET /api/v1/nets.
type NetInfo struct {
	ID      uint64 `json:"id"`
	Supply  uint64 `json:"supply"`
	Demand  uint64 `json:"demand"`
	Members int    `json:"members"`
}

// NodeInfo mirrors items from GET /api/v1/nodes.
type NodeInfo struct {
	Kind    string `json:"kind"`
	Net     uint64 `json:"net"`
	Powered bool   `json:"powered"`
	Bound   bool   `json:"bound"`
}

// EventInfo mirrors items from GET /api/v1/events.
type EventInfo struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Observer fetches grid state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches every endpoint the triage needs.
func (o *Observer) Observe(ctx context.Context) (*Observation, error) {
	obs := &Observation{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &obs.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/cities", &obs.Cities); err != nil {
		return nil, fmt.Errorf("fetch cities: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/nets", &obs.Nets); err != nil {
		return nil, fmt.Errorf("fetch nets: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/nodes", &obs.Nodes); err != nil {
		return nil, fmt.Errorf("fetch nodes: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/events?limit=20&category=factory", &obs.Events); err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	return obs, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
