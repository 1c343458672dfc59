// Package api provides the HTTP API for observing and operating the grid.
// GET endpoints are public (read-only, served from the latest snapshot).
// POST and DELETE endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/talgya/gridsim/internal/economy"
	"github.com/talgya/gridsim/internal/engine"
	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/world"
)

// Saver persists the simulation on demand.
type Saver interface {
	SaveWorldState(sim *engine.Simulation) error
}

// Server serves the world state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       Saver // nil disables POST /snapshot
	Port     int
	AdminKey string  // Bearer token for write endpoints. Empty = writes disabled.
	Rate     float64 // Requests per second per client IP
	Burst    int

	srv *http.Server
}

// Handler builds the routed, rate limited handler.
func (s *Server) Handler() http.Handler {
	limiter := NewRateLimiter(s.Rate, s.Burst)
	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/nets", s.handleNets)
	mux.HandleFunc("GET /api/v1/nodes", s.handleNodes)
	mux.HandleFunc("GET /api/v1/cities", s.handleCities)
	mux.HandleFunc("GET /api/v1/factories", s.handleFactories)
	mux.HandleFunc("GET /api/v1/players", s.handlePlayers)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/nodes", s.adminOnly(s.handleBuild))
	mux.HandleFunc("DELETE /api/v1/nodes/{x}/{y}/{z}", s.adminOnly(s.handleDemolish))
	mux.HandleFunc("POST /api/v1/lines", s.adminOnly(s.handleLine))
	mux.HandleFunc("POST /api/v1/tunnels", s.adminOnly(s.handleTunnel))
	mux.HandleFunc("POST /api/v1/factories/{id}/close", s.adminOnly(s.handleCloseFactory))
	mux.HandleFunc("POST /api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(limiter.Middleware(mux))
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "rate", s.Rate, "burst", s.Burst)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Close stops the server. Open streams are cut.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no GRIDSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// latest returns the published snapshot or answers 503 before the first one.
func (s *Server) latest(w http.ResponseWriter) *engine.Snapshot {
	snap := s.Sim.Latest()
	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
	}
	return snap
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.latest(w)
	if snap == nil {
		return
	}
	writeJSON(w, map[string]any{
		"name":       "gridsim",
		"world_id":   s.Sim.WorldID,
		"tick":       snap.Tick,
		"sim_time":   snap.Time,
		"speed":      s.Eng.Speed(),
		"running":    s.Eng.Running(),
		"stats":      snap.Stats,
		"supply":     power.FormatPower(snap.Stats.Supply),
		"demand":     power.FormatPower(snap.Stats.Demand),
		"revenue":    snap.Revenue.String(),
		"cities":     len(snap.Cities),
		"factories":  len(snap.Factories),
		"conductors": snap.Power.Conductors,
	})
}

func (s *Server) handleNets(w http.ResponseWriter, r *http.Request) {
	if snap := s.latest(w); snap != nil {
		writeJSON(w, snap.Power.Nets)
	}
}

// handleNodes lists producers and consumers, optionally one kind or one net.
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	snap := s.latest(w)
	if snap == nil {
		return
	}
	var nodes []power.NodeSnapshot
	switch kind := r.URL.Query().Get("kind"); kind {
	case "":
		nodes = append(append(nodes, snap.Power.Supply...), snap.Power.Demand...)
	case power.KindSupply.String():
		nodes = snap.Power.Supply
	case power.KindDemand.String():
		nodes = snap.Power.Demand
	default:
		http.Error(w, "kind must be supply or demand", http.StatusBadRequest)
		return
	}

	if v := r.URL.Query().Get("net"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid net id", http.StatusBadRequest)
			return
		}
		var filtered []power.NodeSnapshot
		for _, n := range nodes {
			if n.Net == power.NetID(id) {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}
	if nodes == nil {
		nodes = []power.NodeSnapshot{}
	}
	writeJSON(w, nodes)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	if snap := s.latest(w); snap != nil {
		writeJSON(w, snap.Cities)
	}
}

func (s *Server) handleFactories(w http.ResponseWriter, r *http.Request) {
	if snap := s.latest(w); snap != nil {
		writeJSON(w, snap.Factories)
	}
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Ledger.Players())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	events := s.Sim.RecentEvents(limit)

	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

type buildRequest struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Kind  string `json:"kind"`
	Owner uint8  `json:"owner"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	kind, ok := parseKind(req.Kind)
	if !ok {
		http.Error(w, "kind must be conductor, supply or demand", http.StatusBadRequest)
		return
	}
	pos := world.Koord3D{X: req.X, Y: req.Y, Z: req.Z}
	if err := s.Sim.Build(pos, kind, playerOrPublic(req.Owner)); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"pos": pos, "kind": kind.String()})
}

func (s *Server) handleDemolish(w http.ResponseWriter, r *http.Request) {
	var coords [3]int
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(r.PathValue(name))
		if err != nil {
			http.Error(w, "invalid "+name, http.StatusBadRequest)
			return
		}
		coords[i] = v
	}
	pos := world.Koord3D{X: coords[0], Y: coords[1], Z: coords[2]}
	if err := s.Sim.Demolish(pos); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"pos": pos, "nets": s.Sim.Grid.NetCount()})
}

func (s *Server) handleLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From  world.Koord `json:"from"`
		To    world.Koord `json:"to"`
		Owner uint8       `json:"owner"`
		First string      `json:"first"`
		Last  string      `json:"last"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	first, ok1 := parseKind(req.First)
	last, ok2 := parseKind(req.Last)
	if !ok1 || !ok2 {
		http.Error(w, "first and last must be conductor, supply or demand", http.StatusBadRequest)
		return
	}
	built, err := s.Sim.LayLine(req.From, req.To, playerOrPublic(req.Owner), first, last)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]int{"built": built})
}

func (s *Server) handleTunnel(w http.ResponseWriter, r *http.Request) {
	var pos world.Koord3D
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.Sim.DigTunnel(pos); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"pos": pos})
}

func (s *Server) handleCloseFactory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid factory id", http.StatusBadRequest)
		return
	}
	if err := s.Sim.CloseFactory(economy.FactoryID(id)); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"id": id, "message": "factory closed"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveWorldState(s.Sim); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "snapshot saved",
	})
}

// parseKind accepts an empty string as a conductor.
func parseKind(s string) (power.Kind, bool) {
	if s == "" {
		return power.KindConductor, true
	}
	return power.ParseKind(s)
}

func playerOrPublic(n uint8) world.PlayerID {
	if n == 0 {
		return world.PublicPlayer
	}
	return world.PlayerID(n)
}

// writeError maps grid errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, power.ErrOccupied):
		status = http.StatusConflict
	case errors.Is(err, power.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, power.ErrNoTile):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
