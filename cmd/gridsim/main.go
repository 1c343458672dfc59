// Command gridsim runs the power grid simulation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/talgya/gridsim/internal/api"
	"github.com/talgya/gridsim/internal/config"
	"github.com/talgya/gridsim/internal/engine"
	"github.com/talgya/gridsim/internal/finance"
	"github.com/talgya/gridsim/internal/persistence"
	"github.com/talgya/gridsim/internal/world"
)

func main() {
	configPath := flag.String("config", os.Getenv("GRIDSIM_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	level, _ := cfg.Log.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("gridsim starting", "config", *configPath, "seed", cfg.World.Seed)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.DB.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DB.Path)

	// ── World Map (always regenerated, deterministic from seed) ───────
	slog.Info("generating world map...")
	worldMap := world.Generate(cfg.World.GenConfig())
	for t, c := range world.TerrainCounts(worldMap) {
		slog.Debug("terrain", "type", world.TerrainName(t), "count", c)
	}

	// ── Load or Found World State ─────────────────────────────────────
	sim := engine.NewSimulation(worldMap, cfg, finance.NewLedger())

	saved, err := db.HasWorldState()
	if err != nil {
		slog.Error("failed to read world state", "error", err)
		os.Exit(1)
	}
	if saved {
		slog.Info("found saved world state, loading...")
		cp, err := db.LoadCheckpoint()
		if err != nil {
			slog.Error("failed to load world state", "error", err)
			os.Exit(1)
		}
		if err := sim.Restore(cp); err != nil {
			slog.Error("failed to restore world state", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("no saved state found, founding new world...")
		sim.Found(cfg.World.Seed)
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}
	if err := sim.Grid.Audit(); err != nil {
		slog.Error("power grid inconsistent at startup", "error", err)
		if cfg.Sim.Strict {
			os.Exit(1)
		}
	}
	sim.Publish()

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Tick = sim.LastTick
	eng.Interval = cfg.Sim.TickInterval
	eng.TicksPerDay = cfg.Sim.TicksPerDay
	eng.SetSpeed(float64(cfg.Sim.Speed))

	eng.OnTick = sim.Step
	eng.OnDay = func(tick uint64) {
		sim.TickDay(tick)
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("GRIDSIM_ADMIN_KEY not set, admin endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:      sim,
		Eng:      eng,
		DB:       db,
		Port:     cfg.API.Port,
		AdminKey: cfg.API.AdminKey,
		Rate:     cfg.API.RateLimit,
		Burst:    cfg.API.Burst,
	}
	apiServer.Start()
	defer apiServer.Close()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snap := sim.Latest()
	fmt.Printf("\nThe grid is live: %s nodes in %s nets feeding %d cities and %d factories.\n",
		humanize.Comma(int64(snap.Stats.Nodes)), humanize.Comma(int64(snap.Stats.Nets)),
		len(snap.Cities), len(snap.Factories))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	if sim.LastTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", sim.LastTick, engine.SimTime(sim.LastTick, eng.TicksPerDay))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. World state saved.")
}
