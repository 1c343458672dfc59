// Package config loads gridsim settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/world"
)

// Config is the complete process configuration.
type Config struct {
	World WorldConfig `yaml:"world" json:"world"`
	Sim   SimConfig   `yaml:"sim" json:"sim"`
	Power PowerConfig `yaml:"power" json:"power"`
	API   APIConfig   `yaml:"api" json:"api"`
	DB    DBConfig    `yaml:"db" json:"db"`
	Log   LogConfig   `yaml:"log" json:"log"`
}

type WorldConfig struct {
	Width       int     `yaml:"width" json:"width"`
	Height      int     `yaml:"height" json:"height"`
	Seed        int64   `yaml:"seed" json:"seed"`
	Levels      int     `yaml:"levels" json:"levels"`
	SeaLevel    float64 `yaml:"sea_level" json:"sea_level"`
	MountainLvl float64 `yaml:"mountain_level" json:"mountain_level"`
}

type SimConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`
	DeltaT       uint32        `yaml:"delta_t" json:"delta_t"` // simulated time per tick
	Speed        int           `yaml:"speed" json:"speed"`
	TicksPerDay  uint64        `yaml:"ticks_per_day" json:"ticks_per_day"`
	PruneIdle    bool          `yaml:"prune_idle" json:"prune_idle"`
	Strict       bool          `yaml:"strict" json:"strict"` // panic on grid invariant violations
	AuditEvery   uint64        `yaml:"audit_every" json:"audit_every"`
}

type PowerConfig struct {
	RevenueFactor     uint64 `yaml:"revenue_factor" json:"revenue_factor"`
	CalibrationDeltaT uint64 `yaml:"calibration_delta_t" json:"calibration_delta_t"`
	RevenueShift      uint   `yaml:"revenue_shift" json:"revenue_shift"`
	RolloverThreshold uint64 `yaml:"rollover_threshold" json:"rollover_threshold"`
	PerCapitaDemand   uint64 `yaml:"per_capita_demand" json:"per_capita_demand"` // watts per resident
}

type APIConfig struct {
	Port      int     `yaml:"port" json:"port"`
	AdminKey  string  `yaml:"admin_key" json:"-"`
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"` // requests per second per IP
	Burst     int     `yaml:"burst" json:"burst"`
}

type DBConfig struct {
	Path string `yaml:"path" json:"path"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	gen := world.DefaultGenConfig()
	pc := power.DefaultConfig()
	return Config{
		World: WorldConfig{
			Width:       gen.Width,
			Height:      gen.Height,
			Seed:        42,
			Levels:      gen.Levels,
			SeaLevel:    gen.SeaLevel,
			MountainLvl: gen.MountainLvl,
		},
		Sim: SimConfig{
			TickInterval: time.Second,
			DeltaT:       64,
			Speed:        1,
			TicksPerDay:  96,
			AuditEvery:   96,
		},
		Power: PowerConfig{
			RevenueFactor:     pc.RevenueFactor,
			CalibrationDeltaT: pc.CalibrationDeltaT,
			RevenueShift:      pc.RevenueShift,
			RolloverThreshold: pc.RolloverThreshold,
			PerCapitaDemand:   400,
		},
		API: APIConfig{
			Port:      8080,
			RateLimit: 5,
			Burst:     10,
		},
		DB:  DBConfig{Path: "data/gridsim.db"},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("GRIDSIM_DB"); v != "" {
		c.DB.Path = v
	}
	if v := getenv("GRIDSIM_ADMIN_KEY"); v != "" {
		c.API.AdminKey = v
	}
	if v := getenv("GRIDSIM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("GRIDSIM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRIDSIM_PORT: %w", err)
		}
		c.API.Port = port
	}
	if v := getenv("GRIDSIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("GRIDSIM_SEED: %w", err)
		}
		c.World.Seed = seed
	}
	return nil
}

// Validate reports every setting the simulation cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.World.Width <= 0 || c.World.Height <= 0 {
		errs = append(errs, fmt.Errorf("world size %dx%d must be positive", c.World.Width, c.World.Height))
	}
	if c.Sim.DeltaT == 0 {
		errs = append(errs, errors.New("sim.delta_t must be positive"))
	}
	if c.Sim.TicksPerDay == 0 {
		errs = append(errs, errors.New("sim.ticks_per_day must be positive"))
	}
	if c.Sim.TickInterval <= 0 {
		errs = append(errs, errors.New("sim.tick_interval must be positive"))
	}
	if c.Power.CalibrationDeltaT == 0 {
		errs = append(errs, errors.New("power.calibration_delta_t must be positive"))
	}
	if c.Power.RevenueShift >= 64 {
		errs = append(errs, fmt.Errorf("power.revenue_shift %d out of range", c.Power.RevenueShift))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GenConfig converts the world section for world.Generate.
func (w WorldConfig) GenConfig() world.GenConfig {
	return world.GenConfig{
		Width:       w.Width,
		Height:      w.Height,
		Seed:        w.Seed,
		Levels:      w.Levels,
		SeaLevel:    w.SeaLevel,
		MountainLvl: w.MountainLvl,
	}
}

// GridConfig converts the power section for power.NewGrid.
func (p PowerConfig) GridConfig() power.Config {
	return power.Config{
		RevenueFactor:     p.RevenueFactor,
		CalibrationDeltaT: p.CalibrationDeltaT,
		RevenueShift:      p.RevenueShift,
		RolloverThreshold: p.RolloverThreshold,
	}
}

// SlogLevel parses the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level %q unknown", l.Level)
}
