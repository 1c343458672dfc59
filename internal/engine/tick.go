// Package engine provides the tick-based simulation loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTicksPerDay is the number of ticks in one simulated day
// (a tick is 15 simulated minutes).
const DefaultTicksPerDay = 96

// Engine drives the simulation forward.
type Engine struct {
	Tick        uint64        // Current tick counter (monotonic, never resets)
	Interval    time.Duration // Base tick interval (default 1 second)
	TicksPerDay uint64

	mu      sync.Mutex
	speed   float64 // 1.0 = real-time, 0 = paused
	running bool

	// Callbacks, populated during setup.
	OnTick func(tick uint64) // Every tick
	OnDay  func(tick uint64) // Every TicksPerDay ticks
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval:    time.Second,
		TicksPerDay: DefaultTicksPerDay,
		speed:       1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier; 0 pauses.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = speed
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed())

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		slog.Info("simulation engine stopped", "tick", e.Tick)
	}()

	for {
		speed := e.Speed()
		if speed <= 0 {
			// Paused.
			if !sleep(ctx, 100*time.Millisecond) {
				return
			}
			continue
		}

		start := time.Now()
		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			if !sleep(ctx, target-elapsed) {
				return
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}

	// Daily: growth, report, autosave.
	if e.TicksPerDay > 0 && e.Tick%e.TicksPerDay == 0 && e.OnDay != nil {
		e.OnDay(e.Tick)
	}
}

// SimTime returns a human-readable simulation time string from a tick number.
func SimTime(tick, ticksPerDay uint64) string {
	if ticksPerDay == 0 {
		ticksPerDay = DefaultTicksPerDay
	}
	day := tick/ticksPerDay + 1
	minutes := tick % ticksPerDay * (24 * 60) / ticksPerDay
	return fmt.Sprintf("Day %d, %d:%02d", day, minutes/60, minutes%60)
}
