package engine

import (
	"context"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestStepCallsDaily(t *testing.T) {
	e := NewEngine()
	e.TicksPerDay = 4
	var ticks, days []uint64
	e.OnTick = func(tick uint64) { ticks = append(ticks, tick) }
	e.OnDay = func(tick uint64) { days = append(days, tick) }

	for i := 0; i < 9; i++ {
		e.Step()
	}
	assert.Equal(t, len(ticks), 9)
	assert.DeepEqual(t, days, []uint64{4, 8})
}

func TestRunStopsOnCancel(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	e.OnTick = func(tick uint64) {
		if tick == 5 {
			cancel()
		}
	}

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, e.Tick, uint64(5))
	assert.Assert(t, !e.Running())
}

func TestPausedEngineDoesNotTick(t *testing.T) {
	e := NewEngine()
	e.SetSpeed(0)
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	e.Run(ctx)
	assert.Equal(t, e.Tick, uint64(0))
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, SimTime(0, 96), "Day 1, 0:00")
	assert.Equal(t, SimTime(5, 96), "Day 1, 1:15")
	assert.Equal(t, SimTime(96+48, 96), "Day 2, 12:00")
}
