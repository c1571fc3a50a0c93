// Package engine provides the frame-driven simulation loop. Simulation
// composes every subsystem into one Tick; Engine calls it at a fixed rate
// when no external renderer drives the world.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultFrameHz is the headless frame rate.
const DefaultFrameHz = 20

// Engine drives the simulation forward at a fixed frame rate.
type Engine struct {
	Interval time.Duration // wall time between frames

	// OnFrame receives the frame's elapsed wall seconds.
	OnFrame func(dt float64)
	// OnSecond fires once per wall second of frames.
	OnSecond func(frame uint64)

	frames atomic.Uint64
	paused atomic.Bool
}

// NewEngine creates an engine running at hz frames per second.
func NewEngine(hz int) *Engine {
	if hz <= 0 {
		hz = DefaultFrameHz
	}
	return &Engine{Interval: time.Second / time.Duration(hz)}
}

// Run steps the loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("simulation engine started", "interval", e.Interval)
	t := time.NewTicker(e.Interval)
	defer t.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "frames", e.frames.Load())
			return nil
		case now := <-t.C:
			dt := now.Sub(last).Seconds()
			last = now
			if e.paused.Load() {
				continue
			}
			e.step(dt)
		}
	}
}

// step advances by one frame.
func (e *Engine) step(dt float64) {
	n := e.frames.Add(1)
	if e.OnFrame != nil {
		e.OnFrame(dt)
	}
	perSecond := uint64(time.Second / e.Interval)
	if perSecond > 0 && n%perSecond == 0 && e.OnSecond != nil {
		e.OnSecond(n)
	}
}

// Frames returns the number of frames stepped so far.
func (e *Engine) Frames() uint64 {
	return e.frames.Load()
}

// SetPaused stops or resumes frame delivery without leaving Run.
func (e *Engine) SetPaused(p bool) {
	e.paused.Store(p)
}

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}
