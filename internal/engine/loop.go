package engine

import (
	"context"
	"time"

	"Lunar3D/internal/input"
	"Lunar3D/internal/logger"
)

// Runner is the per-frame dispatch target, satisfied by the script manager.
type Runner interface {
	Update(dt float64)
	FixedUpdate(dt float64)
}

type Config struct {
	FixedDelta  float64 // fixed timestep in seconds, default 1/50
	MaxSubSteps int     // cap on fixed steps per frame, default 8
	TargetFPS   int     // wall-clock pacing for Run, default 60
}

// Loop drives a Runner with a fixed-timestep accumulator: zero or more
// FixedUpdate calls followed by exactly one Update per frame.
type Loop struct {
	cfg         Config
	clock       *Clock
	runner      Runner
	inputState  *input.State
	accumulator float64
}

func NewLoop(runner Runner, cfg Config) *Loop {
	if cfg.FixedDelta <= 0 {
		cfg.FixedDelta = 1.0 / 50.0
	}
	if cfg.MaxSubSteps <= 0 {
		cfg.MaxSubSteps = 8
	}
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 60
	}
	return &Loop{
		cfg:    cfg,
		clock:  NewClock(cfg.FixedDelta),
		runner: runner,
	}
}

// Clock returns the loop's clock for wiring into the sandbox environment.
func (l *Loop) Clock() *Clock {
	return l.clock
}

// SetInputState attaches a host-fed input state whose frame edges the loop
// rolls at the start of every Step.
func (l *Loop) SetInputState(s *input.State) {
	l.inputState = s
}

// Step advances the simulation by one host frame of rawDelta seconds.
func (l *Loop) Step(rawDelta float64) {
	if l.inputState != nil {
		l.inputState.BeginFrame()
	}

	scaled := rawDelta * l.clock.TimeScale()
	l.accumulator += scaled

	steps := 0
	for l.accumulator >= l.cfg.FixedDelta && steps < l.cfg.MaxSubSteps {
		l.runner.FixedUpdate(l.cfg.FixedDelta)
		l.accumulator -= l.cfg.FixedDelta
		steps++
	}
	if steps == l.cfg.MaxSubSteps && l.accumulator >= l.cfg.FixedDelta {
		// Falling behind; drop the backlog instead of spiraling.
		l.accumulator = 0
	}

	l.runner.Update(scaled)
	l.clock.tick(rawDelta, scaled)
}

// Run paces Step against wall-clock time until the context is cancelled.
func (l *Loop) Run(ctx context.Context) {
	logger.Init()
	interval := time.Second / time.Duration(l.cfg.TargetFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Step(now.Sub(last).Seconds())
			last = now
		}
	}
}
