package timectrl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultFrameRate is the refresh rate the clock assumes.
	DefaultFrameRate = 60
	// DefaultIncrement is the simulated time added per frame, in seconds.
	DefaultIncrement = 1.0 / DefaultFrameRate
	// DefaultFrameInterval is the wall-clock period between RealTime frames.
	DefaultFrameInterval = time.Second / DefaultFrameRate

	acceleratedInterval = time.Millisecond
)

// Clock exposes simulation time to consumers that must not drive it.
type Clock interface {
	// Elapsed returns simulated seconds since the last reset.
	Elapsed() float64
	// Running reports whether frames currently advance the clock.
	Running() bool
}

// Mode describes how Start paces frames.
type Mode int

const (
	// RealTime fires one frame per FrameInterval of wall-clock time.
	RealTime Mode = iota
	// Accelerated fires frames as fast as a millisecond ticker allows.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// ParseMode accepts "realtime" or "accelerated" (case-insensitive, empty is
// RealTime).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "realtime", "real-time":
		return RealTime, nil
	case "accelerated", "fast":
		return Accelerated, nil
	default:
		return RealTime, fmt.Errorf("unknown clock mode %q", s)
	}
}

// SimulationClock counts simulated seconds in fixed per-frame increments.
// The increment does not depend on how late a frame fires.
type SimulationClock struct {
	mu sync.RWMutex

	Increment     float64
	FrameInterval time.Duration
	Mode          Mode

	elapsed float64
	frames  uint64
	running bool

	listeners []func(elapsed float64)
}

// NewSimulationClock returns a running clock at zero. A non-positive
// increment falls back to DefaultIncrement.
func NewSimulationClock(increment float64, mode Mode) *SimulationClock {
	if !(increment > 0) {
		increment = DefaultIncrement
	}
	return &SimulationClock{
		Increment:     increment,
		FrameInterval: DefaultFrameInterval,
		Mode:          mode,
		running:       true,
	}
}

// Advance adds one increment and returns the new elapsed time. It is a
// no-op while paused.
func (c *SimulationClock) Advance() float64 {
	elapsed, _ := c.tick()
	return elapsed
}

// Reset sets elapsed time back to zero without changing the paused state.
func (c *SimulationClock) Reset() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed = 0
	c.frames = 0
	return 0
}

// Pause stops advancement; elapsed time is kept.
func (c *SimulationClock) Pause() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Resume restarts advancement from the current elapsed time.
func (c *SimulationClock) Resume() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
}

// Toggle flips between paused and running and returns the new running state.
func (c *SimulationClock) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = !c.running
	return c.running
}

// Running implements Clock.
func (c *SimulationClock) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Elapsed implements Clock.
func (c *SimulationClock) Elapsed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.elapsed
}

// Frames returns how many increments were applied since the last reset.
func (c *SimulationClock) Frames() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames
}

// AddListener registers a callback invoked after every applied frame.
func (c *SimulationClock) AddListener(fn func(elapsed float64)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Start drives the clock from a ticker until ctx is cancelled or maxFrames
// frames have been applied (maxFrames <= 0 means no limit). Paused ticks are
// skipped and do not count. The returned channel is closed on exit.
func (c *SimulationClock) Start(ctx context.Context, maxFrames int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(c.interval())
		defer ticker.Stop()

		applied := 0
		for {
			if maxFrames > 0 && applied >= maxFrames {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			elapsed, ok := c.tick()
			if !ok {
				continue
			}
			applied++

			c.mu.RLock()
			listeners := append([]func(float64){}, c.listeners...)
			c.mu.RUnlock()
			for _, fn := range listeners {
				fn(elapsed)
			}
		}
	}()
	return done
}

func (c *SimulationClock) tick() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return c.elapsed, false
	}
	c.elapsed += c.Increment
	c.frames++
	return c.elapsed, true
}

func (c *SimulationClock) interval() time.Duration {
	if c.Mode == Accelerated {
		return acceleratedInterval
	}
	if c.FrameInterval <= 0 {
		return DefaultFrameInterval
	}
	return c.FrameInterval
}
