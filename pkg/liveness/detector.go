// Package liveness decides whether a live person is in front of the camera.
// A session issues one challenge (blink or head turn), collects landmark
// frames and raw samples for a fixed window, and fuses the challenge result
// with a pixel-level motion check into a single Verdict.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Level represents the liveness detection security level.
type Level string

const (
	LevelStandard Level = "standard" // Single closed-eye frame satisfies blink
	LevelStrict   Level = "strict"   // Blink must be a full open-closed-open cycle
)

// Default thresholds. They are uncalibrated starting points and are expected
// to be tuned per camera and lighting environment.
const (
	DefaultEARThreshold    = 0.18
	DefaultYawThreshold    = 0.10
	DefaultMotionThreshold = 8.0
	DefaultWindow          = 1500 * time.Millisecond
	DefaultMinFrames       = 3
)

// Config holds the tunable parameters of the liveness engine.
type Config struct {
	Level             Level
	EARThreshold      float64
	YawThreshold      float64
	MotionThreshold   float64
	Window            time.Duration
	MinFrames         int
	RequireBlinkCycle bool
}

// DefaultConfig returns the standard-level configuration.
func DefaultConfig() Config {
	return Config{
		Level:           LevelStandard,
		EARThreshold:    DefaultEARThreshold,
		YawThreshold:    DefaultYawThreshold,
		MotionThreshold: DefaultMotionThreshold,
		Window:          DefaultWindow,
		MinFrames:       DefaultMinFrames,
	}
}

// ConfigFromLevel returns the default configuration for a level. Unknown
// levels fall back to standard.
func ConfigFromLevel(level Level) Config {
	cfg := DefaultConfig()
	if level == LevelStrict {
		cfg.Level = LevelStrict
		cfg.RequireBlinkCycle = true
	}
	return cfg
}

// Validate checks that every parameter is usable.
func (c Config) Validate() error {
	if c.EARThreshold <= 0 || c.EARThreshold >= 1 {
		return fmt.Errorf("ear threshold must be between 0 and 1, got %f", c.EARThreshold)
	}
	if c.YawThreshold <= 0 || c.YawThreshold >= 1 {
		return fmt.Errorf("yaw threshold must be between 0 and 1, got %f", c.YawThreshold)
	}
	if c.MotionThreshold < 0 || c.MotionThreshold > 255 {
		return fmt.Errorf("motion threshold must be between 0 and 255, got %f", c.MotionThreshold)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %v", c.Window)
	}
	if c.MinFrames < 1 {
		return fmt.Errorf("min frames must be at least 1, got %d", c.MinFrames)
	}
	return nil
}

// ErrLivenessFailed is the generic liveness failure.
var ErrLivenessFailed = errors.New("liveness check failed")

// ErrInsufficientFrames is returned when too few usable frames were collected.
var ErrInsufficientFrames = errors.New("insufficient frames")

// ErrChallengeNotSatisfied is returned when the blink or head-turn threshold
// was not crossed.
var ErrChallengeNotSatisfied = errors.New("liveness challenge not completed")

// ErrMotionCheckFailed is returned when a static image is suspected.
var ErrMotionCheckFailed = errors.New("motion check failed")

// ErrNoFaceDetected is returned when the perception provider found no face.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrInvalidFrameShape is returned for malformed landmark frames or samples.
var ErrInvalidFrameShape = errors.New("invalid frame shape")

// ErrSessionClosed is returned when a session that already produced a
// verdict is used again.
var ErrSessionClosed = errors.New("liveness session closed")

// ErrSessionNotOpen is returned when frames are delivered before Open.
var ErrSessionNotOpen = errors.New("liveness session not open")

// Checker opens sessions with a freshly selected challenge and returns their
// verdicts. It holds no per-session state and is safe for concurrent use
// provided its selector and clock are.
type Checker struct {
	config   Config
	selector Selector
	clock    Clock
}

// NewChecker creates a checker. A nil selector picks challenges at random; a
// nil clock uses the system clock.
func NewChecker(cfg Config, selector Selector, clock Clock) *Checker {
	if selector == nil {
		selector = NewRandomSelector(nil)
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Checker{config: cfg, selector: selector, clock: clock}
}

// Config returns the checker configuration.
func (c *Checker) Config() Config {
	return c.config
}

// NewSession creates an unopened session with a newly selected challenge.
func (c *Checker) NewSession() *Session {
	return NewSession(c.config, c.selector.Select(), c.clock)
}

// Check runs one complete session against src and returns its verdict.
func (c *Checker) Check(ctx context.Context, src FrameSource) (Verdict, error) {
	return c.NewSession().Run(ctx, src)
}

// CheckChallenge runs one session with a caller-chosen challenge.
func (c *Checker) CheckChallenge(ctx context.Context, kind ChallengeKind, src FrameSource) (Verdict, error) {
	return NewSession(c.config, kind, c.clock).Run(ctx, src)
}
