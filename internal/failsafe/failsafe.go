// Package failsafe is the tank overflow interlock. It trips when the tank
// reaches the trip level and stays latched until the level falls back
// below the reset level. User commands cannot clear it.
//
// The package also carries the low-level interlock: below LowLevel the
// pump may not start and a pump draining the tank is stopped. That gate
// is not latched.
package failsafe

import (
	"fmt"
	"sync"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

// Reasons recorded on the state and on cancelled schedules.
const (
	ReasonOverflow = model.EventFailsafeOverflow
	ReasonTankLow  = model.EventTankLowShutoff
)

// Config sets the interlock thresholds in percent of tank level.
type Config struct {
	TripLevel  float64 `yaml:"trip_level"`
	ResetLevel float64 `yaml:"reset_level"`
	// LowLevel is the low-level interlock threshold; 0 disables it.
	LowLevel float64 `yaml:"low_level"`
}

// DefaultConfig trips at a full tank, re-arms at 97% and holds the pump
// off below 15%.
func DefaultConfig() Config {
	return Config{TripLevel: 100, ResetLevel: 97, LowLevel: 15}
}

// Coordinator holds the interlock state and notifies via callback.
type Coordinator struct {
	mu     sync.RWMutex
	cfg    Config
	state  model.FailsafeState
	onTrip func(model.FailsafeState)
}

// New creates an inactive Coordinator. onTrip is called on every
// inactive-to-active transition; it may be nil and must not block.
func New(cfg Config, onTrip func(model.FailsafeState)) *Coordinator {
	if cfg.TripLevel <= 0 {
		cfg.TripLevel = DefaultConfig().TripLevel
	}
	if cfg.ResetLevel <= 0 || cfg.ResetLevel > cfg.TripLevel {
		cfg.ResetLevel = cfg.TripLevel
	}
	if cfg.LowLevel < 0 || cfg.LowLevel >= cfg.ResetLevel {
		cfg.LowLevel = 0
	}
	return &Coordinator{cfg: cfg, onTrip: onTrip}
}

// Check evaluates the tank level. It reports whether the tank is at or
// above the trip level, in which case the caller must hold the pump off
// and cancel any armed schedule.
func (c *Coordinator) Check(level float64, now time.Time) bool {
	if level >= c.cfg.TripLevel {
		c.mu.RLock()
		active := c.state.Active
		c.mu.RUnlock()
		if !active {
			c.Trigger(ReasonOverflow,
				fmt.Sprintf("tank level %.1f%% reached trip level %.0f%%", level, c.cfg.TripLevel),
				"tank level interlock", now)
		}
		return true
	}

	c.mu.Lock()
	if c.state.Active && level < c.cfg.ResetLevel {
		c.state = model.FailsafeState{Trips: c.state.Trips}
	}
	c.mu.Unlock()
	return false
}

// BelowLowLevel reports whether level is under the low-level interlock.
func (c *Coordinator) BelowLowLevel(level float64) bool {
	return c.cfg.LowLevel > 0 && level < c.cfg.LowLevel
}

// LowLevel returns the effective low-level threshold.
func (c *Coordinator) LowLevel() float64 { return c.cfg.LowLevel }

// Trigger latches the interlock with the given reason and returns the new
// state.
func (c *Coordinator) Trigger(reason, description, initiator string, now time.Time) model.FailsafeState {
	c.mu.Lock()
	c.state = model.FailsafeState{
		Active:      true,
		Reason:      reason,
		Description: description,
		Initiator:   initiator,
		TriggeredAt: now,
		Trips:       c.state.Trips + 1,
	}
	s := c.state
	cb := c.onTrip
	c.mu.Unlock()

	if cb != nil {
		cb(s)
	}
	return s
}

// Active reports whether the interlock is latched.
func (c *Coordinator) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Active
}

// GetState returns a copy of the current state.
func (c *Coordinator) GetState() model.FailsafeState {
	c.mu.RLock()
	s := c.state
	c.mu.RUnlock()
	return s
}
