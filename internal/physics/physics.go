// Package physics evolves the plant's continuous quantities: hydraulics
// (pump, tank, pipelines), water quality and device wear. Every function
// takes the state explicitly and never returns an error; out-of-range
// values are clamped.
package physics

import (
	"math"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/simrand"
)

// Config holds the physical constants of the plant.
type Config struct {
	PumpRatedEfficiency float64 `yaml:"pump_rated_efficiency"` // percent
	PumpRatedPowerKW    float64 `yaml:"pump_rated_power_kw"`
	PumpStandbyKW       float64 `yaml:"pump_standby_kw"`
	PumpRampSeconds     float64 `yaml:"pump_ramp_seconds"`
	DecayHalfLife       float64 `yaml:"decay_half_life_seconds"` // pump and line rundown
	DeadHeadFactor      float64 `yaml:"dead_head_factor"`
	FlowNoise           float64 `yaml:"flow_noise"`
	SupplyVoltage       float64 `yaml:"supply_voltage"`

	TankHeadBar       float64 `yaml:"tank_head_bar"`
	LineRampSeconds   float64 `yaml:"line_ramp_seconds"`
	PressureDropPerKm float64 `yaml:"pressure_drop_per_km"`
	FrictionLoss      float64 `yaml:"friction_loss"`
	LeakLossFactor    float64 `yaml:"leak_loss_factor"`
	LeakPressureDrop  float64 `yaml:"leak_pressure_drop"` // bar at 100% leakage

	AmbientTemperature float64 `yaml:"ambient_temperature"`
	MaxMotorTemp       float64 `yaml:"max_motor_temperature"`
	MotorTauSeconds    float64 `yaml:"motor_tau_seconds"`
	OverheatThreshold  float64 `yaml:"overheat_threshold"`
	DegradePerSecond   float64 `yaml:"degrade_per_second"` // chance per second above threshold

	LeakOnsetPerHour  float64 `yaml:"leak_onset_per_hour"`
	LeakGrowthPerHour float64 `yaml:"leak_growth_per_hour"`
	AnomalyPerHour    float64 `yaml:"quality_anomaly_per_hour"`
}

// DefaultConfig returns the constants of the reference plant.
func DefaultConfig() Config {
	return Config{
		PumpRatedEfficiency: 85,
		PumpRatedPowerKW:    8.2,
		PumpStandbyKW:       0.2,
		PumpRampSeconds:     3,
		DecayHalfLife:       1,
		DeadHeadFactor:      1.3,
		FlowNoise:           0.05,
		SupplyVoltage:       415,

		TankHeadBar:       4.2,
		LineRampSeconds:   2,
		PressureDropPerKm: 0.8,
		FrictionLoss:      0.02,
		LeakLossFactor:    0.5,
		LeakPressureDrop:  2.0,

		AmbientTemperature: 28.5,
		MaxMotorTemp:       110,
		MotorTauSeconds:    90,
		OverheatThreshold:  65,
		DegradePerSecond:   0.1,

		LeakOnsetPerHour:  0.05,
		LeakGrowthPerHour: 0.5,
		AnomalyPerHour:    0.5,
	}
}

// Env is the per-tick environment.
type Env struct {
	Dt   time.Duration // simulated time covered by this tick
	Now  time.Time
	Rand simrand.Source

	// HoldTankLevel pins the tank volume for this tick (forced overrides).
	HoldTankLevel bool
}

func (e Env) seconds() float64 { return e.Dt.Seconds() }
func (e Env) hours() float64   { return e.Dt.Hours() }

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// approach moves current toward target with first-order lag tau (seconds).
func approach(current, target, dt, tau float64) float64 {
	if tau <= 0 {
		return target
	}
	return target + (current-target)*math.Exp(-dt/tau)
}

// rundown halves v every halfLife seconds and snaps to zero below floor.
func rundown(v, dt, halfLife, floor float64) float64 {
	if halfLife > 0 {
		v *= math.Pow(0.5, dt/halfLife)
	} else {
		v = 0
	}
	if v < floor {
		return 0
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
