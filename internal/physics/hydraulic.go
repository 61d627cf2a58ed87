package physics

import (
	"math"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/simrand"
)

const (
	flowFloor     = 0.5  // L/min
	pressureFloor = 0.01 // bar
)

// StepHydraulics advances the pump, every pipeline and the tank volume.
func StepHydraulics(s *model.State, cfg Config, env Env) {
	stepPump(&s.Pump, s.Tank.InletValveOpen, cfg, env)

	head := TankHead(&s.Tank, cfg)
	var drain float64
	for i := range s.Pipelines {
		stepPipeline(&s.Pipelines[i], head, cfg, env)
		if s.Tank.OutletValveOpen {
			// Leaked water leaves the tank too, so drain follows inlet flow.
			drain += s.Pipelines[i].Inlet.Flow
		}
	}

	var fill float64
	if s.Tank.InletValveOpen {
		fill = s.Pump.FlowOutput
	}
	stepTank(&s.Tank, fill, drain, env)
}

// TankHead is the supply pressure available at the pipeline manifold.
func TankHead(t *model.Tank, cfg Config) float64 {
	if !t.OutletValveOpen || t.CurrentVolume <= 0 {
		return 0
	}
	return cfg.TankHeadBar * (0.6 + 0.4*Clamp(t.Level, 0, 100)/100)
}

func stepPump(p *model.Pump, inletOpen bool, cfg Config, env Env) {
	dt := env.seconds()

	if p.Status == model.PumpOn {
		eff := 1.0
		if cfg.PumpRatedEfficiency > 0 {
			eff = Clamp(p.Efficiency/cfg.PumpRatedEfficiency, 0, 1.05)
		}
		targetFlow := simrand.Jitter(env.Rand, p.RatedFlow*eff, cfg.FlowNoise)
		targetPressure := simrand.Jitter(env.Rand, p.RatedPressure, cfg.FlowNoise/2)
		if !inletOpen {
			// Dead-headed against a closed inlet valve.
			targetFlow = 0
			targetPressure = p.RatedPressure * cfg.DeadHeadFactor
		}
		p.FlowOutput = approach(p.FlowOutput, targetFlow, dt, cfg.PumpRampSeconds)
		p.PressureOutput = approach(p.PressureOutput, targetPressure, dt, cfg.PumpRampSeconds)
	} else {
		p.FlowOutput = rundown(p.FlowOutput, dt, cfg.DecayHalfLife, flowFloor)
		p.PressureOutput = rundown(p.PressureOutput, dt, cfg.DecayHalfLife, pressureFloor)
	}

	p.FlowOutput = Clamp(p.FlowOutput, 0, p.RatedFlow*1.2)
	p.PressureOutput = Clamp(p.PressureOutput, 0, p.RatedPressure*1.5)
}

func stepPipeline(p *model.PipelineSegment, head float64, cfg Config, env Env) {
	dt := env.seconds()

	if !p.ValveOpen {
		p.Inlet.Flow = 0
		p.Outlet.Flow = 0
		p.EstimatedLeakage = 0
		p.Inlet.Pressure = rundown(p.Inlet.Pressure, dt, cfg.DecayHalfLife, pressureFloor)
		p.Outlet.Pressure = math.Min(rundown(p.Outlet.Pressure, dt, cfg.DecayHalfLife, pressureFloor), p.Inlet.Pressure)
		return
	}

	leak := Clamp(p.LeakageProbability, 0, 100) / 100

	if head <= 0 {
		// Supply lost: the line drains down rather than stopping dead.
		p.Inlet.Flow = rundown(p.Inlet.Flow, dt, cfg.DecayHalfLife, flowFloor)
		p.Inlet.Pressure = rundown(p.Inlet.Pressure, dt, cfg.DecayHalfLife, pressureFloor)
	} else {
		ratio := head / cfg.TankHeadBar
		target := simrand.Jitter(env.Rand, p.NominalFlow*math.Sqrt(ratio), cfg.FlowNoise)
		p.Inlet.Flow = approach(p.Inlet.Flow, target, dt, cfg.LineRampSeconds)
		p.Inlet.Pressure = approach(p.Inlet.Pressure, head, dt, cfg.LineRampSeconds)
	}
	p.Inlet.Flow = Clamp(p.Inlet.Flow, 0, p.NominalFlow*1.5)
	p.Inlet.Pressure = Clamp(p.Inlet.Pressure, 0, math.Max(cfg.TankHeadBar, p.PressureRating)*1.5)

	leakLoss := Clamp(leak*cfg.LeakLossFactor*simrand.Jitter(env.Rand, 1, 0.1), 0, 1)
	loss := Clamp(cfg.FrictionLoss+leakLoss, 0, 1)
	p.Outlet.Flow = p.Inlet.Flow * (1 - loss)
	p.EstimatedLeakage = round(p.Inlet.Flow*leakLoss, 2)

	drop := p.Length/1000*cfg.PressureDropPerKm + leak*cfg.LeakPressureDrop
	p.Outlet.Pressure = Clamp(p.Inlet.Pressure-drop, 0, p.Inlet.Pressure)
}

func stepTank(t *model.Tank, fill, drain float64, env Env) {
	t.FillRate = round(fill, 2)
	t.DrainRate = round(drain, 2)
	t.IsFilling = fill > drain

	if !env.HoldTankLevel {
		t.CurrentVolume += (fill - drain) / 60 * env.seconds()
	}
	t.CurrentVolume = Clamp(t.CurrentVolume, 0, t.Capacity)
	if t.Capacity > 0 {
		t.Level = Clamp(t.CurrentVolume/t.Capacity*100, 0, 100)
	} else {
		t.Level = 0
	}
}

// SetTankLevel forces the level and keeps the volume consistent with it.
func SetTankLevel(t *model.Tank, level float64) {
	t.Level = Clamp(level, 0, 100)
	t.CurrentVolume = t.Capacity * t.Level / 100
}
