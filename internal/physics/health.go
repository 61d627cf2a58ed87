package physics

import (
	"math"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/simrand"
)

const (
	baseVibration   = 2.0 // mm/s, healthy running pump
	maxBearingWear  = 10
	minEfficiency   = 40
	runningPF       = 0.85
	standbyPF       = 0.5
	motorLoadRiseC  = 20 // °C above ambient at rated efficiency
	deadHeadRiseC   = 30
	efficiencyHeatC = 0.8 // °C per efficiency point lost
)

// StepHealth advances pump wear and electrical readings, leak onset on the
// pipelines and the maintenance derivations of every component.
func StepHealth(s *model.State, cfg Config, env Env) {
	stepPumpHealth(&s.Pump, s.Tank.InletValveOpen, cfg, env)
	for i := range s.Pipelines {
		stepLeak(&s.Pipelines[i], cfg, env)
	}

	DeriveMaintenance(&s.Tank.Maintenance, env.Now)
	DeriveMaintenance(&s.Pump.Maintenance, env.Now)
	for i := range s.Pipelines {
		DeriveMaintenance(&s.Pipelines[i].Maintenance, env.Now)
	}
}

func stepPumpHealth(p *model.Pump, inletOpen bool, cfg Config, env Env) {
	dt := env.seconds()
	r := env.Rand
	on := p.Status == model.PumpOn

	if on {
		p.RunningHours += env.hours()
	}

	target := cfg.AmbientTemperature
	if on {
		target += motorLoadRiseC + math.Max(0, cfg.PumpRatedEfficiency-p.Efficiency)*efficiencyHeatC
		if !inletOpen {
			target += deadHeadRiseC
		}
	}
	p.MotorTemperature = approach(p.MotorTemperature, target, dt, cfg.MotorTauSeconds)
	if on {
		p.MotorTemperature += simrand.Noise(r, 0.1)
	}
	p.MotorTemperature = Clamp(p.MotorTemperature, cfg.AmbientTemperature, cfg.MaxMotorTemp)

	if p.MotorTemperature > cfg.OverheatThreshold && simrand.Chance(r, cfg.DegradePerSecond*dt) {
		p.Efficiency -= simrand.Between(r, 0.05, 0.2)
		p.BearingWear += simrand.Between(r, 0.01, 0.05)
	}
	p.Efficiency = Clamp(p.Efficiency, minEfficiency, cfg.PumpRatedEfficiency)
	p.BearingWear = Clamp(p.BearingWear, 0, maxBearingWear)

	if on {
		p.Vibration = approach(p.Vibration, baseVibration+p.BearingWear, dt, cfg.PumpRampSeconds) + simrand.Noise(r, 0.1)
	} else {
		p.Vibration = rundown(p.Vibration, dt, cfg.DecayHalfLife, 0.05)
	}
	p.Vibration = Clamp(p.Vibration, 0, 20)

	p.Voltage = round(simrand.Jitter(r, cfg.SupplyVoltage, 0.01), 1)
	if on {
		p.PowerFactor = round(Clamp(simrand.Jitter(r, runningPF, 0.01), 0, 1), 2)
		p.PowerConsumption = simrand.Jitter(r, cfg.PumpRatedPowerKW*cfg.PumpRatedEfficiency/math.Max(p.Efficiency, minEfficiency), 0.02)
	} else {
		p.PowerFactor = standbyPF
		p.PowerConsumption = cfg.PumpStandbyKW
	}
	p.PowerConsumption = round(p.PowerConsumption, 2)
	p.Current = round(p.PowerConsumption*1000/(math.Sqrt(3)*p.Voltage*p.PowerFactor), 2)
}

// stepLeak raises leakage on stressed lines. Leakage never falls here;
// only repair or a forced override lowers it.
func stepLeak(p *model.PipelineSegment, cfg Config, env Env) {
	if !p.ValveOpen || p.Inlet.Flow <= 0 {
		return
	}
	stress := 1.0
	if p.PressureRating > 0 {
		stress = Clamp(p.Inlet.Pressure/p.PressureRating, 0, 2)
	}
	if simrand.Chance(env.Rand, cfg.LeakOnsetPerHour*stress*env.hours()) {
		p.LeakageProbability += simrand.Between(env.Rand, 1, 5)
	}
	if p.LeakageProbability > 0 {
		p.LeakageProbability += cfg.LeakGrowthPerHour * stress * env.hours()
	}
	p.LeakageProbability = Clamp(p.LeakageProbability, 0, 100)
}
