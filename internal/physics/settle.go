package physics

import (
	"math"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

// Settle puts flows, pressures and line quality at their noise-free steady
// state for the current valve and pump positions. Used to build a plant
// that looks like it has been running rather than one starting from rest.
func Settle(s *model.State, cfg Config) {
	p := &s.Pump
	p.FlowOutput, p.PressureOutput = 0, 0
	if p.Status == model.PumpOn {
		p.PressureOutput = p.RatedPressure
		if s.Tank.InletValveOpen {
			p.FlowOutput = p.RatedFlow * Clamp(p.Efficiency/cfg.PumpRatedEfficiency, 0, 1.05)
		} else {
			p.PressureOutput = p.RatedPressure * cfg.DeadHeadFactor
		}
	}

	head := TankHead(&s.Tank, cfg)
	var drain float64
	for i := range s.Pipelines {
		line := &s.Pipelines[i]
		line.Inlet.Quality = model.LineQuality{
			PH:               s.Tank.Quality.PH,
			Turbidity:        s.Tank.Quality.Turbidity,
			TDS:              s.Tank.Quality.TDS,
			ResidualChlorine: s.Tank.Quality.Chlorine,
			Ammonia:          0.05,
		}
		line.Inlet.Flow, line.Inlet.Pressure, line.Outlet.Flow, line.Outlet.Pressure = 0, 0, 0, 0
		line.EstimatedLeakage = 0

		if line.ValveOpen && head > 0 {
			leak := Clamp(line.LeakageProbability, 0, 100) / 100
			leakLoss := leak * cfg.LeakLossFactor
			line.Inlet.Flow = line.NominalFlow * math.Sqrt(head/cfg.TankHeadBar)
			line.Inlet.Pressure = head
			line.Outlet.Flow = line.Inlet.Flow * (1 - Clamp(cfg.FrictionLoss+leakLoss, 0, 1))
			line.EstimatedLeakage = round(line.Inlet.Flow*leakLoss, 2)
			drop := line.Length/1000*cfg.PressureDropPerKm + leak*cfg.LeakPressureDrop
			line.Outlet.Pressure = Clamp(head-drop, 0, head)
			if s.Tank.OutletValveOpen {
				drain += line.Inlet.Flow
			}
		}
		outletSample(line, cfg, Env{})
		line.QualityDeviation = Deviation(&line.Outlet.Quality, &s.Tank.Quality)
	}

	var fill float64
	if s.Tank.InletValveOpen {
		fill = p.FlowOutput
	}
	s.Tank.FillRate = round(fill, 2)
	s.Tank.DrainRate = round(drain, 2)
	s.Tank.IsFilling = fill > drain
}
