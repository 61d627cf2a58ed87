package physics

import "github.com/strawberryjas/gramjaljeevan/internal/model"

// Plant-level classification thresholds.
const (
	LowTankLevel        = 20.0
	LeakageAlertLPM     = 50.0
	QualityAlertPercent = 15.0
)

// Summarize recomputes the plant aggregates and the system status. The
// alert list is left untouched.
func Summarize(s *model.State) {
	m := &s.Metrics
	m.TotalFlowRate, m.AveragePressure, m.SystemEfficiency = 0, 0, 0
	m.TotalLeakage, m.AverageQualityDeviation, m.TotalHouseholdsServed = 0, 0, 0

	var inlet, outlet, pressure, deviation float64
	open := 0
	for _, p := range s.Pipelines {
		m.TotalLeakage += p.EstimatedLeakage
		if !p.ValveOpen {
			continue
		}
		open++
		inlet += p.Inlet.Flow
		outlet += p.Outlet.Flow
		pressure += p.Outlet.Pressure
		deviation += p.QualityDeviation
		if p.Outlet.Flow > 0 {
			m.TotalHouseholdsServed += p.HouseholdsServed
		}
	}
	m.TotalFlowRate = round(outlet, 2)
	m.TotalLeakage = round(m.TotalLeakage, 2)
	if open > 0 {
		m.AveragePressure = round(pressure/float64(open), 3)
		m.AverageQualityDeviation = round(deviation/float64(open), 2)
	}
	if inlet > 0 {
		m.SystemEfficiency = round(outlet/inlet*100, 2)
	}

	s.SystemStatus = classify(s)
}

func classify(s *model.State) model.SystemStatus {
	switch {
	case s.Failsafe.Active:
		return model.StatusFailsafe
	case s.Tank.Level < LowTankLevel:
		return model.StatusLowTank
	case s.Metrics.TotalLeakage > LeakageAlertLPM:
		return model.StatusLeakageAlert
	case s.Metrics.AverageQualityDeviation > QualityAlertPercent:
		return model.StatusQualityAlert
	case s.Pump.Status != model.PumpOn:
		return model.StatusStandby
	}
	return model.StatusOperational
}
