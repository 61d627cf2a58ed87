// Package alerts turns plant state into operator alerts. Rules produce
// findings; the Book merges findings into the alert list keyed by
// (type, target) so a persisting condition never piles up duplicates.
package alerts

import (
	"fmt"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

// Alert targets.
const (
	TargetTank = "tank"
	TargetPump = "pump"
)

// PipelineTarget names a pipeline as an alert target.
func PipelineTarget(id int) string { return fmt.Sprintf("pipeline-%d", id) }

// Thresholds configures the rule table.
type Thresholds struct {
	TankLow            float64 `yaml:"tank_low"`
	TankCritical       float64 `yaml:"tank_critical"`
	TankFull           float64 `yaml:"tank_full"`
	TankOverflow       float64 `yaml:"tank_overflow"`
	Leakage            float64 `yaml:"leakage"`
	LeakageCritical    float64 `yaml:"leakage_critical"`
	MinServicePressure float64 `yaml:"min_service_pressure"`
	Overheat           float64 `yaml:"overheat"`
	OverheatCritical   float64 `yaml:"overheat_critical"`
	QualityDeviation   float64 `yaml:"quality_deviation"`
	TankPHLow          float64 `yaml:"tank_ph_low"`
	TankPHHigh         float64 `yaml:"tank_ph_high"`
}

// DefaultThresholds returns the stock rule table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TankLow:            20,
		TankCritical:       10,
		TankFull:           95,
		TankOverflow:       100,
		Leakage:            30,
		LeakageCritical:    60,
		MinServicePressure: 0.5,
		Overheat:           65,
		OverheatCritical:   80,
		QualityDeviation:   15,
		TankPHLow:          6.5,
		TankPHHigh:         8.5,
	}
}

// Finding is one rule hit for the current tick.
type Finding struct {
	Type     model.AlertType
	Severity model.Severity
	Target   string
	Message  string
}

// Evaluate runs every condition rule against s. Event alerts (pump timer)
// are raised by the scheduler, not here.
func Evaluate(s *model.State, th Thresholds) []Finding {
	var out []Finding
	add := func(t model.AlertType, sev model.Severity, target, format string, args ...any) {
		out = append(out, Finding{Type: t, Severity: sev, Target: target, Message: fmt.Sprintf(format, args...)})
	}

	tank := &s.Tank
	if tank.Level < th.TankLow {
		sev := model.SeverityWarning
		if tank.Level < th.TankCritical {
			sev = model.SeverityCritical
		}
		add(model.AlertTankLow, sev, TargetTank, "Tank level low: %.1f%%", tank.Level)
	}
	if tank.Level >= th.TankFull {
		add(model.AlertTankFull, model.SeverityWarning, TargetTank, "Tank nearly full: %.1f%%", tank.Level)
	}
	if tank.Level >= th.TankOverflow {
		add(model.AlertTankOverflow, model.SeverityCritical, TargetTank, "Tank overflow at %.1f%%, pump interlocked", tank.Level)
	}
	if ph := tank.Quality.PH; ph < th.TankPHLow || ph > th.TankPHHigh {
		add(model.AlertQuality, model.SeverityWarning, TargetTank, "Tank pH out of range: %.2f", ph)
	}

	pump := &s.Pump
	if pump.MotorTemperature > th.Overheat {
		sev := model.SeverityHigh
		if pump.MotorTemperature > th.OverheatCritical {
			sev = model.SeverityCritical
		}
		add(model.AlertPumpOverheat, sev, TargetPump, "Pump motor temperature %.1f°C", pump.MotorTemperature)
	}

	maintenance(&pump.Maintenance, TargetPump, add)
	maintenance(&tank.Maintenance, TargetTank, add)

	for i := range s.Pipelines {
		p := &s.Pipelines[i]
		target := PipelineTarget(p.ID)

		if p.LeakageProbability > th.Leakage {
			sev := model.SeverityHigh
			if p.LeakageProbability > th.LeakageCritical {
				sev = model.SeverityCritical
			}
			add(model.AlertLeakage, sev, target, "%s: leakage %.1f%% (~%.1f L/min lost)", p.Name, p.LeakageProbability, p.EstimatedLeakage)
		}

		if p.ValveOpen && p.Inlet.Flow > 0 {
			switch {
			case p.PressureRating > 0 && p.Inlet.Pressure > p.PressureRating:
				add(model.AlertPressure, model.SeverityHigh, target, "%s: inlet pressure %.2f bar above rating %.1f", p.Name, p.Inlet.Pressure, p.PressureRating)
			case p.Outlet.Pressure < th.MinServicePressure:
				add(model.AlertPressure, model.SeverityWarning, target, "%s: low service pressure %.2f bar", p.Name, p.Outlet.Pressure)
			}
		}

		if p.ValveOpen {
			switch {
			case p.Outlet.Quality.Ecoli > 0:
				add(model.AlertQuality, model.SeverityCritical, target, "%s: E. coli %.1f CFU/100mL at outlet", p.Name, p.Outlet.Quality.Ecoli)
			case p.QualityDeviation > th.QualityDeviation:
				add(model.AlertQuality, model.SeverityWarning, target, "%s: quality deviation %.1f%%", p.Name, p.QualityDeviation)
			}
		}

		maintenance(&p.Maintenance, target, add)
	}
	return out
}

func maintenance(m *model.Maintenance, target string, add func(model.AlertType, model.Severity, string, string, ...any)) {
	switch m.MaintenanceStatus {
	case model.MaintenanceOverdue:
		add(model.AlertMaintenanceDue, model.SeverityWarning, target, "Maintenance overdue on %s by %d days", target, -m.DaysUntilDue)
	case model.MaintenanceUrgent:
		add(model.AlertMaintenanceDue, model.SeverityInfo, target, "Maintenance due on %s in %d days", target, m.DaysUntilDue)
	}
}
