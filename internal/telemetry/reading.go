// Package telemetry republishes the twin as field-node readings so IoT
// dashboards and stream consumers can treat it like the real sensor
// network. Readings go to MQTT and Kafka.
package telemetry

import (
	"strconv"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

// Reading is one node report: {"nodeId", "metrics", "timestamp"}.
type Reading struct {
	NodeID    string             `json:"nodeId"`
	Metrics   map[string]float64 `json:"metrics"`
	Timestamp time.Time          `json:"timestamp"`
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Readings splits a snapshot into node reports: pump-1, tank-1, mcu-1 and
// one pipeline-N per line.
func Readings(s model.State) []Reading {
	ts := s.UpdatedAt.UTC()
	out := make([]Reading, 0, 3+len(s.Pipelines))

	p := s.Pump
	out = append(out, Reading{NodeID: "pump-1", Timestamp: ts, Metrics: map[string]float64{
		"pumpRunning":       flag(p.Status == model.PumpOn),
		"pumpRunningHours":  p.RunningHours,
		"pumpEfficiency":    p.Efficiency,
		"pumpDischargeRate": p.FlowOutput,
		"pressure":          p.PressureOutput,
		"powerConsumption":  p.PowerConsumption,
		"voltage":           p.Voltage,
		"current":           p.Current,
		"motorTemperature":  p.MotorTemperature,
		"vibration":         p.Vibration,
		"operationCycles":   float64(p.OperationCycles),
	}})

	t := s.Tank
	out = append(out, Reading{NodeID: "tank-1", Timestamp: ts, Metrics: map[string]float64{
		"tankLevel":   t.Level,
		"tankVolume":  t.CurrentVolume,
		"fillRate":    t.FillRate,
		"drainRate":   t.DrainRate,
		"inletOpen":   flag(t.InletValveOpen),
		"outletOpen":  flag(t.OutletValveOpen),
		"temperature": t.Temperature,
		"ph":          t.Quality.PH,
		"turbidity":   t.Quality.Turbidity,
		"chlorine":    t.Quality.Chlorine,
		"tds":         t.Quality.TDS,
		"hardness":    t.Quality.Hardness,
		"ec":          t.Quality.EC,
	}})

	for _, line := range s.Pipelines {
		out = append(out, Reading{NodeID: "pipeline-" + strconv.Itoa(line.ID), Timestamp: ts, Metrics: map[string]float64{
			"valveOpen":            flag(line.ValveOpen),
			"flowRate":             line.Outlet.Flow,
			"pressure":             line.Outlet.Pressure,
			"inletPressure":        line.Inlet.Pressure,
			"leakProbabilityScore": line.LeakageProbability,
			"estimatedLeakage":     line.EstimatedLeakage,
			"qualityDeviation":     line.QualityDeviation,
			"ecoli":                line.Outlet.Quality.Ecoli,
			"residualChlorine":     line.Outlet.Quality.ResidualChlorine,
			"householdsServed":     float64(line.HouseholdsServed),
		}})
	}

	cu := s.ControlUnit
	out = append(out, Reading{NodeID: "mcu-1", Timestamp: ts, Metrics: map[string]float64{
		"health":           cu.Health,
		"signalStrength":   cu.SignalStrength,
		"uptime":           cu.Uptime,
		"commandsReceived": float64(cu.CommandsReceived),
		"commandsFailed":   float64(cu.CommandsFailed),
		"pendingCommands":  float64(len(cu.PendingCommands)),
	}})
	return out
}
