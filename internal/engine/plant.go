package engine

import (
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

const day = 24 * time.Hour

// ReferencePlant is the village scheme the twin starts from: one borewell
// pump lifting into a 50 kL overhead tank that feeds five ward lines.
func ReferencePlant(now time.Time) model.State {
	now = now.UTC()
	serviced := func(lastDaysAgo, intervalDays int) model.Maintenance {
		last := now.Add(-time.Duration(lastDaysAgo) * day)
		return model.Maintenance{
			LastMaintenanceAt:       last,
			NextMaintenanceAt:       last.Add(time.Duration(intervalDays) * day),
			MaintenanceIntervalDays: intervalDays,
			MaintenanceHistory:      []model.MaintenanceRecord{},
		}
	}

	tank := model.Tank{
		ID:              "OHT-001",
		Name:            "Overhead Tank",
		Capacity:        50000,
		InletValveOpen:  true,
		OutletValveOpen: true,
		Temperature:     24.5,
		Quality: model.WaterQuality{
			PH:        7.3,
			Turbidity: 1.2,
			Chlorine:  0.8,
			TDS:       320,
			Hardness:  180,
			EC:        500,
		},
		Maintenance: serviced(60, 180),
	}
	tank.Level = 72.5
	tank.CurrentVolume = tank.Capacity * tank.Level / 100

	pump := model.Pump{
		ID:               "PUMP-001",
		Status:           model.PumpOn,
		RatedFlow:        420,
		RatedPressure:    4.5,
		MotorTemperature: 48,
		Vibration:        2.3,
		BearingWear:      0.3,
		Efficiency:       84,
		RunningHours:     1247.5,
		OperationCycles:  342,
		Voltage:          415,
		PowerFactor:      0.85,
		Maintenance:      serviced(80, 90),
	}

	line := func(id int, name string, length, diameter float64, material string, open bool, nominal, leak float64, households int, lastDaysAgo int) model.PipelineSegment {
		return model.PipelineSegment{
			ID:                 id,
			Name:               name,
			ValveOpen:          open,
			LeakageProbability: leak,
			Diameter:           diameter,
			Material:           material,
			Length:             length,
			PressureRating:     6,
			NominalFlow:        nominal,
			HouseholdsServed:   households,
			Maintenance:        serviced(lastDaysAgo, 365),
		}
	}
	pipelines := []model.PipelineSegment{
		line(1, "Main Distribution - Ward 1", 1250, 200, "DI", true, 120, 5, 245, 120),
		line(2, "Secondary Line - Ward 2", 980, 150, "HDPE", true, 90, 12, 189, 200),
		line(3, "Extension Line - Ward 3", 750, 100, "HDPE", true, 60, 3, 156, 45),
		line(4, "Booster Line - Ward 4", 1100, 150, "DI", false, 90, 0, 0, 300),
		line(5, "Emergency Line - Ward 5", 650, 100, "PVC", true, 60, 45, 98, 370),
	}

	relays := make(map[int]model.ValveState, len(pipelines))
	for _, p := range pipelines {
		relays[p.ID] = model.ValveFromBool(p.ValveOpen)
	}
	cu := model.ControlUnit{
		ID:               "MCU-001",
		Health:           98.5,
		Uptime:           864000,
		NetworkStatus:    model.NetworkConnected,
		SignalStrength:   -42,
		CommandsReceived: 1547,
		CommandsExecuted: 1542,
		CommandsFailed:   5,
		PendingCommands:  []model.RelayCommand{},
		ExecutedCommands: []model.RelayCommand{},
		PumpRelayStatus:  pump.Status,
		ValveRelays:      relays,
		InletRelay:       model.ValveFromBool(tank.InletValveOpen),
		OutletRelay:      model.ValveFromBool(tank.OutletValveOpen),
		LastHeartbeat:    now,
	}

	return model.State{
		SystemID:    "GJJ-VILLAGE-001",
		SystemName:  "Gram Jal Jeevan Rural Water Supply",
		UpdatedAt:   now,
		Tank:        tank,
		Pump:        pump,
		Pipelines:   pipelines,
		ControlUnit: cu,
		Metrics:     model.SystemMetrics{Alerts: []model.Alert{}},
		Schedule:    model.PumpSchedule{Mode: model.ModeManual},
	}
}
