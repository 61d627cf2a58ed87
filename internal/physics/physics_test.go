package physics

import (
	"testing"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/simrand"
)

var epoch = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func testEnv(seed int64) Env {
	return Env{Dt: time.Second, Now: epoch, Rand: simrand.New(seed)}
}

func testState() *model.State {
	q := model.WaterQuality{PH: 7.3, Turbidity: 1.2, Chlorine: 0.8, TDS: 320, Hardness: 180, EC: 500}
	line := model.LineQuality{PH: 7.3, Turbidity: 1.2, TDS: 320, ResidualChlorine: 0.8}
	s := &model.State{
		Tank: model.Tank{
			Level: 50, Capacity: 50000, CurrentVolume: 25000,
			InletValveOpen: true, OutletValveOpen: true, Quality: q,
		},
		Pump: model.Pump{
			Status: model.PumpOff, RatedFlow: 420, RatedPressure: 4.5,
			Efficiency: 85, MotorTemperature: 40,
		},
	}
	for i, leak := range []float64{5, 45} {
		s.Pipelines = append(s.Pipelines, model.PipelineSegment{
			ID: i + 1, ValveOpen: true, Length: 1000, NominalFlow: 80, PressureRating: 6,
			LeakageProbability: leak,
			Inlet:              model.FlowPoint{Quality: line},
			Outlet:             model.FlowPoint{Quality: line},
		})
	}
	return s
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.LeakOnsetPerHour = 0
	cfg.LeakGrowthPerHour = 0
	cfg.AnomalyPerHour = 0
	return cfg
}

func TestPumpOffDecaysGradually(t *testing.T) {
	s := testState()
	s.Pump.FlowOutput = 420
	s.Pump.PressureOutput = 4.5
	cfg, env := quietConfig(), testEnv(1)

	StepHydraulics(s, cfg, env)
	if s.Pump.FlowOutput <= 0 || s.Pump.FlowOutput >= 420 {
		t.Fatalf("expected partial rundown after one tick, got %f", s.Pump.FlowOutput)
	}
	if s.Pump.PressureOutput <= 0 || s.Pump.PressureOutput >= 4.5 {
		t.Fatalf("expected partial pressure rundown, got %f", s.Pump.PressureOutput)
	}
	for i := 0; i < 30; i++ {
		StepHydraulics(s, cfg, env)
	}
	if s.Pump.FlowOutput != 0 || s.Pump.PressureOutput != 0 {
		t.Errorf("expected full rundown, flow=%f pressure=%f", s.Pump.FlowOutput, s.Pump.PressureOutput)
	}
}

func TestPumpOnRampsTowardRated(t *testing.T) {
	s := testState()
	s.Pump.Status = model.PumpOn
	cfg, env := quietConfig(), testEnv(2)
	for i := 0; i < 30; i++ {
		StepHydraulics(s, cfg, env)
	}
	if s.Pump.FlowOutput < 380 || s.Pump.FlowOutput > 460 {
		t.Errorf("flow not near rated: %f", s.Pump.FlowOutput)
	}
	if s.Tank.FillRate != round(s.Pump.FlowOutput, 2) {
		t.Errorf("fill rate %f should follow pump flow %f", s.Tank.FillRate, s.Pump.FlowOutput)
	}
}

func TestDeadHeadStopsFlow(t *testing.T) {
	s := testState()
	s.Pump.Status = model.PumpOn
	s.Tank.InletValveOpen = false
	cfg, env := quietConfig(), testEnv(3)
	for i := 0; i < 30; i++ {
		StepHydraulics(s, cfg, env)
	}
	if s.Pump.FlowOutput > 1 {
		t.Errorf("expected no flow against closed inlet, got %f", s.Pump.FlowOutput)
	}
	if s.Tank.FillRate != 0 {
		t.Errorf("expected zero fill rate, got %f", s.Tank.FillRate)
	}
}

func TestClosedValveZeroFlowPressureDecays(t *testing.T) {
	s := testState()
	cfg, env := quietConfig(), testEnv(4)
	for i := 0; i < 10; i++ {
		StepHydraulics(s, cfg, env)
	}
	p := &s.Pipelines[0]
	before := p.Inlet.Pressure
	if before <= 0 {
		t.Fatalf("expected pressurised line, got %f", before)
	}

	p.ValveOpen = false
	StepHydraulics(s, cfg, env)
	if p.Inlet.Flow != 0 || p.Outlet.Flow != 0 {
		t.Fatalf("closed valve must stop flow, got in=%f out=%f", p.Inlet.Flow, p.Outlet.Flow)
	}
	if p.Inlet.Pressure <= 0 || p.Inlet.Pressure >= before {
		t.Errorf("expected decaying pressure, before=%f after=%f", before, p.Inlet.Pressure)
	}
	if p.Outlet.Pressure > p.Inlet.Pressure {
		t.Errorf("outlet pressure %f above inlet %f", p.Outlet.Pressure, p.Inlet.Pressure)
	}
}

func TestPipelineMonotonicity(t *testing.T) {
	s := testState()
	s.Pump.Status = model.PumpOn
	s.Pipelines[1].LeakageProbability = 100
	cfg := quietConfig()
	env := testEnv(5)
	for i := 0; i < 2000; i++ {
		StepHydraulics(s, cfg, env)
		for _, p := range s.Pipelines {
			if p.Outlet.Flow > p.Inlet.Flow {
				t.Fatalf("tick %d pipeline %d: outlet flow %f > inlet %f", i, p.ID, p.Outlet.Flow, p.Inlet.Flow)
			}
			if p.Outlet.Pressure > p.Inlet.Pressure {
				t.Fatalf("tick %d pipeline %d: outlet pressure %f > inlet %f", i, p.ID, p.Outlet.Pressure, p.Inlet.Pressure)
			}
		}
	}
}

func TestTankBounds(t *testing.T) {
	s := testState()
	s.Pump.Status = model.PumpOn
	s.Tank.OutletValveOpen = false
	cfg := quietConfig()
	env := testEnv(6)
	env.Dt = time.Minute
	for i := 0; i < 500; i++ {
		StepHydraulics(s, cfg, env)
		if s.Tank.Level < 0 || s.Tank.Level > 100 || s.Tank.CurrentVolume > s.Tank.Capacity {
			t.Fatalf("tank out of bounds: level=%f volume=%f", s.Tank.Level, s.Tank.CurrentVolume)
		}
	}
	if s.Tank.Level != 100 {
		t.Errorf("expected full tank, got %f", s.Tank.Level)
	}

	s.Pump.Status = model.PumpOff
	s.Tank.OutletValveOpen = true
	for i := 0; i < 5000; i++ {
		StepHydraulics(s, cfg, env)
		if s.Tank.Level < 0 || s.Tank.CurrentVolume < 0 {
			t.Fatalf("tank below zero: level=%f volume=%f", s.Tank.Level, s.Tank.CurrentVolume)
		}
	}
	if s.Tank.Level != 0 {
		t.Errorf("expected drained tank, got %f", s.Tank.Level)
	}
}

func TestHoldTankLevel(t *testing.T) {
	s := testState()
	SetTankLevel(&s.Tank, 100)
	env := testEnv(7)
	env.HoldTankLevel = true
	StepHydraulics(s, quietConfig(), env)
	if s.Tank.Level != 100 {
		t.Errorf("held level moved to %f", s.Tank.Level)
	}
}

func TestQualityBoundsAndLeakDegradation(t *testing.T) {
	s := testState()
	cfg := DefaultConfig()
	cfg.LeakOnsetPerHour = 0
	cfg.LeakGrowthPerHour = 0
	env := testEnv(8)
	for i := 0; i < 5000; i++ {
		StepHydraulics(s, cfg, env)
		StepQuality(s, cfg, env)
		q := s.Tank.Quality
		if q.PH < 6 || q.PH > 9 || q.Turbidity < 0.1 || q.Turbidity > 10 || q.Chlorine < 0 || q.Chlorine > 2 || q.TDS < 50 || q.TDS > 1000 {
			t.Fatalf("tank quality out of bounds at %d: %+v", i, q)
		}
		for _, p := range s.Pipelines {
			if p.QualityDeviation < 0 || p.QualityDeviation > 100 {
				t.Fatalf("deviation out of bounds: %f", p.QualityDeviation)
			}
		}
	}

	// Compare the TDS rise on the clean and the leaking line under identical inputs.
	clean, leaky := s.Pipelines[0].Outlet.Quality.TDS/s.Pipelines[0].Inlet.Quality.TDS,
		s.Pipelines[1].Outlet.Quality.TDS/s.Pipelines[1].Inlet.Quality.TDS
	if leaky <= clean {
		t.Errorf("expected leaking line to gain more TDS: clean=%f leaky=%f", clean, leaky)
	}
}

func TestDeviationZeroForIdenticalSample(t *testing.T) {
	tank := model.WaterQuality{PH: 7, Turbidity: 1, TDS: 300, Chlorine: 0.5}
	out := model.LineQuality{PH: 7, Turbidity: 1, TDS: 300, ResidualChlorine: 0.5}
	if d := Deviation(&out, &tank); d != 0 {
		t.Errorf("expected zero deviation, got %f", d)
	}
}

func TestLeakageNeverFallsDuringTicks(t *testing.T) {
	s := testState()
	cfg := DefaultConfig()
	cfg.LeakOnsetPerHour = 50
	env := testEnv(9)
	prev := []float64{s.Pipelines[0].LeakageProbability, s.Pipelines[1].LeakageProbability}
	for i := 0; i < 3000; i++ {
		StepHydraulics(s, cfg, env)
		StepHealth(s, cfg, env)
		for j, p := range s.Pipelines {
			if p.LeakageProbability < prev[j] {
				t.Fatalf("leakage fell on pipeline %d: %f -> %f", p.ID, prev[j], p.LeakageProbability)
			}
			if p.LeakageProbability > 100 {
				t.Fatalf("leakage above 100: %f", p.LeakageProbability)
			}
			prev[j] = p.LeakageProbability
		}
	}
}

func TestRunningHoursOnlyWhileOn(t *testing.T) {
	s := testState()
	cfg, env := quietConfig(), testEnv(10)
	env.Dt = time.Hour
	StepHealth(s, cfg, env)
	if s.Pump.RunningHours != 0 {
		t.Fatalf("hours advanced while off: %f", s.Pump.RunningHours)
	}
	s.Pump.Status = model.PumpOn
	StepHealth(s, cfg, env)
	if s.Pump.RunningHours != 1 {
		t.Errorf("expected 1 running hour, got %f", s.Pump.RunningHours)
	}
}

func TestDeadHeadOverheatsAndDegrades(t *testing.T) {
	s := testState()
	s.Pump.Status = model.PumpOn
	s.Tank.InletValveOpen = false
	cfg, env := quietConfig(), testEnv(11)
	for i := 0; i < 1800; i++ {
		StepHealth(s, cfg, env)
	}
	if s.Pump.MotorTemperature <= cfg.OverheatThreshold {
		t.Fatalf("expected overheat, got %f", s.Pump.MotorTemperature)
	}
	if s.Pump.Efficiency >= 85 {
		t.Errorf("expected efficiency loss, got %f", s.Pump.Efficiency)
	}
	if s.Pump.BearingWear <= 0 {
		t.Errorf("expected bearing wear, got %f", s.Pump.BearingWear)
	}
	if s.Pump.MotorTemperature > cfg.MaxMotorTemp {
		t.Errorf("temperature above max: %f", s.Pump.MotorTemperature)
	}
}

func TestMaintenanceBands(t *testing.T) {
	cases := map[int]model.MaintenanceStatus{
		-1: model.MaintenanceOverdue,
		0:  model.MaintenanceUrgent,
		7:  model.MaintenanceUrgent,
		8:  model.MaintenanceDueSoon,
		14: model.MaintenanceDueSoon,
		15: model.MaintenanceScheduled,
	}
	for days, want := range cases {
		if got := Band(days); got != want {
			t.Errorf("Band(%d) = %s, want %s", days, got, want)
		}
	}
}

func TestRecordMaintenanceReschedules(t *testing.T) {
	m := model.Maintenance{
		LastMaintenanceAt:       epoch.Add(-100 * day),
		NextMaintenanceAt:       epoch.Add(-10 * day),
		MaintenanceIntervalDays: 90,
	}
	DeriveMaintenance(&m, epoch)
	if m.MaintenanceStatus != model.MaintenanceOverdue {
		t.Fatalf("expected OVERDUE, got %s", m.MaintenanceStatus)
	}

	RecordMaintenance(&m, model.MaintenanceRecord{ID: "m1", PerformedAt: epoch, Technician: "R. Devi"})
	if !m.LastMaintenanceAt.Equal(epoch) {
		t.Errorf("last maintenance not stamped: %v", m.LastMaintenanceAt)
	}
	if m.DaysUntilDue != 90 {
		t.Errorf("expected 90 days until due, got %d", m.DaysUntilDue)
	}
	if m.MaintenanceStatus != model.MaintenanceScheduled {
		t.Errorf("expected SCHEDULED, got %s", m.MaintenanceStatus)
	}
	if len(m.MaintenanceHistory) != 1 {
		t.Errorf("expected 1 history record, got %d", len(m.MaintenanceHistory))
	}
}
