package engine

import (
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/physics"
	"github.com/strawberryjas/gramjaljeevan/internal/schedule"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingAuditor struct {
	mu       sync.Mutex
	raised   []model.Alert
	acked    []model.Alert
	commands []model.RelayCommand
	records  []model.MaintenanceRecord
}

func (a *recordingAuditor) AlertRaised(al model.Alert) {
	a.mu.Lock()
	a.raised = append(a.raised, al)
	a.mu.Unlock()
}

func (a *recordingAuditor) AlertAcknowledged(al model.Alert) {
	a.mu.Lock()
	a.acked = append(a.acked, al)
	a.mu.Unlock()
}

func (a *recordingAuditor) CommandRecorded(c model.RelayCommand) {
	a.mu.Lock()
	a.commands = append(a.commands, c)
	a.mu.Unlock()
}

func (a *recordingAuditor) MaintenanceRecorded(r model.MaintenanceRecord) {
	a.mu.Lock()
	a.records = append(a.records, r)
	a.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Relay.FailureScale = 0
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	return New(cfg, opts...), clk
}

func tick(e *Engine, clk *fakeClock, n int) model.State {
	var s model.State
	for i := 0; i < n; i++ {
		clk.Advance(e.cfg.TickPeriod)
		s = e.Step()
	}
	return s
}

func countAlerts(s model.State, typ model.AlertType, target string) int {
	n := 0
	for _, a := range s.Metrics.Alerts {
		if a.Type == typ && (target == "" || a.Target == target) {
			n++
		}
	}
	return n
}

func within(v float64, r [2]float64) bool {
	return v >= r[0] && v <= r[1]
}

func TestReferencePlant(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	s := e.GetLiveState()

	if len(s.Pipelines) != 5 {
		t.Fatalf("expected 5 pipelines, got %d", len(s.Pipelines))
	}
	if s.Pump.Status != model.PumpOn || s.Pump.FlowOutput <= 0 {
		t.Errorf("expected running pump with flow, got %s %.1f", s.Pump.Status, s.Pump.FlowOutput)
	}
	if p := s.Pipeline(4); p == nil || p.ValveOpen || p.Inlet.Flow != 0 {
		t.Errorf("pipeline 4 should be closed and dry: %+v", p)
	}
	if s.Schedule.Mode != model.ModeManual {
		t.Errorf("expected MANUAL, got %s", s.Schedule.Mode)
	}
	if got := len(e.GetRealtimeHistory()); got != 1 {
		t.Errorf("expected initial snapshot in history, got %d", got)
	}
}

func TestBoundsHoldOverManyTicks(t *testing.T) {
	cfg := testConfig()
	cfg.TimeScale = 30
	e, clk := newTestEngine(t, cfg)

	for i := 0; i < 3000; i++ {
		if i%250 == 0 {
			e.TogglePump()
		}
		if i%400 == 0 {
			e.ToggleValve(1 + (i/400)%5)
		}
		s := tick(e, clk, 1)

		if s.Tank.Level < 0 || s.Tank.Level > 100 {
			t.Fatalf("tick %d: tank level %.2f out of range", s.Tick, s.Tank.Level)
		}
		q := s.Tank.Quality
		if !within(q.PH, physics.PHRange) || !within(q.Turbidity, physics.TurbidityRange) ||
			!within(q.Chlorine, physics.ChlorineRange) || !within(q.TDS, physics.TDSRange) ||
			!within(q.Hardness, physics.HardnessRange) || !within(q.EC, physics.ECRange) {
			t.Fatalf("tick %d: tank quality out of range: %+v", s.Tick, q)
		}
		for _, p := range s.Pipelines {
			if p.LeakageProbability < 0 || p.LeakageProbability > 100 {
				t.Fatalf("tick %d: pipeline %d leakage %.2f", s.Tick, p.ID, p.LeakageProbability)
			}
			if p.Outlet.Flow > p.Inlet.Flow {
				t.Fatalf("tick %d: pipeline %d outlet %.2f > inlet %.2f", s.Tick, p.ID, p.Outlet.Flow, p.Inlet.Flow)
			}
			if !within(p.Outlet.Quality.PH, physics.PHRange) || !within(p.Outlet.Quality.TDS, physics.TDSRange) {
				t.Fatalf("tick %d: pipeline %d outlet quality out of range: %+v", s.Tick, p.ID, p.Outlet.Quality)
			}
			if p.QualityDeviation < 0 || p.QualityDeviation > 100 {
				t.Fatalf("tick %d: pipeline %d deviation %.2f", s.Tick, p.ID, p.QualityDeviation)
			}
		}
		if math.Abs(s.Tank.CurrentVolume-s.Tank.Capacity*s.Tank.Level/100) > 1e-6 {
			t.Fatalf("tick %d: volume %.3f inconsistent with level %.3f", s.Tick, s.Tank.CurrentVolume, s.Tank.Level)
		}
	}
}

func TestFailsafeStopsPumpInAnyMode(t *testing.T) {
	arm := map[string]func(e *Engine, now time.Time) Result{
		"timer": func(e *Engine, _ time.Time) Result {
			return e.SetPumpTimer(120, schedule.Options{})
		},
		"scheduled": func(e *Engine, now time.Time) Result {
			return e.SchedulePumpStop(now.Add(3*time.Hour), schedule.Options{})
		},
		"manual": func(e *Engine, _ time.Time) Result {
			return Result{Success: true}
		},
	}

	for name, fn := range arm {
		t.Run(name, func(t *testing.T) {
			e, clk := newTestEngine(t, testConfig())
			if r := fn(e, clk.Now()); !r.Success {
				t.Fatalf("arm: %s", r.Reason)
			}
			if r := e.ForceSimulationState("tank", "OVERFLOW", nil); !r.Success {
				t.Fatalf("force: %s", r.Reason)
			}
			s := tick(e, clk, 1)

			if s.Pump.Status != model.PumpOff {
				t.Errorf("expected pump OFF, got %s", s.Pump.Status)
			}
			if s.Schedule.Mode != model.ModeManual {
				t.Errorf("expected MANUAL, got %s", s.Schedule.Mode)
			}
			if name != "manual" && (s.Schedule.LastEvent == nil || s.Schedule.LastEvent.Type != model.EventFailsafeOverflow) {
				t.Errorf("expected FAILSAFE_OVERFLOW event, got %+v", s.Schedule.LastEvent)
			}
			if !s.Failsafe.Active || s.SystemStatus != model.StatusFailsafe {
				t.Errorf("expected active failsafe, got %+v / %s", s.Failsafe, s.SystemStatus)
			}
			if countAlerts(s, model.AlertTankOverflow, "tank") != 1 {
				t.Errorf("expected one TANK_OVERFLOW alert")
			}
			wantTimer := 1
			if name == "manual" {
				wantTimer = 0
			}
			if got := countAlerts(s, model.AlertPumpTimer, "pump"); got != wantTimer {
				t.Errorf("expected %d PUMP_TIMER alerts, got %d", wantTimer, got)
			}
			if r := e.TogglePump(); r.Success {
				t.Error("pump start should be refused while the failsafe is active")
			}
			if r := e.SetPumpTimer(10, schedule.Options{StartPump: true}); r.Success {
				t.Error("timer with start_pump should be refused while the failsafe is active")
			}
		})
	}
}

func TestFailsafeResetsBelowResetLevel(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	e.ForceSimulationState("tank", "OVERFLOW", nil)
	tick(e, clk, 1)
	if !e.FailsafeActive() {
		t.Fatal("expected failsafe active")
	}

	e.ForceSimulationState("tank", "LEVEL", map[string]float64{"level": 98})
	tick(e, clk, 1)
	if !e.FailsafeActive() {
		t.Fatal("failsafe should stay latched above the reset level")
	}

	e.ForceSimulationState("tank", "LEVEL", map[string]float64{"level": 90})
	s := tick(e, clk, 1)
	if e.FailsafeActive() || s.Failsafe.Active {
		t.Fatal("failsafe should reset below the reset level")
	}
	if r := e.TogglePump(); !r.Success {
		t.Fatalf("pump start after reset: %s", r.Reason)
	}
}

func TestFailsafeOverridesQueuedPumpCommands(t *testing.T) {
	cfg := testConfig()
	cfg.Relay.LatencyTicks = 3
	e, clk := newTestEngine(t, cfg)

	if r := e.SetPumpStatus(model.PumpOff); !r.Success || r.Status != model.CommandPending {
		t.Fatalf("expected queued OFF, got %+v", r)
	}
	if r := e.SetPumpStatus(model.PumpOn); !r.Success || r.Status != model.CommandPending {
		t.Fatalf("expected queued ON, got %+v", r)
	}
	if r := e.ForceSimulationState("tank", "OVERFLOW", nil); !r.Success {
		t.Fatalf("force: %s", r.Reason)
	}

	s := tick(e, clk, 1)
	if s.Pump.Status != model.PumpOff {
		t.Fatalf("pump should stop on the trip tick, got %s", s.Pump.Status)
	}
	superseded := 0
	for _, c := range s.ControlUnit.ExecutedCommands {
		if c.Action == string(model.PumpOn) && c.Status == model.CommandFailed && strings.Contains(c.Reason, "failsafe") {
			superseded++
		}
	}
	if superseded != 1 {
		t.Errorf("queued pump start should be failed by the failsafe, got %d", superseded)
	}

	s = tick(e, clk, 4)
	if s.Pump.Status != model.PumpOff {
		t.Errorf("pump restarted after the queue drained: %s", s.Pump.Status)
	}
	if len(s.ControlUnit.PendingCommands) != 0 {
		t.Errorf("queue not drained: %+v", s.ControlUnit.PendingCommands)
	}
}

func TestLowLevelStopsDrainingPump(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	if r := e.SetPumpTimer(60, schedule.Options{}); !r.Success {
		t.Fatalf("timer: %s", r.Reason)
	}
	if r := e.ForceSimulationState("tank", "LEVEL", map[string]float64{"level": 12}); !r.Success {
		t.Fatalf("force: %s", r.Reason)
	}
	s := tick(e, clk, 1)

	if s.Pump.Status != model.PumpOff {
		t.Fatalf("expected pump auto-stopped, got %s", s.Pump.Status)
	}
	if s.Schedule.Mode != model.ModeManual || s.Schedule.LastEvent == nil || s.Schedule.LastEvent.Type != model.EventTankLowShutoff {
		t.Errorf("timer should be cancelled by the interlock, got %s %+v", s.Schedule.Mode, s.Schedule.LastEvent)
	}
	var shutoff *model.Alert
	for i, a := range s.Metrics.Alerts {
		if a.Type == model.AlertTankLow && a.Target == "pump" {
			shutoff = &s.Metrics.Alerts[i]
		}
	}
	if shutoff == nil || shutoff.Severity != model.SeverityCritical {
		t.Fatalf("expected CRITICAL TANK_LOW shutoff alert, got %+v", shutoff)
	}
	if countAlerts(s, model.AlertPumpTimer, "pump") != 1 {
		t.Error("expected PUMP_TIMER alert for the cancelled timer")
	}
	if s.Failsafe.Active {
		t.Error("low-level shutoff must not latch the overflow failsafe")
	}

	r := e.TogglePump()
	if r.Success || !strings.Contains(r.Reason, "too low") {
		t.Errorf("pump start below the low level should be refused, got %+v", r)
	}
	if r := e.SetPumpTimer(10, schedule.Options{StartPump: true}); r.Success {
		t.Error("timer with start_pump should be refused below the low level")
	}
	if r := e.ForceSimulationState("pump", "ON", nil); !r.Success {
		t.Errorf("forced start should bypass the low-level gate: %s", r.Reason)
	}

	e.ForceSimulationState("tank", "LEVEL", map[string]float64{"level": 40})
	e.SetPumpStatus(model.PumpOff)
	tick(e, clk, 1)
	if r := e.TogglePump(); !r.Success {
		t.Fatalf("pump start after refill: %s", r.Reason)
	}
}

func TestLowLevelLeavesIdleTankAlone(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	if r := e.ToggleTankOutlet(); !r.Success {
		t.Fatalf("close outlet: %s", r.Reason)
	}
	e.ForceSimulationState("tank", "LEVEL", map[string]float64{"level": 12})
	s := tick(e, clk, 1)

	if s.Pump.Status != model.PumpOn {
		t.Errorf("pump should keep filling a tank nothing draws from, got %s", s.Pump.Status)
	}
	if countAlerts(s, model.AlertTankLow, "pump") != 0 {
		t.Error("no shutoff alert expected without outflow")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	var mu sync.Mutex
	calls := 0
	unsub := e.Subscribe(func(model.State) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	other := 0
	e.Subscribe(func(model.State) { other++ })

	tick(e, clk, 1)
	unsub()
	unsub()
	tick(e, clk, 2)

	if calls != 1 {
		t.Errorf("expected 1 delivery, got %d", calls)
	}
	if other != 3 {
		t.Errorf("second subscriber should keep receiving, got %d", other)
	}
}

func TestSubscriberPanicIsRecovered(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	e.Subscribe(func(model.State) { panic("boom") })
	got := 0
	e.Subscribe(func(model.State) { got++ })

	tick(e, clk, 2)
	if got != 2 {
		t.Errorf("expected healthy subscriber to see 2 ticks, got %d", got)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	cfg := testConfig()
	cfg.TickPeriod = 5 * time.Millisecond
	e := New(cfg)

	e.Stop()
	if e.IsRunning() {
		t.Fatal("new engine should not be running")
	}

	delivered := make(chan model.State, 64)
	stop := e.Start(func(s model.State) {
		select {
		case delivered <- s:
		default:
		}
	})
	e.Start(nil)
	if !e.IsRunning() {
		t.Fatal("expected running")
	}

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}

	stop()
	stop()
	e.Stop()
	if e.IsRunning() {
		t.Fatal("expected stopped")
	}
	if s := e.GetLiveState(); s.Tick == 0 {
		t.Error("last snapshot should remain readable after stop")
	}
}

func TestRestartDoesNotReplay(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	before := tick(e, clk, 1)

	clk.Advance(6 * time.Hour)
	after := e.Step()

	if after.Tick != before.Tick+1 {
		t.Fatalf("expected one tick, got %d -> %d", before.Tick, after.Tick)
	}
	if dh := after.Pump.RunningHours - before.Pump.RunningHours; dh > 2.0/3600 {
		t.Errorf("gap was replayed: running hours advanced %.4f h", dh)
	}
}

func TestAlertDedup(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	if r := e.ForceSimulationState("pipeline-3", "SET", map[string]float64{"leakageProbability": 50}); !r.Success {
		t.Fatalf("force: %s", r.Reason)
	}

	s := tick(e, clk, 5)
	if n := countAlerts(s, model.AlertLeakage, "pipeline-3"); n != 1 {
		t.Fatalf("expected 1 leakage alert for pipeline-3, got %d", n)
	}
	var id string
	for _, a := range s.Metrics.Alerts {
		if a.Type == model.AlertLeakage && a.Target == "pipeline-3" {
			id = a.ID
			if a.Occurrences != 5 {
				t.Errorf("expected 5 occurrences, got %d", a.Occurrences)
			}
		}
	}

	if r := e.AcknowledgeAlert(id); !r.Success {
		t.Fatalf("ack: %s", r.Reason)
	}
	s = tick(e, clk, 3)
	if n := countAlerts(s, model.AlertLeakage, "pipeline-3"); n != 1 {
		t.Errorf("acknowledged condition should not re-raise while still firing, got %d", n)
	}
	if r := e.AcknowledgeAlert("ALT-missing"); r.Success {
		t.Error("unknown alert id should fail")
	}

	e.ClearAlerts()
	if s := e.GetLiveState(); len(s.Metrics.Alerts) != 0 {
		t.Fatalf("expected no alerts after clear, got %d", len(s.Metrics.Alerts))
	}
	s = tick(e, clk, 1)
	if n := countAlerts(s, model.AlertLeakage, "pipeline-3"); n != 1 {
		t.Errorf("expected alert to return after clear, got %d", n)
	}
}

func TestToggleUnknownValveChangesNothing(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	tick(e, clk, 3)
	before := e.GetLiveState()

	r := e.ToggleValve(99)
	if r.Success || r.Reason == "" {
		t.Fatalf("expected failure with reason, got %+v", r)
	}
	if r := e.SetValveStatus(0, true); r.Success {
		t.Error("pipeline 0 should not exist")
	}

	after := e.GetLiveState()
	if !reflect.DeepEqual(before, after) {
		t.Error("state changed after a rejected command")
	}
}

func TestPumpLifecycle(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	if r := e.SetPumpStatus(model.PumpOff); !r.Success {
		t.Fatalf("stop: %s", r.Reason)
	}
	s := tick(e, clk, 30)
	if s.Pump.FlowOutput != 0 || s.Pump.PressureOutput != 0 {
		t.Fatalf("expected pump at rest, got %.2f L/min %.2f bar", s.Pump.FlowOutput, s.Pump.PressureOutput)
	}
	cycles := s.Pump.OperationCycles

	r := e.TogglePump()
	if !r.Success {
		t.Fatalf("toggle on: %s", r.Reason)
	}
	s = e.GetLiveState()
	if s.Pump.Status != model.PumpOn || s.Pump.OperationCycles != cycles+1 {
		t.Fatalf("expected ON with %d cycles, got %s %d", cycles+1, s.Pump.Status, s.Pump.OperationCycles)
	}

	s = tick(e, clk, 10)
	running := s.Pump.FlowOutput
	if running <= 0 {
		t.Fatal("pump should deliver flow once running")
	}

	if r := e.TogglePump(); !r.Success {
		t.Fatalf("toggle off: %s", r.Reason)
	}
	s = e.GetLiveState()
	if s.Pump.Status != model.PumpOff || s.Pump.OperationCycles != cycles+1 {
		t.Fatalf("expected OFF with unchanged cycles, got %s %d", s.Pump.Status, s.Pump.OperationCycles)
	}

	s = tick(e, clk, 1)
	if s.Pump.FlowOutput <= 0 || s.Pump.FlowOutput >= running {
		t.Errorf("flow should decay gradually, got %.2f from %.2f", s.Pump.FlowOutput, running)
	}
	if s.Pump.PressureOutput <= 0 {
		t.Error("pressure should not drop to zero instantly")
	}
	s = tick(e, clk, 30)
	if s.Pump.FlowOutput != 0 {
		t.Errorf("flow should reach zero, got %.2f", s.Pump.FlowOutput)
	}
}

func TestPumpTimerAutoStop(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())

	if r := e.SetPumpTimer(0.5, schedule.Options{}); r.Success {
		t.Fatal("sub-minute timer should be rejected")
	}
	if r := e.SetPumpTimer(1, schedule.Options{}); !r.Success {
		t.Fatalf("set timer: %s", r.Reason)
	}

	s := tick(e, clk, 59)
	if s.Pump.Status != model.PumpOn || s.Schedule.Mode != model.ModeTimer {
		t.Fatalf("timer fired early: %s %s", s.Pump.Status, s.Schedule.Mode)
	}
	if s.Schedule.TimerRemainingMs <= 0 {
		t.Errorf("expected remaining time, got %d", s.Schedule.TimerRemainingMs)
	}

	s = tick(e, clk, 1)
	if s.Pump.Status != model.PumpOff {
		t.Errorf("expected pump OFF, got %s", s.Pump.Status)
	}
	if s.Schedule.Mode != model.ModeManual {
		t.Errorf("expected MANUAL, got %s", s.Schedule.Mode)
	}
	if s.Schedule.LastEvent == nil || s.Schedule.LastEvent.Type != model.EventTimerComplete {
		t.Errorf("expected TIMER_COMPLETE, got %+v", s.Schedule.LastEvent)
	}

	s = tick(e, clk, 5)
	if n := countAlerts(s, model.AlertPumpTimer, ""); n != 1 {
		t.Errorf("expected exactly one PUMP_TIMER alert, got %d", n)
	}
}

func TestTimerOnStoppedPump(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	e.SetPumpStatus(model.PumpOff)
	tick(e, clk, 1)

	if r := e.SetPumpTimer(5, schedule.Options{}); r.Success {
		t.Fatal("timer on a stopped pump should need start_pump")
	}
	if r := e.SetPumpTimer(500, schedule.Options{StartPump: true}); !r.Success {
		t.Fatalf("start with timer: %s", r.Reason)
	}
	s := e.GetLiveState()
	if s.Pump.Status != model.PumpOn || s.Schedule.Mode != model.ModeTimer {
		t.Fatalf("expected running pump on a timer, got %s %s", s.Pump.Status, s.Schedule.Mode)
	}
	if s.Schedule.TimerDurationMinutes != 240 {
		t.Errorf("expected clamp to 240 min, got %g", s.Schedule.TimerDurationMinutes)
	}

	if r := e.TogglePump(); !r.Success {
		t.Fatalf("manual stop: %s", r.Reason)
	}
	s = e.GetLiveState()
	if s.Schedule.Mode != model.ModeManual || s.Schedule.LastEvent.Type != model.EventManualOff {
		t.Errorf("manual stop should cancel the timer, got %s %+v", s.Schedule.Mode, s.Schedule.LastEvent)
	}
}

func TestScheduledStop(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	if r := e.SchedulePumpStop(clk.Now().Add(-time.Minute), schedule.Options{}); r.Success {
		t.Fatal("past stop time should be rejected")
	}
	if r := e.SchedulePumpStop(clk.Now().Add(10*time.Second), schedule.Options{}); !r.Success {
		t.Fatalf("schedule: %s", r.Reason)
	}
	s := tick(e, clk, 10)
	if s.Pump.Status != model.PumpOff || s.Schedule.LastEvent.Type != model.EventScheduledStop {
		t.Errorf("expected scheduled stop, got %s %+v", s.Pump.Status, s.Schedule.LastEvent)
	}
	if countAlerts(s, model.AlertPumpTimer, "pump") != 1 {
		t.Error("expected PUMP_TIMER alert")
	}
}

func TestCancelPumpSchedule(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	if r := e.CancelPumpSchedule(""); r.Success {
		t.Error("cancel with nothing armed should fail")
	}
	e.SetPumpTimer(1, schedule.Options{})
	if r := e.CancelPumpSchedule("operator request"); !r.Success {
		t.Fatalf("cancel: %s", r.Reason)
	}
	s := tick(e, clk, 70)
	if s.Pump.Status != model.PumpOn {
		t.Error("cancelled timer must not stop the pump")
	}
	if s.Schedule.LastEvent == nil || s.Schedule.LastEvent.Type != "operator request" {
		t.Errorf("unexpected last event %+v", s.Schedule.LastEvent)
	}
}

func TestStickyLeakSurvivesValveToggle(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	if r := e.ForceSimulationState("pipeline-2", "SET", map[string]float64{"leakageProbability": 45}); !r.Success {
		t.Fatalf("force: %s", r.Reason)
	}
	tick(e, clk, 1)

	if r := e.ToggleValve(2); !r.Success {
		t.Fatalf("close: %s", r.Reason)
	}
	s := tick(e, clk, 3)
	if s.Pipeline(2).ValveOpen {
		t.Fatal("valve should be closed")
	}
	if r := e.ToggleValve(2); !r.Success {
		t.Fatalf("open: %s", r.Reason)
	}
	s = tick(e, clk, 3)

	if got := s.Pipeline(2).LeakageProbability; got < 45 {
		t.Errorf("leakage reset by valve toggle: %.1f", got)
	}
}

func TestRelayLatency(t *testing.T) {
	cfg := testConfig()
	cfg.Relay.LatencyTicks = 2
	e, clk := newTestEngine(t, cfg)
	received := e.GetLiveState().ControlUnit.CommandsReceived

	r := e.ToggleValve(1)
	if !r.Success || r.Status != model.CommandPending {
		t.Fatalf("expected queued command, got %+v", r)
	}
	s := e.GetLiveState()
	if !s.Pipeline(1).ValveOpen || len(s.ControlUnit.PendingCommands) != 1 {
		t.Fatal("queued command must not act yet")
	}
	if s.ControlUnit.CommandsReceived != received+1 {
		t.Errorf("expected received counter +1")
	}

	s = tick(e, clk, 1)
	if !s.Pipeline(1).ValveOpen {
		t.Fatal("command executed before its due tick")
	}
	s = tick(e, clk, 1)
	if s.Pipeline(1).ValveOpen || len(s.ControlUnit.PendingCommands) != 0 {
		t.Fatal("command should execute on its due tick")
	}
	if s.ControlUnit.ValveRelays[1] != model.ValveClosed {
		t.Errorf("relay mirror not updated: %s", s.ControlUnit.ValveRelays[1])
	}
}

func TestDisconnectedControllerFailsUserCommands(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	if r := e.ForceSimulationState("mcu", "DISCONNECTED", nil); !r.Success {
		t.Fatalf("force: %s", r.Reason)
	}
	before := e.GetLiveState()

	r := e.ToggleTankOutlet()
	if r.Success || r.Status != model.CommandFailed {
		t.Fatalf("expected relay failure, got %+v", r)
	}
	after := e.GetLiveState()
	if after.Tank.OutletValveOpen != before.Tank.OutletValveOpen {
		t.Error("failed command changed the plant")
	}
	if after.ControlUnit.CommandsFailed != before.ControlUnit.CommandsFailed+1 {
		t.Error("failed counter not incremented")
	}
}

func TestForceValidation(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	before := e.GetLiveState()

	cases := []struct {
		component, state string
		overrides        map[string]float64
	}{
		{"reactor", "ON", nil},
		{"pump", "EXPLODE", nil},
		{"pipeline-9", "LEAK", nil},
		{"tank", "SET", map[string]float64{"colour": 3}},
		{"tank", "LEVEL", nil},
		{"tank", "SET", map[string]float64{"level": math.NaN()}},
		{"pump", "SET", nil},
	}
	for _, c := range cases {
		if r := e.ForceSimulationState(c.component, c.state, c.overrides); r.Success {
			t.Errorf("%s %s %v: expected failure", c.component, c.state, c.overrides)
		}
	}
	if !reflect.DeepEqual(before, e.GetLiveState()) {
		t.Error("rejected force changed the state")
	}
}

func TestForceOverridesAreClamped(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	e.ForceSimulationState("tank", "SET", map[string]float64{"level": 140})
	e.ForceSimulationState("pump", "OVERHEAT", map[string]float64{"motor_temperature": 95})

	s := e.GetLiveState()
	if s.Tank.Level != 100 {
		t.Errorf("expected level clamped to 100, got %.1f", s.Tank.Level)
	}
	if s.Pump.MotorTemperature != 95 {
		t.Errorf("override should win over the named state, got %.1f", s.Pump.MotorTemperature)
	}
}

func TestForcedContaminationRaisesQualityAlert(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	if r := e.ForceSimulationState("pipeline-1", "CONTAMINATED", nil); !r.Success {
		t.Fatalf("force: %s", r.Reason)
	}
	s := tick(e, clk, 1)
	if countAlerts(s, model.AlertQuality, "pipeline-1") != 1 {
		t.Error("expected QUALITY alert for contaminated line")
	}
}

func TestCompleteMaintenance(t *testing.T) {
	audit := &recordingAuditor{}
	e, clk := newTestEngine(t, testConfig(), WithAuditor(audit))

	if r := e.CompleteMaintenance("boiler", "ramesh", ""); r.Success {
		t.Error("unknown target should fail")
	}
	r := e.CompleteMaintenance("pipeline-5", "Ramesh Kumar", "joint replaced")
	if !r.Success {
		t.Fatalf("maintenance: %s", r.Reason)
	}

	s := e.GetLiveState()
	p := s.Pipeline(5)
	if p.LeakageProbability != 0 {
		t.Errorf("repair should clear leakage, got %.1f", p.LeakageProbability)
	}
	if len(p.MaintenanceHistory) != 1 || p.MaintenanceHistory[0].Technician != "Ramesh Kumar" {
		t.Errorf("unexpected history %+v", p.MaintenanceHistory)
	}
	if want := clk.Now().Add(365 * day); !p.NextMaintenanceAt.Equal(want) {
		t.Errorf("next maintenance %s, want %s", p.NextMaintenanceAt, want)
	}
	if len(audit.records) != 1 || audit.records[0].ID != r.CommandID {
		t.Errorf("maintenance not journaled: %+v", audit.records)
	}

	e.ForceSimulationState("pump", "DEGRADED", nil)
	e.CompleteMaintenance("pump", "", "")
	if s := e.GetLiveState(); s.Pump.Efficiency != e.cfg.Physics.PumpRatedEfficiency || s.Pump.BearingWear != 0 {
		t.Errorf("pump service should restore efficiency, got %.1f %.2f", s.Pump.Efficiency, s.Pump.BearingWear)
	}
}

func TestAuditorSeesCommandsAndAlerts(t *testing.T) {
	audit := &recordingAuditor{}
	e, clk := newTestEngine(t, testConfig(), WithAuditor(audit))

	e.ToggleValve(3)
	tick(e, clk, 2)

	if len(audit.commands) != 1 || audit.commands[0].Device != model.DeviceValve {
		t.Fatalf("expected valve command journaled, got %+v", audit.commands)
	}
	// pipeline 5 starts with a 45% leak.
	found := false
	for _, a := range audit.raised {
		if a.Type == model.AlertLeakage && a.Target == "pipeline-5" {
			found = true
		}
	}
	if !found {
		t.Error("expected leakage alert journaled")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.HistorySize = 5
	e, clk := newTestEngine(t, cfg)
	tick(e, clk, 12)

	h := e.GetRealtimeHistory()
	if len(h) != 5 {
		t.Fatalf("expected 5 snapshots, got %d", len(h))
	}
	if h[0].Tick != 8 || h[4].Tick != 12 {
		t.Errorf("expected ticks 8..12, got %d..%d", h[0].Tick, h[4].Tick)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	var got model.State
	e.Subscribe(func(s model.State) { got = s })
	tick(e, clk, 1)

	got.Pipelines[0].ValveOpen = false
	got.ControlUnit.ValveRelays[1] = model.ValveClosed
	live := e.GetLiveState()
	live.Pipelines[1].LeakageProbability = 99

	s := e.GetLiveState()
	if !s.Pipelines[0].ValveOpen || s.ControlUnit.ValveRelays[1] != model.ValveOpen {
		t.Error("subscriber snapshot aliases engine state")
	}
	if s.Pipelines[1].LeakageProbability == 99 {
		t.Error("live state aliases engine state")
	}
}

func TestSameSeedSameRun(t *testing.T) {
	a, ca := newTestEngine(t, testConfig())
	b, cb := newTestEngine(t, testConfig())
	sa := tick(a, ca, 50)
	sb := tick(b, cb, 50)
	if !reflect.DeepEqual(sa, sb) {
		t.Error("identical seeds should produce identical runs")
	}
}
