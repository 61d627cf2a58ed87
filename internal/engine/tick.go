package engine

import (
	"fmt"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/alerts"
	"github.com/strawberryjas/gramjaljeevan/internal/failsafe"
	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/physics"
	"github.com/strawberryjas/gramjaljeevan/internal/relay"
	"github.com/strawberryjas/gramjaljeevan/internal/schedule"
)

// step advances the plant by one tick. Caller holds e.mu.
func (e *Engine) step(now time.Time) {
	s := &e.state
	dt := e.elapsed(now)
	s.Tick++
	s.UpdatedAt = now

	e.relay.Heartbeat(&s.ControlUnit, dt, now)
	e.relay.ExecuteDue(&s.ControlUnit, s.Tick, now, e.actuator())

	env := physics.Env{Dt: dt, Now: now, Rand: e.rand, HoldTankLevel: e.holdTank}
	e.holdTank = false

	physics.StepHydraulics(s, e.cfg.Physics, env)
	e.enforceFailsafe(now)
	e.enforceLowLevel(now)
	physics.StepQuality(s, e.cfg.Physics, env)
	for id, q := range e.heldOutlet {
		if p := s.Pipeline(id); p != nil {
			p.Outlet.Quality = q
			p.QualityDeviation = physics.Deviation(&p.Outlet.Quality, &s.Tank.Quality)
		}
	}
	e.heldOutlet = nil
	physics.StepHealth(s, e.cfg.Physics, env)
	e.runScheduler(now)

	s.Failsafe = e.failsafe.GetState()
	physics.Summarize(s)

	var created []model.Alert
	s.Metrics.Alerts, created = e.book.Apply(s.Metrics.Alerts, alerts.Evaluate(s, e.cfg.Alerts), now)
	for _, a := range created {
		e.auditAlert(a)
	}
}

// elapsed returns the simulated time covered by a tick at now.
func (e *Engine) elapsed(now time.Time) time.Duration {
	dt := e.cfg.TickPeriod
	if !e.lastTick.IsZero() {
		if d := now.Sub(e.lastTick); d > 0 && d <= maxCatchUp*e.cfg.TickPeriod {
			dt = d
		}
	}
	e.lastTick = now
	return time.Duration(float64(dt) * e.cfg.TimeScale)
}

// enforceFailsafe holds the pump off and drops any armed schedule while
// the tank is at the trip level. Queued pump starts are failed so a
// delayed command cannot outlive the trip.
func (e *Engine) enforceFailsafe(now time.Time) {
	s := &e.state
	if !e.failsafe.Check(s.Tank.Level, now) {
		return
	}
	armed := schedule.Armed(&s.Schedule)
	if armed {
		schedule.Cancel(&s.Schedule, failsafe.ReasonOverflow, now)
	}
	e.relay.Cancel(&s.ControlUnit, isPumpStart, "superseded by overflow failsafe", now)
	if s.Pump.Status == model.PumpOn || e.pumpTarget() == model.PumpOn {
		e.submit(model.RelayCommand{
			Device: model.DevicePump,
			Action: string(model.PumpOff),
			Origin: model.OriginFailsafe,
		}, now)
	}
	if armed {
		e.raisePumpTimer("Pump run cancelled by overflow failsafe", now)
	}
}

// enforceLowLevel stops a running pump once the tank has fallen below the
// low-level threshold while still being drawn down.
func (e *Engine) enforceLowLevel(now time.Time) {
	s := &e.state
	if s.Pump.Status != model.PumpOn || s.Tank.DrainRate <= 0 || !e.failsafe.BelowLowLevel(s.Tank.Level) {
		return
	}
	armed := schedule.Armed(&s.Schedule)
	if armed {
		schedule.Cancel(&s.Schedule, failsafe.ReasonTankLow, now)
	}
	e.relay.Cancel(&s.ControlUnit, isPumpStart, "superseded by low-level interlock", now)
	r := e.submit(model.RelayCommand{
		Device: model.DevicePump,
		Action: string(model.PumpOff),
		Origin: model.OriginFailsafe,
	}, now)

	msg := fmt.Sprintf("Tank level critically low (%.1f%%), pump auto-stopped", s.Tank.Level)
	if !r.Success {
		msg += " (relay: " + r.Reason + ")"
	}
	e.raise(alerts.Finding{
		Type:     model.AlertTankLow,
		Severity: model.SeverityCritical,
		Target:   alerts.TargetPump,
		Message:  msg,
	}, now)
	if armed {
		e.raisePumpTimer("Pump run cancelled by low-level interlock", now)
	}
}

func isPumpStart(c model.RelayCommand) bool {
	return c.Device == model.DevicePump && model.PumpStatus(c.Action) == model.PumpOn
}

// runScheduler stops the pump when an armed timer or scheduled stop comes
// due and raises the PUMP_TIMER event alert.
func (e *Engine) runScheduler(now time.Time) {
	s := &e.state
	mode := s.Schedule.Mode
	ev, due := schedule.Due(&s.Schedule, now)
	if !due {
		return
	}
	schedule.Complete(&s.Schedule, ev, now)

	r := e.submit(model.RelayCommand{
		Device: model.DevicePump,
		Action: string(model.PumpOff),
		Origin: model.OriginScheduler,
	}, now)

	msg := "Pump timer complete, pump stopped"
	if mode == model.ModeScheduled {
		msg = "Scheduled stop reached, pump stopped"
	}
	if !r.Success {
		msg += " (relay: " + r.Reason + ")"
	}
	e.raisePumpTimer(msg, now)
}

// raisePumpTimer raises the PUMP_TIMER event alert for a schedule that
// ended, whether it ran out or was cut short.
func (e *Engine) raisePumpTimer(msg string, now time.Time) {
	e.raise(alerts.Finding{
		Type:     model.AlertPumpTimer,
		Severity: model.SeverityInfo,
		Target:   alerts.TargetPump,
		Message:  msg,
	}, now)
}

func (e *Engine) raise(f alerts.Finding, now time.Time) {
	var a *model.Alert
	e.state.Metrics.Alerts, a = e.book.Raise(e.state.Metrics.Alerts, f, now)
	if a != nil {
		e.auditAlert(*a)
	}
}

func (e *Engine) submit(cmd model.RelayCommand, now time.Time) Result {
	return e.relay.Submit(&e.state.ControlUnit, cmd, e.state.Tick, now, e.actuator())
}

// pumpTarget is where the pump is headed once queued commands run.
func (e *Engine) pumpTarget() model.PumpStatus {
	if st, ok := relay.PendingPump(&e.state.ControlUnit); ok {
		return st
	}
	return e.state.Pump.Status
}

func (e *Engine) auditAlert(a model.Alert) {
	if e.audit != nil {
		e.audit.AlertRaised(a)
	}
}
