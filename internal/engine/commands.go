package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/alerts"
	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/physics"
	"github.com/strawberryjas/gramjaljeevan/internal/relay"
	"github.com/strawberryjas/gramjaljeevan/internal/schedule"
	"github.com/strawberryjas/gramjaljeevan/internal/simrand"
)

// TogglePump flips the pump relay.
func (e *Engine) TogglePump() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	want := model.PumpOn
	if e.pumpTarget() == model.PumpOn {
		want = model.PumpOff
	}
	return e.userPump(want)
}

// SetPumpStatus drives the pump to status.
func (e *Engine) SetPumpStatus(status model.PumpStatus) Result {
	if status != model.PumpOn && status != model.PumpOff {
		return relay.Fail("invalid pump status %q", status)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userPump(status)
}

func (e *Engine) userPump(want model.PumpStatus) Result {
	if want == model.PumpOn {
		if err := e.pumpStartBlocked(model.OriginUser); err != nil {
			return relay.Fail("%v", err)
		}
	}
	return e.userCommand(model.RelayCommand{Device: model.DevicePump, Action: string(want)})
}

// ToggleValve flips the valve of the given pipeline.
func (e *Engine) ToggleValve(pipelineID int) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.state.Pipeline(pipelineID)
	if p == nil {
		return relay.Fail("pipeline %d not found", pipelineID)
	}
	current := model.ValveFromBool(p.ValveOpen)
	if st, ok := relay.PendingValve(&e.state.ControlUnit, model.DeviceValve, pipelineID); ok {
		current = st
	}
	return e.userCommand(model.RelayCommand{
		Device:     model.DeviceValve,
		Action:     string(model.ValveFromBool(!current.IsOpen())),
		PipelineID: pipelineID,
	})
}

// SetValveStatus opens or closes the valve of the given pipeline.
func (e *Engine) SetValveStatus(pipelineID int, open bool) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Pipeline(pipelineID) == nil {
		return relay.Fail("pipeline %d not found", pipelineID)
	}
	return e.userCommand(model.RelayCommand{
		Device:     model.DeviceValve,
		Action:     string(model.ValveFromBool(open)),
		PipelineID: pipelineID,
	})
}

// ToggleTankInlet flips the tank inlet valve.
func (e *Engine) ToggleTankInlet() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.toggleTankValve(model.DeviceTankInlet, e.state.Tank.InletValveOpen)
}

// ToggleTankOutlet flips the tank outlet valve.
func (e *Engine) ToggleTankOutlet() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.toggleTankValve(model.DeviceTankOutlet, e.state.Tank.OutletValveOpen)
}

func (e *Engine) toggleTankValve(dev model.Device, open bool) Result {
	current := model.ValveFromBool(open)
	if st, ok := relay.PendingValve(&e.state.ControlUnit, dev, 0); ok {
		current = st
	}
	return e.userCommand(model.RelayCommand{Device: dev, Action: string(model.ValveFromBool(!current.IsOpen()))})
}

// SetTankInlet opens or closes the tank inlet valve.
func (e *Engine) SetTankInlet(open bool) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userCommand(model.RelayCommand{Device: model.DeviceTankInlet, Action: string(model.ValveFromBool(open))})
}

// SetTankOutlet opens or closes the tank outlet valve.
func (e *Engine) SetTankOutlet(open bool) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userCommand(model.RelayCommand{Device: model.DeviceTankOutlet, Action: string(model.ValveFromBool(open))})
}

// userCommand routes a validated operator command through the relay.
// Caller holds e.mu.
func (e *Engine) userCommand(cmd model.RelayCommand) Result {
	cmd.Origin = model.OriginUser
	r := e.submit(cmd, e.clock())
	e.refresh()
	return r
}

// refresh recomputes derived fields after a command so reads between ticks
// stay consistent.
func (e *Engine) refresh() {
	e.state.Failsafe = e.failsafe.GetState()
	physics.Summarize(&e.state)
}

// AcknowledgeAlert marks an alert acknowledged.
func (e *Engine) AcknowledgeAlert(id string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	list, ok := e.book.Acknowledge(e.state.Metrics.Alerts, id, e.clock())
	if !ok {
		return relay.Fail("alert %s not found", id)
	}
	e.state.Metrics.Alerts = list
	if e.audit != nil {
		for _, a := range list {
			if a.ID == id {
				e.audit.AlertAcknowledged(a)
				break
			}
		}
	}
	return relay.OK("acknowledged")
}

// ClearAlerts removes every alert.
func (e *Engine) ClearAlerts() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.state.Metrics.Alerts)
	e.state.Metrics.Alerts = e.book.Clear()
	return relay.OK(fmt.Sprintf("cleared %d alerts", n))
}

// SetPumpTimer runs the pump for minutes and then stops it. The pump must
// already be running unless opts.StartPump is set.
func (e *Engine) SetPumpTimer(minutes float64, opts schedule.Options) Result {
	mins, err := schedule.ValidateTimer(minutes, e.cfg.Schedule)
	if err != nil {
		return relay.Fail("%v", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock()
	if r := e.ensureRunning(opts, now); !r.Success {
		return r
	}
	if _, err := schedule.StartTimer(&e.state.Schedule, mins, e.cfg.Schedule, now); err != nil {
		return relay.Fail("%v", err)
	}
	e.refresh()
	return relay.OK(fmt.Sprintf("pump will stop in %g min", mins))
}

// SchedulePumpStop stops the pump at the given time. The pump must already
// be running unless opts.StartPump is set.
func (e *Engine) SchedulePumpStop(at time.Time, opts schedule.Options) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock()
	if !at.After(now) {
		return relay.Fail("stop time %s is not in the future", at.Format(time.RFC3339))
	}
	if r := e.ensureRunning(opts, now); !r.Success {
		return r
	}
	if err := schedule.ScheduleStop(&e.state.Schedule, at, now); err != nil {
		return relay.Fail("%v", err)
	}
	e.refresh()
	return relay.OK("pump stop scheduled for " + at.Format(time.RFC3339))
}

func (e *Engine) ensureRunning(opts schedule.Options, now time.Time) Result {
	if e.pumpTarget() == model.PumpOn {
		return relay.OK("")
	}
	if !opts.StartPump {
		return relay.Fail("pump is off; start it first or set start_pump")
	}
	if err := e.pumpStartBlocked(model.OriginScheduler); err != nil {
		return relay.Fail("%v", err)
	}
	r := e.submit(model.RelayCommand{
		Device: model.DevicePump,
		Action: string(model.PumpOn),
		Origin: model.OriginScheduler,
	}, now)
	if !r.Success {
		r.Reason = "pump start failed: " + r.Reason
	}
	return r
}

// CancelPumpSchedule returns the scheduler to MANUAL. The pump is left in
// whatever state it is in.
func (e *Engine) CancelPumpSchedule(reason string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !schedule.Armed(&e.state.Schedule) {
		return relay.Fail("no timer or scheduled stop is active")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = model.EventUserCancelled
	}
	schedule.Cancel(&e.state.Schedule, reason, e.clock())
	e.refresh()
	return relay.OK("schedule cancelled")
}

// CompleteMaintenance records a maintenance action on target ("tank",
// "pump" or "pipeline-N"), restoring a serviced pump or pipeline.
func (e *Engine) CompleteMaintenance(target, technician, notes string) Result {
	target = strings.ToLower(strings.TrimSpace(target))
	technician = strings.TrimSpace(technician)
	if technician == "" {
		technician = "operator"
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock()
	s := &e.state
	rec := model.MaintenanceRecord{
		ID:          simrand.NewID(e.rand, "MNT"),
		Target:      target,
		PerformedAt: now,
		Technician:  technician,
		Notes:       notes,
	}

	switch target {
	case alerts.TargetTank:
		physics.RecordMaintenance(&s.Tank.Maintenance, rec)
	case alerts.TargetPump:
		physics.RecordMaintenance(&s.Pump.Maintenance, rec)
		physics.RepairPump(&s.Pump, e.cfg.Physics)
	default:
		id, ok := parsePipelineTarget(target)
		p := s.Pipeline(id)
		if !ok || p == nil {
			return relay.Fail("unknown maintenance target %q", target)
		}
		physics.RecordMaintenance(&p.Maintenance, rec)
		physics.RepairPipeline(p)
	}

	if e.audit != nil {
		e.audit.MaintenanceRecorded(rec)
	}
	e.refresh()
	return Result{Success: true, Reason: "maintenance recorded", CommandID: rec.ID}
}

// parsePipelineTarget accepts "pipeline-N" and "pipeline N".
func parsePipelineTarget(s string) (int, bool) {
	rest, ok := strings.CutPrefix(s, "pipeline")
	if !ok {
		return 0, false
	}
	rest = strings.TrimLeft(rest, "-_ ")
	var id int
	if _, err := fmt.Sscanf(rest, "%d", &id); err != nil || fmt.Sprint(id) != rest {
		return 0, false
	}
	return id, true
}
