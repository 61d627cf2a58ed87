// Package command maps named remote commands onto the twin's operations.
// The Redis bridge and scenario scripts both dispatch through Execute.
package command

import (
	"sort"
	"strings"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
	"github.com/strawberryjas/gramjaljeevan/internal/relay"
	"github.com/strawberryjas/gramjaljeevan/internal/schedule"
)

// Twin is the command surface of an engine.
type Twin interface {
	TogglePump() relay.Result
	SetPumpStatus(status model.PumpStatus) relay.Result
	ToggleValve(pipelineID int) relay.Result
	SetValveStatus(pipelineID int, open bool) relay.Result
	ToggleTankInlet() relay.Result
	ToggleTankOutlet() relay.Result
	SetTankInlet(open bool) relay.Result
	SetTankOutlet(open bool) relay.Result
	AcknowledgeAlert(id string) relay.Result
	ClearAlerts() relay.Result
	SetPumpTimer(minutes float64, opts schedule.Options) relay.Result
	SchedulePumpStop(at time.Time, opts schedule.Options) relay.Result
	CancelPumpSchedule(reason string) relay.Result
	ForceSimulationState(component, state string, overrides map[string]float64) relay.Result
	CompleteMaintenance(target, technician, notes string) relay.Result
	Start(onSnapshot func(model.State)) func()
	Stop()
	IsRunning() bool
}

// Command names accepted by Execute.
const (
	TogglePump          = "toggle_pump"
	SetPump             = "set_pump"
	ToggleValve         = "toggle_valve"
	SetValve            = "set_valve"
	ToggleTankInlet     = "toggle_tank_inlet"
	ToggleTankOutlet    = "toggle_tank_outlet"
	SetTankInlet        = "set_tank_inlet"
	SetTankOutlet       = "set_tank_outlet"
	AckAlert            = "ack_alert"
	ClearAlerts         = "clear_alerts"
	SetPumpTimer        = "set_pump_timer"
	SchedulePumpStop    = "schedule_pump_stop"
	CancelPumpSchedule  = "cancel_pump_schedule"
	Force               = "force"
	CompleteMaintenance = "complete_maintenance"
	Start               = "start"
	Stop                = "stop"
)

type handler func(t Twin, req protocol.CommandRequestPayload) relay.Result

var handlers = map[string]handler{
	TogglePump: func(t Twin, _ protocol.CommandRequestPayload) relay.Result { return t.TogglePump() },
	SetPump: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		st, err := model.ParsePumpStatus(req.Status)
		if err != nil {
			return relay.Fail("%v", err)
		}
		return t.SetPumpStatus(st)
	},
	ToggleValve: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		if req.Pipeline == nil {
			return relay.Fail("%s: pipeline is required", ToggleValve)
		}
		return t.ToggleValve(*req.Pipeline)
	},
	SetValve: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		if req.Pipeline == nil || req.Open == nil {
			return relay.Fail("%s: pipeline and open are required", SetValve)
		}
		return t.SetValveStatus(*req.Pipeline, *req.Open)
	},
	ToggleTankInlet:  func(t Twin, _ protocol.CommandRequestPayload) relay.Result { return t.ToggleTankInlet() },
	ToggleTankOutlet: func(t Twin, _ protocol.CommandRequestPayload) relay.Result { return t.ToggleTankOutlet() },
	SetTankInlet: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		if req.Open == nil {
			return relay.Fail("%s: open is required", SetTankInlet)
		}
		return t.SetTankInlet(*req.Open)
	},
	SetTankOutlet: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		if req.Open == nil {
			return relay.Fail("%s: open is required", SetTankOutlet)
		}
		return t.SetTankOutlet(*req.Open)
	},
	AckAlert: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		if req.AlertID == "" {
			return relay.Fail("%s: alert_id is required", AckAlert)
		}
		return t.AcknowledgeAlert(req.AlertID)
	},
	ClearAlerts: func(t Twin, _ protocol.CommandRequestPayload) relay.Result { return t.ClearAlerts() },
	SetPumpTimer: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		if req.Minutes == nil {
			return relay.Fail("%s: minutes is required", SetPumpTimer)
		}
		return t.SetPumpTimer(*req.Minutes, schedule.Options{StartPump: req.StartPump})
	},
	SchedulePumpStop: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		if req.StopAt == nil {
			return relay.Fail("%s: stop_at is required", SchedulePumpStop)
		}
		return t.SchedulePumpStop(*req.StopAt, schedule.Options{StartPump: req.StartPump})
	},
	CancelPumpSchedule: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		return t.CancelPumpSchedule(req.Reason)
	},
	Force: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		if req.Component == "" || req.State == "" {
			return relay.Fail("%s: component and state are required", Force)
		}
		return t.ForceSimulationState(req.Component, req.State, req.Overrides)
	},
	CompleteMaintenance: func(t Twin, req protocol.CommandRequestPayload) relay.Result {
		if req.Target == "" {
			return relay.Fail("%s: target is required", CompleteMaintenance)
		}
		return t.CompleteMaintenance(req.Target, req.Technician, req.Notes)
	},
	Start: func(t Twin, _ protocol.CommandRequestPayload) relay.Result {
		if t.IsRunning() {
			return relay.OK("already running")
		}
		t.Start(nil)
		return relay.OK("started")
	},
	Stop: func(t Twin, _ protocol.CommandRequestPayload) relay.Result {
		if !t.IsRunning() {
			return relay.OK("already stopped")
		}
		t.Stop()
		return relay.OK("stopped")
	},
}

// Execute runs req against t. Unknown commands and missing arguments fail
// without touching the twin.
func Execute(t Twin, req protocol.CommandRequestPayload) relay.Result {
	h, ok := handlers[strings.ToLower(strings.TrimSpace(req.Command))]
	if !ok {
		return relay.Fail("unknown command %q", req.Command)
	}
	return h(t, req)
}

// Names lists the accepted commands in sorted order.
func Names() []string {
	out := make([]string, 0, len(handlers))
	for n := range handlers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
