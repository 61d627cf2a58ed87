package engine

import (
	"errors"
	"fmt"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/relay"
	"github.com/strawberryjas/gramjaljeevan/internal/schedule"
)

var (
	errFailsafeActive = errors.New("overflow failsafe active, pump start blocked")
	errTankTooLow     = errors.New("tank level too low for pump operation")
)

// pumpStartBlocked reports why a pump start from origin must be refused.
// Forced starts ignore the low-level interlock.
func (e *Engine) pumpStartBlocked(origin model.CommandOrigin) error {
	if e.failsafe.Active() {
		return errFailsafeActive
	}
	if origin != model.OriginForce && e.failsafe.BelowLowLevel(e.state.Tank.Level) {
		return errTankTooLow
	}
	return nil
}

func (e *Engine) actuator() relay.Actuator {
	return relay.ActuatorFunc(e.actuate)
}

// actuate applies an executed relay command to the plant. Caller holds e.mu.
func (e *Engine) actuate(cmd model.RelayCommand) error {
	s := &e.state
	switch cmd.Device {
	case model.DevicePump:
		want := model.PumpStatus(cmd.Action)
		if want == model.PumpOn {
			if err := e.pumpStartBlocked(cmd.Origin); err != nil {
				return err
			}
		}
		if want == model.PumpOn && s.Pump.Status != model.PumpOn {
			s.Pump.OperationCycles++
		}
		s.Pump.Status = want
		if cmd.Origin == model.OriginUser && schedule.Armed(&s.Schedule) {
			ev := model.EventManualOff
			if want == model.PumpOn {
				ev = model.EventManualOn
			}
			schedule.Cancel(&s.Schedule, ev, cmd.ExecutedAt)
		}

	case model.DeviceValve:
		p := s.Pipeline(cmd.PipelineID)
		if p == nil {
			return fmt.Errorf("pipeline %d not found", cmd.PipelineID)
		}
		p.ValveOpen = model.ValveState(cmd.Action).IsOpen()

	case model.DeviceTankInlet:
		s.Tank.InletValveOpen = model.ValveState(cmd.Action).IsOpen()

	case model.DeviceTankOutlet:
		s.Tank.OutletValveOpen = model.ValveState(cmd.Action).IsOpen()

	case model.DeviceSimulation:
		if e.forcing == nil {
			return errors.New("no override staged")
		}
		e.forcing(s)
		e.forcing = nil

	default:
		return fmt.Errorf("unknown device %q", cmd.Device)
	}
	return nil
}
