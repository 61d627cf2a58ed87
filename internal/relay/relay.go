// Package relay simulates the field microcontroller that switches the pump
// and valve relays. Commands are received, optionally held for a number of
// ticks to emulate link latency, then executed with a failure probability
// that follows the controller's health and link quality.
package relay

import (
	"fmt"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/simrand"
)

// Config tunes the controller.
type Config struct {
	LatencyTicks int     `yaml:"latency_ticks"`
	FailureScale float64 `yaml:"failure_scale"` // 0 disables random failures on a live link
	RingSize     int     `yaml:"ring_size"`
}

// DefaultConfig executes commands synchronously with stock failure rates.
func DefaultConfig() Config {
	return Config{LatencyTicks: 0, FailureScale: 1, RingSize: 50}
}

// Actuator applies an accepted command to the plant.
type Actuator interface {
	Actuate(cmd model.RelayCommand) error
}

// ActuatorFunc adapts a function to Actuator.
type ActuatorFunc func(cmd model.RelayCommand) error

// Actuate calls f(cmd).
func (f ActuatorFunc) Actuate(cmd model.RelayCommand) error { return f(cmd) }

// Result is returned by every command.
type Result struct {
	Success   bool                `json:"success"`
	Reason    string              `json:"reason,omitempty"`
	CommandID string              `json:"command_id,omitempty"`
	Status    model.CommandStatus `json:"status,omitempty"`
}

// Fail builds a failed result without touching the controller.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Reason: fmt.Sprintf(format, args...)}
}

// OK builds a successful result that did not go through the relay.
func OK(reason string) Result {
	return Result{Success: true, Reason: reason}
}

// Relay executes commands against a ControlUnit. Callers serialize access.
type Relay struct {
	cfg      Config
	rand     simrand.Source
	onRecord func(model.RelayCommand)
}

// Option configures the Relay.
type Option func(*Relay)

// WithRecorder is called with every finished command, executed or failed.
// It runs under the caller's lock and must not block.
func WithRecorder(fn func(model.RelayCommand)) Option {
	return func(r *Relay) {
		r.onRecord = fn
	}
}

// New creates a Relay.
func New(cfg Config, src simrand.Source, opts ...Option) *Relay {
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultConfig().RingSize
	}
	if cfg.LatencyTicks < 0 {
		cfg.LatencyTicks = 0
	}
	r := &Relay{cfg: cfg, rand: src}
	for _, o := range opts {
		o(r)
	}
	return r
}

// privileged commands come from the scheduler, the failsafe or a forced
// override. They never roll for failure and never wait.
func privileged(o model.CommandOrigin) bool {
	return o == model.OriginScheduler || o == model.OriginFailsafe || o == model.OriginForce
}

// Submit receives cmd. Validation is the caller's job; anything reaching
// Submit counts as received.
func (r *Relay) Submit(cu *model.ControlUnit, cmd model.RelayCommand, tick uint64, now time.Time, act Actuator) Result {
	cmd.ID = simrand.NewID(r.rand, "CMD")
	cmd.IssuedAt = now
	cmd.Status = model.CommandPending
	cmd.DueTick = tick + uint64(r.cfg.LatencyTicks)
	cu.CommandsReceived++

	if r.cfg.LatencyTicks == 0 || privileged(cmd.Origin) {
		return r.execute(cu, cmd, now, act)
	}
	cu.PendingCommands = append(cu.PendingCommands, cmd)
	return Result{Success: true, Reason: "queued", CommandID: cmd.ID, Status: model.CommandPending}
}

// ExecuteDue runs every pending command whose due tick has arrived, in
// submission order.
func (r *Relay) ExecuteDue(cu *model.ControlUnit, tick uint64, now time.Time, act Actuator) []Result {
	if len(cu.PendingCommands) == 0 {
		return nil
	}
	var results []Result
	keep := cu.PendingCommands[:0]
	var due []model.RelayCommand
	for _, c := range cu.PendingCommands {
		if c.DueTick <= tick {
			due = append(due, c)
		} else {
			keep = append(keep, c)
		}
	}
	cu.PendingCommands = keep
	for _, c := range due {
		results = append(results, r.execute(cu, c, now, act))
	}
	return results
}

// Cancel fails every pending command selected by match without actuating
// it and records each with reason. It returns how many were cancelled.
func (r *Relay) Cancel(cu *model.ControlUnit, match func(model.RelayCommand) bool, reason string, now time.Time) int {
	n := 0
	keep := cu.PendingCommands[:0]
	var dropped []model.RelayCommand
	for _, c := range cu.PendingCommands {
		if match(c) {
			dropped = append(dropped, c)
		} else {
			keep = append(keep, c)
		}
	}
	cu.PendingCommands = keep
	for _, c := range dropped {
		c.Status = model.CommandFailed
		c.Reason = reason
		c.ExecutedAt = now
		cu.CommandsFailed++
		r.record(cu, c)
		n++
	}
	return n
}

func (r *Relay) execute(cu *model.ControlUnit, cmd model.RelayCommand, now time.Time, act Actuator) Result {
	cmd.ExecutedAt = now

	switch {
	case !privileged(cmd.Origin) && cu.NetworkStatus == model.NetworkDisconnected:
		cmd.Status = model.CommandFailed
		cmd.Reason = "controller unreachable"
	case !privileged(cmd.Origin) && simrand.Chance(r.rand, r.FailureProbability(cu)):
		cmd.Status = model.CommandFailed
		cmd.Reason = "relay did not acknowledge"
	default:
		if err := act.Actuate(cmd); err != nil {
			cmd.Status = model.CommandFailed
			cmd.Reason = err.Error()
		} else {
			cmd.Status = model.CommandExecuted
			mirror(cu, cmd)
		}
	}

	if cmd.Status == model.CommandExecuted {
		cu.CommandsExecuted++
	} else {
		cu.CommandsFailed++
	}
	r.record(cu, cmd)

	return Result{
		Success:   cmd.Status == model.CommandExecuted,
		Reason:    cmd.Reason,
		CommandID: cmd.ID,
		Status:    cmd.Status,
	}
}

// FailureProbability is the chance a user command fails on this tick.
func (r *Relay) FailureProbability(cu *model.ControlUnit) float64 {
	var p float64
	switch cu.NetworkStatus {
	case model.NetworkDisconnected:
		return 1
	case model.NetworkDegraded:
		p = 0.05
	default:
		p = 0.002
	}
	p += (100 - cu.Health) / 100 * 0.1
	p *= r.cfg.FailureScale
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func (r *Relay) record(cu *model.ControlUnit, cmd model.RelayCommand) {
	cu.ExecutedCommands = append([]model.RelayCommand{cmd}, cu.ExecutedCommands...)
	if len(cu.ExecutedCommands) > r.cfg.RingSize {
		cu.ExecutedCommands = cu.ExecutedCommands[:r.cfg.RingSize]
	}
	if r.onRecord != nil {
		r.onRecord(cmd)
	}
}

func mirror(cu *model.ControlUnit, cmd model.RelayCommand) {
	switch cmd.Device {
	case model.DevicePump:
		cu.PumpRelayStatus = model.PumpStatus(cmd.Action)
	case model.DeviceValve:
		if cu.ValveRelays == nil {
			cu.ValveRelays = make(map[int]model.ValveState)
		}
		cu.ValveRelays[cmd.PipelineID] = model.ValveState(cmd.Action)
	case model.DeviceTankInlet:
		cu.InletRelay = model.ValveState(cmd.Action)
	case model.DeviceTankOutlet:
		cu.OutletRelay = model.ValveState(cmd.Action)
	}
}

// PendingPump returns the target of the latest queued pump command, if any.
func PendingPump(cu *model.ControlUnit) (model.PumpStatus, bool) {
	for i := len(cu.PendingCommands) - 1; i >= 0; i-- {
		if c := cu.PendingCommands[i]; c.Device == model.DevicePump {
			return model.PumpStatus(c.Action), true
		}
	}
	return "", false
}

// PendingValve returns the target of the latest queued command for a valve.
func PendingValve(cu *model.ControlUnit, dev model.Device, pipelineID int) (model.ValveState, bool) {
	for i := len(cu.PendingCommands) - 1; i >= 0; i-- {
		c := cu.PendingCommands[i]
		if c.Device == dev && (dev != model.DeviceValve || c.PipelineID == pipelineID) {
			return model.ValveState(c.Action), true
		}
	}
	return "", false
}
