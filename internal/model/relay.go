package model

import "time"

// Device is the actuator a relay command addresses.
type Device string

const (
	DevicePump       Device = "PUMP"
	DeviceValve      Device = "VALVE"
	DeviceTankInlet  Device = "TANK_INLET"
	DeviceTankOutlet Device = "TANK_OUTLET"
	DeviceSimulation Device = "SIMULATION"
)

// CommandOrigin records who issued a command.
type CommandOrigin string

const (
	OriginUser      CommandOrigin = "USER"
	OriginScheduler CommandOrigin = "SCHEDULER"
	OriginFailsafe  CommandOrigin = "FAILSAFE"
	OriginForce     CommandOrigin = "FORCE"
)

// CommandStatus is the lifecycle position of a relay command.
type CommandStatus string

const (
	CommandPending  CommandStatus = "PENDING"
	CommandExecuted CommandStatus = "EXECUTED"
	CommandFailed   CommandStatus = "FAILED"
)

// RelayCommand is one command routed through the controller.
type RelayCommand struct {
	ID         string        `json:"id"`
	Device     Device        `json:"device"`
	Action     string        `json:"action"`
	PipelineID int           `json:"pipeline_id,omitempty"`
	Origin     CommandOrigin `json:"origin"`
	Status     CommandStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	IssuedAt   time.Time     `json:"issued_at"`
	ExecutedAt time.Time     `json:"executed_at,omitempty"`
	DueTick    uint64        `json:"due_tick"`
}
