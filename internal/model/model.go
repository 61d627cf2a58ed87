// Package model defines the state of the water-supply twin: the overhead
// tank, the pump, the distribution pipelines, the field controller and the
// alert/schedule bookkeeping that rides along with every snapshot.
package model

import (
	"fmt"
	"strings"
	"time"
)

// PumpStatus is the run state of the pump. There is exactly one enum;
// RUNNING and STOPPED are accepted on input only.
type PumpStatus string

const (
	PumpOff PumpStatus = "OFF"
	PumpOn  PumpStatus = "ON"
)

// ParsePumpStatus maps ON/OFF and the RUNNING/STOPPED aliases onto PumpStatus.
func ParsePumpStatus(s string) (PumpStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON", "RUNNING":
		return PumpOn, nil
	case "OFF", "STOPPED":
		return PumpOff, nil
	}
	return "", fmt.Errorf("unknown pump status %q", s)
}

// Running reports whether the status is ON.
func (s PumpStatus) Running() bool { return s == PumpOn }

// ValveState is the relay-side view of a valve.
type ValveState string

const (
	ValveOpen   ValveState = "OPEN"
	ValveClosed ValveState = "CLOSED"
)

// ValveFromBool converts an entity's open flag to a relay valve state.
func ValveFromBool(open bool) ValveState {
	if open {
		return ValveOpen
	}
	return ValveClosed
}

// ParseValveState accepts OPEN/CLOSED (case-insensitive) and ON/OFF.
func ParseValveState(s string) (ValveState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN", "ON":
		return ValveOpen, nil
	case "CLOSED", "CLOSE", "OFF":
		return ValveClosed, nil
	}
	return "", fmt.Errorf("unknown valve state %q", s)
}

// IsOpen reports whether the valve state is OPEN.
func (v ValveState) IsOpen() bool { return v == ValveOpen }

// WaterQuality is the tank's bulk water quality.
type WaterQuality struct {
	PH        float64 `json:"ph"`
	Turbidity float64 `json:"turbidity"` // NTU
	Chlorine  float64 `json:"chlorine"`  // mg/L
	TDS       float64 `json:"tds"`       // mg/L
	Hardness  float64 `json:"hardness"`  // mg/L as CaCO3
	EC        float64 `json:"ec"`        // µS/cm
}

// LineQuality is a water sample taken at a pipeline inlet or outlet.
type LineQuality struct {
	PH               float64 `json:"ph"`
	Turbidity        float64 `json:"turbidity"`
	TDS              float64 `json:"tds"`
	Ecoli            float64 `json:"ecoli"`   // CFU/100mL
	Ammonia          float64 `json:"ammonia"` // mg/L
	ResidualChlorine float64 `json:"residual_chlorine"`
}

// Tank is the overhead storage tank.
type Tank struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Level           float64      `json:"level"`    // percent, [0,100]
	Capacity        float64      `json:"capacity"` // litres
	CurrentVolume   float64      `json:"current_volume"`
	InletValveOpen  bool         `json:"inlet_valve_open"`
	OutletValveOpen bool         `json:"outlet_valve_open"`
	IsFilling       bool         `json:"is_filling"`
	FillRate        float64      `json:"fill_rate"`  // L/min
	DrainRate       float64      `json:"drain_rate"` // L/min
	Temperature     float64      `json:"temperature"`
	Quality         WaterQuality `json:"quality"`
	Maintenance
}

// Pump is the borewell pump lifting water into the tank.
type Pump struct {
	ID               string     `json:"id"`
	Status           PumpStatus `json:"status"`
	FlowOutput       float64    `json:"flow_output"`     // L/min
	PressureOutput   float64    `json:"pressure_output"` // bar
	RatedFlow        float64    `json:"rated_flow"`
	RatedPressure    float64    `json:"rated_pressure"`
	PowerConsumption float64    `json:"power_consumption"` // kW
	MotorTemperature float64    `json:"motor_temperature"` // °C
	Vibration        float64    `json:"vibration"`         // mm/s
	BearingWear      float64    `json:"bearing_wear"`      // mm/s added to baseline vibration
	Efficiency       float64    `json:"efficiency"`        // percent
	RunningHours     float64    `json:"running_hours"`
	OperationCycles  int64      `json:"operation_cycles"`
	Voltage          float64    `json:"voltage"`
	Current          float64    `json:"current"`
	PowerFactor      float64    `json:"power_factor"`
	Maintenance
}

// FlowPoint is a measurement point at one end of a pipeline.
type FlowPoint struct {
	Flow     float64     `json:"flow"`     // L/min
	Pressure float64     `json:"pressure"` // bar
	Quality  LineQuality `json:"quality"`
}

// PipelineSegment is one distribution line fed from the tank outlet.
type PipelineSegment struct {
	ID                 int       `json:"id"`
	Name               string    `json:"name"`
	ValveOpen          bool      `json:"valve_open"`
	Inlet              FlowPoint `json:"inlet"`
	Outlet             FlowPoint `json:"outlet"`
	LeakageProbability float64   `json:"leakage_probability"` // percent, [0,100]
	EstimatedLeakage   float64   `json:"estimated_leakage"`   // L/min
	QualityDeviation   float64   `json:"quality_deviation"`   // percent, [0,100]
	Diameter           float64   `json:"diameter"`            // mm
	Material           string    `json:"material"`
	Length             float64   `json:"length"`          // m
	PressureRating     float64   `json:"pressure_rating"` // bar
	NominalFlow        float64   `json:"nominal_flow"`    // L/min at full head
	HouseholdsServed   int       `json:"households_served"`
	Maintenance
}

// NetworkStatus is the link quality between the controller and the twin.
type NetworkStatus string

const (
	NetworkConnected    NetworkStatus = "CONNECTED"
	NetworkDegraded     NetworkStatus = "DEGRADED"
	NetworkDisconnected NetworkStatus = "DISCONNECTED"
)

// ControlUnit is the simulated field microcontroller driving the relays.
type ControlUnit struct {
	ID               string             `json:"id"`
	Health           float64            `json:"health"` // percent
	Uptime           float64            `json:"uptime"` // seconds
	NetworkStatus    NetworkStatus      `json:"network_status"`
	SignalStrength   float64            `json:"signal_strength"` // dBm
	CommandsReceived int64              `json:"commands_received"`
	CommandsExecuted int64              `json:"commands_executed"`
	CommandsFailed   int64              `json:"commands_failed"`
	PendingCommands  []RelayCommand     `json:"pending_commands"`
	ExecutedCommands []RelayCommand     `json:"executed_commands"` // newest first
	PumpRelayStatus  PumpStatus         `json:"pump_relay_status"`
	ValveRelays      map[int]ValveState `json:"valve_relays"`
	InletRelay       ValveState         `json:"inlet_relay"`
	OutletRelay      ValveState         `json:"outlet_relay"`
	LastHeartbeat    time.Time          `json:"last_heartbeat"`
}

// SystemStatus is the plant-level classification shown on dashboards.
type SystemStatus string

const (
	StatusOperational  SystemStatus = "OPERATIONAL"
	StatusStandby      SystemStatus = "STANDBY"
	StatusLowTank      SystemStatus = "LOW_TANK"
	StatusLeakageAlert SystemStatus = "LEAKAGE_ALERT"
	StatusQualityAlert SystemStatus = "QUALITY_ALERT"
	StatusFailsafe     SystemStatus = "FAILSAFE"
)

// SystemMetrics are plant-wide aggregates recomputed every tick.
type SystemMetrics struct {
	TotalFlowRate           float64 `json:"total_flow_rate"`
	AveragePressure         float64 `json:"average_pressure"`
	SystemEfficiency        float64 `json:"system_efficiency"`
	TotalLeakage            float64 `json:"total_leakage"`
	AverageQualityDeviation float64 `json:"average_quality_deviation"`
	TotalHouseholdsServed   int     `json:"total_households_served"`
	Alerts                  []Alert `json:"alerts"`
}

// FailsafeState reports the overflow interlock.
type FailsafeState struct {
	Active      bool      `json:"active"`
	Reason      string    `json:"reason,omitempty"`
	Description string    `json:"description,omitempty"`
	Initiator   string    `json:"initiator,omitempty"`
	TriggeredAt time.Time `json:"triggered_at,omitempty"`
	Trips       int       `json:"trips"`
}

// State is the complete twin state. Values handed out by the engine are
// deep copies and may be retained or mutated freely by the caller.
type State struct {
	SystemID     string            `json:"system_id"`
	SystemName   string            `json:"system_name"`
	Tick         uint64            `json:"tick"`
	UpdatedAt    time.Time         `json:"updated_at"`
	SystemStatus SystemStatus      `json:"system_status"`
	Tank         Tank              `json:"tank"`
	Pump         Pump              `json:"pump"`
	Pipelines    []PipelineSegment `json:"pipelines"`
	ControlUnit  ControlUnit       `json:"control_unit"`
	Metrics      SystemMetrics     `json:"metrics"`
	Schedule     PumpSchedule      `json:"schedule"`
	Failsafe     FailsafeState     `json:"failsafe"`
}

// Pipeline returns a pointer to the pipeline with the given id, or nil.
func (s *State) Pipeline(id int) *PipelineSegment {
	for i := range s.Pipelines {
		if s.Pipelines[i].ID == id {
			return &s.Pipelines[i]
		}
	}
	return nil
}

// ActiveAlerts returns the unacknowledged alerts.
func (s *State) ActiveAlerts() []Alert {
	var out []Alert
	for _, a := range s.Metrics.Alerts {
		if !a.Acknowledged {
			out = append(out, a)
		}
	}
	return out
}
