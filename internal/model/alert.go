package model

import "time"

// AlertType identifies the rule that raised an alert.
type AlertType string

const (
	AlertTankLow        AlertType = "TANK_LOW"
	AlertTankFull       AlertType = "TANK_FULL"
	AlertTankOverflow   AlertType = "TANK_OVERFLOW"
	AlertLeakage        AlertType = "LEAKAGE"
	AlertPressure       AlertType = "PRESSURE"
	AlertPumpOverheat   AlertType = "PUMP_OVERHEAT"
	AlertQuality        AlertType = "QUALITY"
	AlertPumpTimer      AlertType = "PUMP_TIMER"
	AlertMaintenanceDue AlertType = "MAINTENANCE_DUE"
)

// Severity orders alerts for display and escalation.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns a comparable weight; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Alert is a single operator-facing alert. Type and Target together form
// its dedup key.
type Alert struct {
	ID             string     `json:"id"`
	Type           AlertType  `json:"type"`
	Severity       Severity   `json:"severity"`
	Target         string     `json:"target"`
	Message        string     `json:"message"`
	Acknowledged   bool       `json:"acknowledged"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	Occurrences    int        `json:"occurrences"`
}
