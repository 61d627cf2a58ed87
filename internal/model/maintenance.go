package model

import "time"

// MaintenanceStatus bands a component by how soon it is due.
type MaintenanceStatus string

const (
	MaintenanceScheduled MaintenanceStatus = "SCHEDULED"
	MaintenanceDueSoon   MaintenanceStatus = "DUE_SOON"
	MaintenanceUrgent    MaintenanceStatus = "URGENT"
	MaintenanceOverdue   MaintenanceStatus = "OVERDUE"
)

// MaintenanceRecord is one completed maintenance action.
type MaintenanceRecord struct {
	ID          string    `json:"id"`
	Target      string    `json:"target"`
	PerformedAt time.Time `json:"performed_at"`
	Technician  string    `json:"technician"`
	Notes       string    `json:"notes,omitempty"`
}

// Maintenance is embedded in every maintainable component. The Days* and
// Status fields are derived each tick; the rest change only when
// maintenance is recorded.
type Maintenance struct {
	LastMaintenanceAt       time.Time           `json:"last_maintenance_at"`
	NextMaintenanceAt       time.Time           `json:"next_maintenance_at"`
	MaintenanceIntervalDays int                 `json:"maintenance_interval_days"`
	MaintenanceHistory      []MaintenanceRecord `json:"maintenance_history"`
	DaysUntilDue            int                 `json:"days_until_due"`
	DaysSinceLast           int                 `json:"days_since_last"`
	MaintenanceStatus       MaintenanceStatus   `json:"maintenance_status"`
}
