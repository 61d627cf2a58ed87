package physics

import (
	"math"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

const (
	day           = 24 * time.Hour
	maxHistoryLen = 20
)

// DeriveMaintenance recomputes the day counters and the status band.
func DeriveMaintenance(m *model.Maintenance, now time.Time) {
	if !m.LastMaintenanceAt.IsZero() {
		m.DaysSinceLast = ceilDays(now.Sub(m.LastMaintenanceAt))
	}
	if m.NextMaintenanceAt.IsZero() {
		m.MaintenanceStatus = model.MaintenanceScheduled
		return
	}
	m.DaysUntilDue = ceilDays(m.NextMaintenanceAt.Sub(now))
	m.MaintenanceStatus = Band(m.DaysUntilDue)
}

// Band classifies days until due.
func Band(daysUntil int) model.MaintenanceStatus {
	switch {
	case daysUntil < 0:
		return model.MaintenanceOverdue
	case daysUntil <= 7:
		return model.MaintenanceUrgent
	case daysUntil <= 14:
		return model.MaintenanceDueSoon
	}
	return model.MaintenanceScheduled
}

// RecordMaintenance stamps a completed maintenance action and reschedules
// the next one from the component's interval.
func RecordMaintenance(m *model.Maintenance, rec model.MaintenanceRecord) {
	m.LastMaintenanceAt = rec.PerformedAt
	if m.MaintenanceIntervalDays > 0 {
		m.NextMaintenanceAt = rec.PerformedAt.Add(time.Duration(m.MaintenanceIntervalDays) * day)
	}
	m.MaintenanceHistory = append(m.MaintenanceHistory, rec)
	if len(m.MaintenanceHistory) > maxHistoryLen {
		m.MaintenanceHistory = append([]model.MaintenanceRecord(nil), m.MaintenanceHistory[len(m.MaintenanceHistory)-maxHistoryLen:]...)
	}
	DeriveMaintenance(m, rec.PerformedAt)
}

// RepairPump restores a serviced pump to rated condition.
func RepairPump(p *model.Pump, cfg Config) {
	p.Efficiency = cfg.PumpRatedEfficiency
	p.BearingWear = 0
}

// RepairPipeline clears leakage on a repaired line.
func RepairPipeline(p *model.PipelineSegment) {
	p.LeakageProbability = 0
	p.EstimatedLeakage = 0
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}
