package model

import "time"

// ScheduleMode is the pump run mode.
type ScheduleMode string

const (
	ModeManual    ScheduleMode = "MANUAL"
	ModeTimer     ScheduleMode = "TIMER"
	ModeScheduled ScheduleMode = "SCHEDULED"
)

// Schedule event types recorded in PumpSchedule.LastEvent.
const (
	EventTimerStarted     = "TIMER_STARTED"
	EventStopScheduled    = "STOP_SCHEDULED"
	EventTimerComplete    = "TIMER_COMPLETE"
	EventScheduledStop    = "SCHEDULED_STOP"
	EventManualOn         = "MANUAL_ON"
	EventManualOff        = "MANUAL_OFF"
	EventUserCancelled    = "USER_CANCELLED"
	EventFailsafeOverflow = "FAILSAFE_OVERFLOW"
	EventTankLowShutoff   = "TANK_LOW_SHUTOFF"
)

// ScheduleEvent is the most recent schedule transition.
type ScheduleEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// PumpSchedule governs automatic pump stops. Exactly one of the timer or
// the scheduled stop is meaningful, selected by Mode.
type PumpSchedule struct {
	Mode                 ScheduleMode   `json:"mode"`
	TimerDurationMinutes float64        `json:"timer_duration_minutes,omitempty"`
	TimerEnd             time.Time      `json:"timer_end,omitempty"`
	TimerRemainingMs     int64          `json:"timer_remaining_ms"`
	ScheduledStopAt      time.Time      `json:"scheduled_stop_at,omitempty"`
	LastEvent            *ScheduleEvent `json:"last_event,omitempty"`
}
