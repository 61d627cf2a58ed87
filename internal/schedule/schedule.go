// Package schedule is the pump run scheduler: MANUAL, a countdown TIMER,
// or a wall-clock SCHEDULED stop. It only decides when to stop; issuing
// the relay command is the engine's job.
package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

// Limits bounds timer durations.
type Limits struct {
	MinTimerMinutes float64 `yaml:"min_timer_minutes"`
	MaxTimerMinutes float64 `yaml:"max_timer_minutes"`
}

// DefaultLimits allows timers from one minute to four hours.
func DefaultLimits() Limits {
	return Limits{MinTimerMinutes: 1, MaxTimerMinutes: 240}
}

// Options modify a timer or a scheduled stop.
type Options struct {
	// StartPump starts an idle pump before arming. Without it, arming
	// against a stopped pump fails.
	StartPump bool `json:"start_pump"`
}

// StartTimer arms a countdown and returns the effective duration in
// minutes after clamping to the upper limit.
func StartTimer(s *model.PumpSchedule, minutes float64, lim Limits, now time.Time) (float64, error) {
	minutes, err := ValidateTimer(minutes, lim)
	if err != nil {
		return 0, err
	}
	d := time.Duration(minutes * float64(time.Minute))

	*s = model.PumpSchedule{
		Mode:                 model.ModeTimer,
		TimerDurationMinutes: minutes,
		TimerEnd:             now.Add(d),
		TimerRemainingMs:     d.Milliseconds(),
		LastEvent:            event(model.EventTimerStarted, now, fmt.Sprintf("%g min", minutes)),
	}
	return minutes, nil
}

// ValidateTimer checks a requested duration and returns it clamped to the
// upper limit.
func ValidateTimer(minutes float64, lim Limits) (float64, error) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < lim.MinTimerMinutes {
		return 0, fmt.Errorf("timer must be at least %g minute(s), got %g", lim.MinTimerMinutes, minutes)
	}
	if lim.MaxTimerMinutes > 0 && minutes > lim.MaxTimerMinutes {
		minutes = lim.MaxTimerMinutes
	}
	return minutes, nil
}

// ScheduleStop arms a stop at the given wall-clock time.
func ScheduleStop(s *model.PumpSchedule, at, now time.Time) error {
	if !at.After(now) {
		return fmt.Errorf("stop time %s is not in the future", at.Format(time.RFC3339))
	}
	*s = model.PumpSchedule{
		Mode:             model.ModeScheduled,
		ScheduledStopAt:  at,
		TimerRemainingMs: at.Sub(now).Milliseconds(),
		LastEvent:        event(model.EventStopScheduled, now, at.Format(time.RFC3339)),
	}
	return nil
}

// Cancel returns to MANUAL and records reason as the last event. It
// reports whether a timer or scheduled stop was armed.
func Cancel(s *model.PumpSchedule, reason string, now time.Time) bool {
	wasArmed := Armed(s)
	*s = model.PumpSchedule{
		Mode:      model.ModeManual,
		LastEvent: event(reason, now, ""),
	}
	return wasArmed
}

// Complete returns to MANUAL after the armed stop fired.
func Complete(s *model.PumpSchedule, ev string, now time.Time) {
	Cancel(s, ev, now)
}

// Armed reports whether the schedule will stop the pump on its own.
func Armed(s *model.PumpSchedule) bool {
	return s.Mode == model.ModeTimer || s.Mode == model.ModeScheduled
}

// Due refreshes the remaining time and reports the completion event when
// the armed stop has been reached.
func Due(s *model.PumpSchedule, now time.Time) (string, bool) {
	switch s.Mode {
	case model.ModeTimer:
		s.TimerRemainingMs = max(0, s.TimerEnd.Sub(now).Milliseconds())
		if !now.Before(s.TimerEnd) {
			return model.EventTimerComplete, true
		}
	case model.ModeScheduled:
		s.TimerRemainingMs = max(0, s.ScheduledStopAt.Sub(now).Milliseconds())
		if !now.Before(s.ScheduledStopAt) {
			return model.EventScheduledStop, true
		}
	default:
		s.TimerRemainingMs = 0
	}
	return "", false
}

func event(typ string, at time.Time, detail string) *model.ScheduleEvent {
	return &model.ScheduleEvent{Type: typ, Timestamp: at, Detail: detail}
}
