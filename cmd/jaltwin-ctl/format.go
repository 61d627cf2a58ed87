package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
)

// FormatResponse renders a command reply on one line.
func FormatResponse(resp *protocol.CommandResponsePayload) string {
	if resp.Success {
		line := fmt.Sprintf("[%-9s]  %-22s  id=%s  status=%s  %dms", "ok", resp.Command, resp.CommandID, resp.Status, resp.DurationMs)
		return paint(colorGreen, line)
	}
	line := fmt.Sprintf("[%-9s]  %-22s  %s", "failed", resp.Command, resp.Reason)
	if resp.CommandID != "" {
		line += "  id=" + resp.CommandID
	}
	return paint(colorRed, line)
}

// FormatEvent renders one published message for the watch stream.
func FormatEvent(msg *protocol.Message) string {
	instance := msg.Envelope.Source.Instance

	var tag, detail, color string
	switch msg.Envelope.Type {
	case protocol.TypeSnapshot:
		tag = "snapshot"
		s, err := protocol.ParseSnapshot(msg)
		if err != nil {
			detail = "(parse error)"
			break
		}
		detail = fmt.Sprintf("tick=%d  %s  pump=%s  tank=%.1f%%  flow=%.1f L/min",
			s.Tick, s.SystemStatus, s.Pump.Status, s.Tank.Level, s.Metrics.TotalFlowRate)
		if s.Failsafe.Active {
			color = colorRed
			detail += "  FAILSAFE"
		}

	case protocol.TypeAlert:
		tag = "alert"
		a, err := protocol.ParseAlert(msg)
		if err != nil {
			detail = "(parse error)"
			break
		}
		color = severityColor(a.Severity)
		detail = fmt.Sprintf("%s  %s  %s  %s", a.Severity, a.Type, a.Target, a.Message)
		if a.Occurrences > 1 {
			detail += fmt.Sprintf("  (x%d)", a.Occurrences)
		}

	case protocol.TypeServiceHeartbeat:
		tag = "heartbeat"
		color = colorCyan
		hb, err := protocol.ParseHeartbeat(msg)
		if err != nil {
			detail = "(parse error)"
			break
		}
		detail = fmt.Sprintf("%s  tick=%d  up=%s", hb.Status, hb.Tick, time.Duration(hb.UptimeSeconds)*time.Second)
		if warnings := HealthWarnings(hb); len(warnings) > 0 {
			detail += fmt.Sprintf("  %s[%s]%s", colorYellow, strings.Join(warnings, ", "), colorCyan)
		}

	default:
		tag = "message"
		detail = msg.Envelope.Type
	}

	return paint(color, fmt.Sprintf("[%-9s]  %-12s  %s", tag, instance, detail))
}

func severityColor(s model.Severity) string {
	switch s {
	case model.SeverityCritical, model.SeverityHigh:
		return colorRed
	case model.SeverityWarning:
		return colorYellow
	}
	return ""
}

// HealthWarnings lists the conditions in a heartbeat an operator should see.
func HealthWarnings(hb *protocol.HeartbeatPayload) []string {
	var warnings []string
	if hb.Status != "running" {
		warnings = append(warnings, "STOPPED")
	}
	if hb.Failsafe {
		warnings = append(warnings, "FAILSAFE")
	}
	switch {
	case hb.ActiveAlerts == 1:
		warnings = append(warnings, "1 ALERT")
	case hb.ActiveAlerts > 1:
		warnings = append(warnings, fmt.Sprintf("%d ALERTS", hb.ActiveAlerts))
	}
	return warnings
}

// FormatState renders a snapshot as a short plant summary.
func FormatState(s *model.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)  tick %d  %s  %s\n", s.SystemName, s.SystemID, s.Tick, s.SystemStatus, s.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "pump      %-5s  flow %.1f L/min  %.2f bar  %.1f kW  %.1f°C\n",
		s.Pump.Status, s.Pump.FlowOutput, s.Pump.PressureOutput, s.Pump.PowerConsumption, s.Pump.MotorTemperature)
	fmt.Fprintf(&b, "tank      %.1f%%  %.0f/%.0f L  inlet=%s outlet=%s\n",
		s.Tank.Level, s.Tank.CurrentVolume, s.Tank.Capacity, openClosed(s.Tank.InletValveOpen), openClosed(s.Tank.OutletValveOpen))
	for _, p := range s.Pipelines {
		fmt.Fprintf(&b, "pipeline  %d  %-20s  valve %-6s  %.1f L/min\n", p.ID, p.Name, openClosed(p.ValveOpen), p.Outlet.Flow)
	}
	fmt.Fprintf(&b, "schedule  %s", s.Schedule.Mode)
	switch s.Schedule.Mode {
	case model.ModeTimer:
		fmt.Fprintf(&b, "  %s left", (time.Duration(s.Schedule.TimerRemainingMs) * time.Millisecond).Round(time.Second))
	case model.ModeScheduled:
		fmt.Fprintf(&b, "  stop at %s", s.Schedule.ScheduledStopAt.Format(time.RFC3339))
	}
	b.WriteString("\n")
	if s.Failsafe.Active {
		b.WriteString(paint(colorRed, fmt.Sprintf("failsafe  %s: %s", s.Failsafe.Reason, s.Failsafe.Description)) + "\n")
	}
	for _, a := range s.ActiveAlerts() {
		b.WriteString(paint(severityColor(a.Severity), fmt.Sprintf("alert     %s  %s  %s", a.Severity, a.Target, a.Message)) + "\n")
	}
	return b.String()
}

func openClosed(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}
