package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/store"
)

// maxRows caps each table so the report stays a few pages long.
const maxRows = 40

// PlantPDF renders a status report for s. journal may be nil; when set, the
// report includes the maintenance log and journaled alerts.
func PlantPDF(w io.Writer, s model.State, journal *store.Store) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, "Plant Status Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, s.SystemName, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	info := []struct{ label, value string }{
		{"System", s.SystemID},
		{"Status", string(s.SystemStatus)},
		{"Snapshot", s.UpdatedAt.Format(time.RFC3339)},
		{"Tick", fmt.Sprintf("%d", s.Tick)},
		{"Tank level", fmt.Sprintf("%.1f%% (%.0f L of %.0f L)", s.Tank.Level, s.Tank.CurrentVolume, s.Tank.Capacity)},
		{"Pump", fmt.Sprintf("%s, %.0f L/min at %.2f bar, %.1f C", s.Pump.Status, s.Pump.FlowOutput, s.Pump.PressureOutput, s.Pump.MotorTemperature)},
		{"Schedule", scheduleLine(s.Schedule)},
		{"Total flow", fmt.Sprintf("%.1f L/min", s.Metrics.TotalFlowRate)},
		{"Leakage", fmt.Sprintf("%.1f L/min", s.Metrics.TotalLeakage)},
		{"Households served", fmt.Sprintf("%d", s.Metrics.TotalHouseholdsServed)},
		{"Controller", fmt.Sprintf("%s, health %.0f%%, %.0f dBm", s.ControlUnit.NetworkStatus, s.ControlUnit.Health, s.ControlUnit.SignalStrength)},
	}
	if s.Failsafe.Active {
		info = append(info, struct{ label, value string }{"Failsafe", s.Failsafe.Description})
	}
	for _, item := range info {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 7, item.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	q := s.Tank.Quality
	section(pdf, "Tank Water Quality")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("pH %.2f   Turbidity %.2f NTU   Chlorine %.2f mg/L   TDS %.0f mg/L   Hardness %.0f mg/L",
		q.PH, q.Turbidity, q.Chlorine, q.TDS, q.Hardness), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Pipelines")
	header(pdf, []col{{8, "#"}, {52, "Name"}, {16, "Valve"}, {22, "Flow L/min"}, {22, "Pressure"}, {20, "Leak %"}, {0, "Maintenance"}})
	pdf.SetFont("Arial", "", 8)
	for _, p := range s.Pipelines {
		valve := "closed"
		if p.ValveOpen {
			valve = "open"
		}
		pdf.CellFormat(8, 6, fmt.Sprintf("%d", p.ID), "1", 0, "C", false, 0, "")
		pdf.CellFormat(52, 6, truncate(p.Name, 30), "1", 0, "L", false, 0, "")
		pdf.CellFormat(16, 6, valve, "1", 0, "C", false, 0, "")
		pdf.CellFormat(22, 6, fmt.Sprintf("%.1f", p.Outlet.Flow), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, fmt.Sprintf("%.2f", p.Outlet.Pressure), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%.1f", p.LeakageProbability), "1", 0, "R", false, 0, "")
		pdf.CellFormat(0, 6, string(p.Maintenance.MaintenanceStatus), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, "Active Alerts")
	active := s.ActiveAlerts()
	if len(active) == 0 {
		none(pdf, "No active alerts.")
	} else {
		header(pdf, []col{{22, "Severity"}, {32, "Type"}, {24, "Target"}, {0, "Message"}})
		pdf.SetFont("Arial", "", 8)
		for i, a := range active {
			if i == maxRows {
				break
			}
			pdf.CellFormat(22, 6, string(a.Severity), "1", 0, "L", false, 0, "")
			pdf.CellFormat(32, 6, string(a.Type), "1", 0, "L", false, 0, "")
			pdf.CellFormat(24, 6, a.Target, "1", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, truncate(a.Message, 60), "1", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	section(pdf, "Recent Relay Commands")
	cmds := s.ControlUnit.ExecutedCommands
	if len(cmds) == 0 {
		none(pdf, "No commands executed.")
	} else {
		header(pdf, []col{{30, "Time"}, {26, "Device"}, {20, "Action"}, {22, "Origin"}, {22, "Status"}, {0, "Reason"}})
		pdf.SetFont("Arial", "", 8)
		for i, c := range cmds {
			if i == maxRows {
				break
			}
			dev := string(c.Device)
			if c.Device == model.DeviceValve {
				dev = fmt.Sprintf("VALVE %d", c.PipelineID)
			}
			pdf.CellFormat(30, 6, c.IssuedAt.Format("2006-01-02 15:04:05"), "1", 0, "L", false, 0, "")
			pdf.CellFormat(26, 6, dev, "1", 0, "L", false, 0, "")
			pdf.CellFormat(20, 6, truncate(c.Action, 12), "1", 0, "L", false, 0, "")
			pdf.CellFormat(22, 6, string(c.Origin), "1", 0, "L", false, 0, "")
			pdf.CellFormat(22, 6, string(c.Status), "1", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, truncate(c.Reason, 40), "1", 1, "L", false, 0, "")
		}
	}

	if journal != nil {
		if err := journalPages(pdf, journal); err != nil {
			return err
		}
	}
	return pdf.Output(w)
}

func journalPages(pdf *fpdf.Fpdf, journal *store.Store) error {
	records, err := journal.ListMaintenance("")
	if err != nil {
		return fmt.Errorf("query maintenance: %w", err)
	}
	alerts, err := journal.ListAlerts(maxRows)
	if err != nil {
		return fmt.Errorf("query alerts: %w", err)
	}

	pdf.AddPage()
	section(pdf, "Maintenance Log")
	if len(records) == 0 {
		none(pdf, "No maintenance recorded.")
	} else {
		header(pdf, []col{{34, "Performed"}, {28, "Target"}, {32, "Technician"}, {0, "Notes"}})
		pdf.SetFont("Arial", "", 8)
		for i, r := range records {
			if i == maxRows {
				break
			}
			pdf.CellFormat(34, 6, r.PerformedAt.Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
			pdf.CellFormat(28, 6, r.Target, "1", 0, "L", false, 0, "")
			pdf.CellFormat(32, 6, truncate(r.Technician, 18), "1", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, truncate(r.Notes, 50), "1", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	section(pdf, "Alert History")
	if len(alerts) == 0 {
		none(pdf, "No alerts journaled.")
		return nil
	}
	header(pdf, []col{{34, "Raised"}, {22, "Severity"}, {32, "Type"}, {24, "Target"}, {0, "Acknowledged"}})
	pdf.SetFont("Arial", "", 8)
	for _, a := range alerts {
		acked := "-"
		if a.AcknowledgedAt != nil {
			acked = a.AcknowledgedAt.Format("2006-01-02 15:04")
		}
		pdf.CellFormat(34, 6, a.CreatedAt.Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 6, a.Severity, "1", 0, "L", false, 0, "")
		pdf.CellFormat(32, 6, a.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(24, 6, a.Target, "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, acked, "1", 1, "L", false, 0, "")
	}
	return nil
}

type col struct {
	width float64
	title string
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func header(pdf *fpdf.Fpdf, cols []col) {
	pdf.SetFont("Arial", "B", 8)
	pdf.SetFillColor(220, 220, 220)
	for i, c := range cols {
		ln := 0
		if i == len(cols)-1 {
			ln = 1
		}
		pdf.CellFormat(c.width, 6, c.title, "1", ln, "L", true, 0, "")
	}
}

func none(pdf *fpdf.Fpdf, msg string) {
	pdf.SetFont("Arial", "I", 10)
	pdf.CellFormat(0, 7, msg, "", 1, "L", false, 0, "")
}

func scheduleLine(s model.PumpSchedule) string {
	switch s.Mode {
	case model.ModeTimer:
		return fmt.Sprintf("timer, %.0f min (%s left)", s.TimerDurationMinutes, time.Duration(s.TimerRemainingMs)*time.Millisecond)
	case model.ModeScheduled:
		return "stop at " + s.ScheduledStopAt.Format(time.RFC3339)
	}
	return "manual"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
