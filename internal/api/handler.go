// Package api serves the twin over HTTP: live state, history, operator
// commands, the audit journal, reports and a WebSocket snapshot stream.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/command"
	"github.com/strawberryjas/gramjaljeevan/internal/linkhealth"
	"github.com/strawberryjas/gramjaljeevan/internal/metrics"
	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
	"github.com/strawberryjas/gramjaljeevan/internal/relay"
	"github.com/strawberryjas/gramjaljeevan/internal/report"
	"github.com/strawberryjas/gramjaljeevan/internal/store"
)

// Twin is what the API needs from an engine.
type Twin interface {
	command.Twin
	GetLiveState() model.State
	GetRealtimeHistory() []model.State
}

// LinkChecker reports the health of an external link.
type LinkChecker interface {
	IsConnected() bool
	GetStatus() linkhealth.Status
}

// Handler holds the dependencies of the HTTP routes.
type Handler struct {
	Twin            Twin
	Journal         *store.Store     // nil disables /journal routes
	Hub             *Hub             // nil means no command events
	Metrics         *metrics.Metrics // nil means no /metrics
	Links           []LinkChecker
	RequireOperator bool
}

// commandReply is the body of every command route.
type commandReply struct {
	relay.Result
	Error string `json:"error,omitempty"`
}

// commandEvent is broadcast to dashboards after each HTTP command.
type commandEvent struct {
	Command  string       `json:"command"`
	Operator string       `json:"operator,omitempty"`
	Result   relay.Result `json:"result"`
}

type simulationStatus struct {
	Running      bool                `json:"running"`
	Tick         uint64              `json:"tick"`
	UpdatedAt    time.Time           `json:"updated_at"`
	SystemStatus model.SystemStatus  `json:"system_status"`
	Failsafe     model.FailsafeState `json:"failsafe"`
	Schedule     model.PumpSchedule  `json:"schedule"`
	WSClients    int                 `json:"ws_clients"`
	Links        []linkhealth.Status `json:"links,omitempty"`
}

// RegisterRoutes adds all routes to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	h.handle(mux, "GET /state", h.getState)
	h.handle(mux, "GET /history", h.getHistory)
	h.handle(mux, "GET /alerts", h.getAlerts)
	h.handle(mux, "GET /commands", h.listCommands)

	h.handle(mux, "POST /alerts/{id}/ack", h.exec(command.AckAlert, func(r *http.Request, req *protocol.CommandRequestPayload) error {
		req.AlertID = r.PathValue("id")
		return nil
	}))
	h.handle(mux, "POST /alerts/clear", h.exec(command.ClearAlerts, nil))

	h.handle(mux, "POST /pump/toggle", h.exec(command.TogglePump, nil))
	h.handle(mux, "POST /pump/status", h.exec(command.SetPump, nil))
	h.handle(mux, "POST /pump/timer", h.exec(command.SetPumpTimer, nil))
	h.handle(mux, "POST /pump/schedule", h.exec(command.SchedulePumpStop, nil))
	h.handle(mux, "POST /pump/schedule/cancel", h.exec(command.CancelPumpSchedule, nil))

	h.handle(mux, "POST /valves/{id}/toggle", h.exec(command.ToggleValve, pipelineFromPath))
	h.handle(mux, "POST /valves/{id}/status", h.exec(command.SetValve, pipelineFromPath))
	h.handle(mux, "POST /tank/inlet/toggle", h.exec(command.ToggleTankInlet, nil))
	h.handle(mux, "POST /tank/outlet/toggle", h.exec(command.ToggleTankOutlet, nil))
	h.handle(mux, "POST /tank/inlet/status", h.exec(command.SetTankInlet, nil))
	h.handle(mux, "POST /tank/outlet/status", h.exec(command.SetTankOutlet, nil))

	h.handle(mux, "POST /maintenance", h.exec(command.CompleteMaintenance, func(r *http.Request, req *protocol.CommandRequestPayload) error {
		if req.Technician == "" {
			req.Technician = operator(r)
		}
		return nil
	}))

	h.handle(mux, "GET /simulation/status", h.getSimulationStatus)
	h.handle(mux, "POST /simulation/start", h.exec(command.Start, nil))
	h.handle(mux, "POST /simulation/stop", h.exec(command.Stop, nil))
	h.handle(mux, "POST /simulation/force", h.exec(command.Force, nil))

	h.handle(mux, "GET /journal/alerts", h.journalAlerts)
	h.handle(mux, "GET /journal/commands", h.journalCommands)
	h.handle(mux, "GET /journal/maintenance", h.journalMaintenance)
	h.handle(mux, "GET /report.pdf", h.getReportPDF)

	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.HandleWebSocket)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics.Handler())
	}
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	if h.Metrics != nil {
		mux.Handle(pattern, h.Metrics.WrapHandler(pattern, fn))
		return
	}
	mux.HandleFunc(pattern, fn)
}

func pipelineFromPath(r *http.Request, req *protocol.CommandRequestPayload) error {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("invalid pipeline id %q", r.PathValue("id"))
	}
	req.Pipeline = &id
	return nil
}

// exec builds a handler that decodes the optional JSON body into a command
// request, lets fill add path parameters, and runs it. Failed commands
// answer 409 with the result.
func (h *Handler) exec(name string, fill func(*http.Request, *protocol.CommandRequestPayload) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.requireOperator(w, r) {
			return
		}
		var req protocol.CommandRequestPayload
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.Command = name
		if fill != nil {
			if err := fill(r, &req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
		}

		res := command.Execute(h.Twin, req)
		who := operator(r)
		if h.Hub != nil {
			h.Hub.BroadcastEvent(EventCommand, commandEvent{Command: name, Operator: who, Result: res})
		}

		if !res.Success {
			writeJSON(w, http.StatusConflict, commandReply{Result: res, Error: res.Reason})
			return
		}
		if who != "" {
			log.Printf("api: %s by %s: %s", name, who, res.Reason)
		}
		writeJSON(w, http.StatusOK, commandReply{Result: res})
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Twin.GetLiveState())
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	items := h.Twin.GetRealtimeHistory()
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getAlerts(w http.ResponseWriter, r *http.Request) {
	s := h.Twin.GetLiveState()
	alerts := s.Metrics.Alerts
	if r.URL.Query().Get("active") == "true" {
		alerts = s.ActiveAlerts()
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) listCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, command.Names())
}

func (h *Handler) getSimulationStatus(w http.ResponseWriter, r *http.Request) {
	s := h.Twin.GetLiveState()
	st := simulationStatus{
		Running:      h.Twin.IsRunning(),
		Tick:         s.Tick,
		UpdatedAt:    s.UpdatedAt,
		SystemStatus: s.SystemStatus,
		Failsafe:     s.Failsafe,
		Schedule:     s.Schedule,
	}
	if h.Hub != nil {
		st.WSClients = h.Hub.ClientCount()
	}
	for _, l := range h.Links {
		st.Links = append(st.Links, l.GetStatus())
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) journal(w http.ResponseWriter) bool {
	if h.Journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "journal disabled"})
		return false
	}
	return true
}

func (h *Handler) journalAlerts(w http.ResponseWriter, r *http.Request) {
	if !h.journal(w) {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	entries, err := h.Journal.ListAlerts(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list alerts"})
		return
	}
	if entries == nil {
		entries = []store.AlertEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) journalCommands(w http.ResponseWriter, r *http.Request) {
	if !h.journal(w) {
		return
	}
	origin := r.URL.Query().Get("origin")
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=relay-commands.csv")
		if err := report.ExportCommandsCSV(w, h.Journal, origin); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := report.ExportCommandsJSON(w, h.Journal, origin); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) journalMaintenance(w http.ResponseWriter, r *http.Request) {
	if !h.journal(w) {
		return
	}
	records, err := h.Journal.ListMaintenance(r.URL.Query().Get("target"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list maintenance"})
		return
	}
	if records == nil {
		records = []model.MaintenanceRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) getReportPDF(w http.ResponseWriter, r *http.Request) {
	s := h.Twin.GetLiveState()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%d.pdf", s.SystemID, s.Tick))
	if err := report.PlantPDF(w, s, h.Journal); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
