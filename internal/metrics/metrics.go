// Package metrics exports twin snapshots as Prometheus gauges.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

type Metrics struct {
	reg *prometheus.Registry

	tick            prometheus.Gauge
	tankLevel       prometheus.Gauge
	tankVolume      prometheus.Gauge
	pumpRunning     prometheus.Gauge
	pumpFlow        prometheus.Gauge
	pumpTemperature prometheus.Gauge
	pumpEfficiency  prometheus.Gauge
	totalFlow       prometheus.Gauge
	avgPressure     prometheus.Gauge
	totalLeakage    prometheus.Gauge
	households      prometheus.Gauge
	failsafeActive  prometheus.Gauge
	lineFlow        *prometheus.GaugeVec
	lineLeakage     *prometheus.GaugeVec
	activeAlerts    *prometheus.GaugeVec
	relayCommands   *prometheus.GaugeVec
	mcuHealth       prometheus.Gauge
	mcuSignal       prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the twin collectors on a fresh registry.
func New() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "jaltwin", Name: name, Help: help})
	}
	m := &Metrics{
		reg:             prometheus.NewRegistry(),
		tick:            gauge("tick", "Current simulation tick."),
		tankLevel:       gauge("tank_level_percent", "Overhead tank level."),
		tankVolume:      gauge("tank_volume_litres", "Water held in the overhead tank."),
		pumpRunning:     gauge("pump_running", "1 when the pump is ON."),
		pumpFlow:        gauge("pump_flow_lpm", "Pump flow output."),
		pumpTemperature: gauge("pump_motor_temperature_celsius", "Pump motor temperature."),
		pumpEfficiency:  gauge("pump_efficiency_percent", "Pump efficiency."),
		totalFlow:       gauge("total_flow_lpm", "Sum of pipeline outlet flows."),
		avgPressure:     gauge("average_pressure_bar", "Mean outlet pressure over open pipelines."),
		totalLeakage:    gauge("total_leakage_lpm", "Estimated leakage across all pipelines."),
		households:      gauge("households_served", "Households on open pipelines."),
		failsafeActive:  gauge("failsafe_active", "1 while the overflow interlock is latched."),
		lineFlow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jaltwin", Name: "pipeline_flow_lpm", Help: "Outlet flow by pipeline.",
		}, []string{"pipeline"}),
		lineLeakage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jaltwin", Name: "pipeline_leakage_probability_percent", Help: "Leakage probability by pipeline.",
		}, []string{"pipeline"}),
		activeAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jaltwin", Name: "active_alerts", Help: "Unacknowledged alerts by severity.",
		}, []string{"severity"}),
		relayCommands: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jaltwin", Name: "relay_commands", Help: "Controller command counters.",
		}, []string{"state"}),
		mcuHealth: gauge("mcu_health_percent", "Control unit health."),
		mcuSignal: gauge("mcu_signal_dbm", "Control unit signal strength."),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jaltwin", Name: "http_requests_total", Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jaltwin", Name: "http_request_duration_seconds", Help: "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.reg.MustRegister(
		m.tick, m.tankLevel, m.tankVolume,
		m.pumpRunning, m.pumpFlow, m.pumpTemperature, m.pumpEfficiency,
		m.totalFlow, m.avgPressure, m.totalLeakage, m.households, m.failsafeActive,
		m.lineFlow, m.lineLeakage, m.activeAlerts, m.relayCommands,
		m.mcuHealth, m.mcuSignal,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry exposes the registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Observe copies a snapshot into the gauges. It is an engine subscriber.
func (m *Metrics) Observe(s model.State) {
	if m == nil {
		return
	}
	m.tick.Set(float64(s.Tick))
	m.tankLevel.Set(s.Tank.Level)
	m.tankVolume.Set(s.Tank.CurrentVolume)
	m.pumpRunning.Set(boolGauge(s.Pump.Status.Running()))
	m.pumpFlow.Set(s.Pump.FlowOutput)
	m.pumpTemperature.Set(s.Pump.MotorTemperature)
	m.pumpEfficiency.Set(s.Pump.Efficiency)
	m.totalFlow.Set(s.Metrics.TotalFlowRate)
	m.avgPressure.Set(s.Metrics.AveragePressure)
	m.totalLeakage.Set(s.Metrics.TotalLeakage)
	m.households.Set(float64(s.Metrics.TotalHouseholdsServed))
	m.failsafeActive.Set(boolGauge(s.Failsafe.Active))

	for _, p := range s.Pipelines {
		id := strconv.Itoa(p.ID)
		m.lineFlow.WithLabelValues(id).Set(p.Outlet.Flow)
		m.lineLeakage.WithLabelValues(id).Set(p.LeakageProbability)
	}

	counts := map[model.Severity]int{
		model.SeverityInfo: 0, model.SeverityWarning: 0, model.SeverityHigh: 0, model.SeverityCritical: 0,
	}
	for _, a := range s.ActiveAlerts() {
		counts[a.Severity]++
	}
	for sev, n := range counts {
		m.activeAlerts.WithLabelValues(string(sev)).Set(float64(n))
	}

	cu := s.ControlUnit
	m.relayCommands.WithLabelValues("received").Set(float64(cu.CommandsReceived))
	m.relayCommands.WithLabelValues("executed").Set(float64(cu.CommandsExecuted))
	m.relayCommands.WithLabelValues("failed").Set(float64(cu.CommandsFailed))
	m.relayCommands.WithLabelValues("pending").Set(float64(len(cu.PendingCommands)))
	m.mcuHealth.Set(cu.Health)
	m.mcuSignal.Set(cu.SignalStrength)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests to next under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
