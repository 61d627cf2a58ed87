// Package config loads the twin's YAML configuration. Engine parameters sit
// at the top level; process wiring lives under server.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strawberryjas/gramjaljeevan/internal/engine"
)

// Server holds the addresses and paths the jaltwin process wires up. Empty
// broker addresses disable that sink.
type Server struct {
	Listen   string `yaml:"listen"`
	Instance string `yaml:"instance"`
	Journal  string `yaml:"journal"`
	Scenario string `yaml:"scenario"`
	// ReportDir receives a PDF and JSON archive of the plant at shutdown.
	ReportDir string `yaml:"report_dir"`

	Redis          string        `yaml:"redis"`
	HealthInterval time.Duration `yaml:"health_interval"`
	// SnapshotInterval caps how often snapshots go to Redis; 0 sends each.
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`

	MQTT     string `yaml:"mqtt"`
	MQTTNode string `yaml:"mqtt_node"`

	Kafka      []string `yaml:"kafka"`
	KafkaTopic string   `yaml:"kafka_topic"`

	TelemetryInterval time.Duration `yaml:"telemetry_interval"`
}

// Config is the full file.
type Config struct {
	engine.Config `yaml:",inline"`
	Server        Server `yaml:"server"`
}

// Default returns a configuration that runs the reference plant in real
// time with an in-memory journal and no brokers.
func Default() Config {
	return Config{
		Config: engine.DefaultConfig(),
		Server: Server{
			Listen:         ":8080",
			Instance:       "village-001",
			Journal:        ":memory:",
			Redis:          "",
			HealthInterval: 5 * time.Second,
			MQTTNode:       "village-001",
			KafkaTopic:     "jaltwin.readings",

			SnapshotInterval:  time.Second,
			TelemetryInterval: 5 * time.Second,
		},
	}
}

// Load reads path over Default. A missing path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every out-of-range value at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.TickPeriod >= 10*time.Millisecond, "tick_period %s is below 10ms", c.TickPeriod)
	check(c.TimeScale > 0 && c.TimeScale <= 3600, "time_scale %g must be in (0, 3600]", c.TimeScale)
	check(c.HistorySize > 0 && c.HistorySize <= 100000, "history_size %d must be in [1, 100000]", c.HistorySize)

	check(c.Relay.LatencyTicks >= 0, "relay.latency_ticks %d is negative", c.Relay.LatencyTicks)
	check(c.Relay.FailureScale >= 0, "relay.failure_scale %g is negative", c.Relay.FailureScale)
	check(c.Relay.RingSize > 0, "relay.ring_size %d must be positive", c.Relay.RingSize)

	check(c.Schedule.MinTimerMinutes >= 1, "schedule.min_timer_minutes %g is below 1", c.Schedule.MinTimerMinutes)
	check(c.Schedule.MaxTimerMinutes >= c.Schedule.MinTimerMinutes,
		"schedule.max_timer_minutes %g is below min_timer_minutes %g", c.Schedule.MaxTimerMinutes, c.Schedule.MinTimerMinutes)

	check(c.Failsafe.TripLevel > 0 && c.Failsafe.TripLevel <= 100, "failsafe.trip_level %g must be in (0, 100]", c.Failsafe.TripLevel)
	check(c.Failsafe.ResetLevel < c.Failsafe.TripLevel,
		"failsafe.reset_level %g must be below trip_level %g", c.Failsafe.ResetLevel, c.Failsafe.TripLevel)
	check(c.Failsafe.LowLevel >= 0 && c.Failsafe.LowLevel < c.Failsafe.ResetLevel,
		"failsafe.low_level %g must be in [0, reset_level)", c.Failsafe.LowLevel)

	check(c.Alerts.TankCritical <= c.Alerts.TankLow, "alerts.tank_critical %g is above tank_low %g", c.Alerts.TankCritical, c.Alerts.TankLow)
	check(c.Alerts.LeakageCritical >= c.Alerts.Leakage, "alerts.leakage_critical %g is below leakage %g", c.Alerts.LeakageCritical, c.Alerts.Leakage)
	check(c.Alerts.OverheatCritical >= c.Alerts.Overheat, "alerts.overheat_critical %g is below overheat %g", c.Alerts.OverheatCritical, c.Alerts.Overheat)

	check(c.Physics.TankHeadBar > 0, "physics.tank_head_bar %g must be positive", c.Physics.TankHeadBar)
	check(c.Physics.LeakOnsetPerHour >= 0, "physics.leak_onset_per_hour %g is negative", c.Physics.LeakOnsetPerHour)

	check(c.Server.Instance != "", "server.instance is empty")
	check(c.Server.Journal != "", "server.journal is empty")
	check(len(c.Server.Kafka) == 0 || c.Server.KafkaTopic != "", "server.kafka_topic is empty")
	check(c.Server.MQTT == "" || c.Server.MQTTNode != "", "server.mqtt_node is empty")
	check(c.Server.HealthInterval > 0, "server.health_interval %s must be positive", c.Server.HealthInterval)
	check(c.Server.SnapshotInterval >= 0, "server.snapshot_interval %s must not be negative", c.Server.SnapshotInterval)
	check(c.Server.TelemetryInterval > 0, "server.telemetry_interval %s must be positive", c.Server.TelemetryInterval)

	return errors.Join(errs...)
}
