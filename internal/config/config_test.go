package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jaltwin.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.TickPeriod != time.Second {
		t.Errorf("TickPeriod = %s, want 1s", cfg.TickPeriod)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeYAML(t, `
tick_period: 500ms
time_scale: 60
seed: 7
relay:
  latency_ticks: 2
schedule:
  max_timer_minutes: 120
failsafe:
  reset_level: 95
server:
  listen: ":9090"
  redis: "localhost:6379"
  kafka: ["broker-1:9092", "broker-2:9092"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.TickPeriod != 500*time.Millisecond {
		t.Errorf("TickPeriod = %s, want 500ms", cfg.TickPeriod)
	}
	if cfg.TimeScale != 60 || cfg.Seed != 7 {
		t.Errorf("TimeScale/Seed = %g/%d, want 60/7", cfg.TimeScale, cfg.Seed)
	}
	if cfg.Relay.LatencyTicks != 2 {
		t.Errorf("Relay.LatencyTicks = %d, want 2", cfg.Relay.LatencyTicks)
	}
	if cfg.Relay.RingSize != 50 {
		t.Errorf("Relay.RingSize = %d, want default 50", cfg.Relay.RingSize)
	}
	if cfg.Schedule.MaxTimerMinutes != 120 || cfg.Schedule.MinTimerMinutes != 1 {
		t.Errorf("Schedule = %+v", cfg.Schedule)
	}
	if cfg.Failsafe.ResetLevel != 95 || cfg.Failsafe.TripLevel != 100 {
		t.Errorf("Failsafe = %+v", cfg.Failsafe)
	}
	if cfg.Server.Listen != ":9090" || cfg.Server.Redis != "localhost:6379" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if len(cfg.Server.Kafka) != 2 || cfg.Server.KafkaTopic != "jaltwin.readings" {
		t.Errorf("Kafka = %v topic %q", cfg.Server.Kafka, cfg.Server.KafkaTopic)
	}
	if cfg.Server.Instance != "village-001" {
		t.Errorf("Instance = %q, want default", cfg.Server.Instance)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := writeYAML(t, `
tick_period: 1ms
time_scale: -2
failsafe:
  reset_level: 100
  low_level: -1
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() accepted invalid config")
	}
	for _, want := range []string{"tick_period", "time_scale", "failsafe.reset_level", "failsafe.low_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file returned nil error")
	}
	if _, err := Load(writeYAML(t, "tick_period: [1, 2")); err == nil {
		t.Error("Load() of malformed YAML returned nil error")
	}
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "jaltwin.yaml"))
	if err != nil {
		t.Fatalf("Load(configs/jaltwin.yaml) error: %v", err)
	}
	if cfg.Server.Instance != "village-001" || cfg.Server.Redis == "" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Relay.LatencyTicks != 1 {
		t.Errorf("Relay.LatencyTicks = %d, want 1", cfg.Relay.LatencyTicks)
	}
	if len(cfg.Server.Kafka) != 1 || cfg.Server.TelemetryInterval != 5*time.Second {
		t.Errorf("telemetry settings = %v every %s", cfg.Server.Kafka, cfg.Server.TelemetryInterval)
	}
	if cfg.Server.SnapshotInterval != time.Second || cfg.Failsafe.LowLevel != 15 {
		t.Errorf("snapshot_interval = %s, low_level = %g", cfg.Server.SnapshotInterval, cfg.Failsafe.LowLevel)
	}
}
