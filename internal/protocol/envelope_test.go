package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

func testSource() Source {
	return Source{
		Service:  "jaltwin-ctl",
		Instance: "ops-01",
		Version:  "1.0.0",
	}
}

func TestNewEnvelope(t *testing.T) {
	src := testSource()
	env := NewEnvelope(src, TypeServiceHeartbeat)

	if !isUUIDv4(env.ID) {
		t.Errorf("NewEnvelope ID is not valid UUIDv4: %q", env.ID)
	}
	if env.Timestamp <= 0 {
		t.Errorf("NewEnvelope Timestamp should be positive, got %d", env.Timestamp)
	}
	if env.SchemaVersion != SchemaVersion {
		t.Errorf("NewEnvelope SchemaVersion = %q, want %q", env.SchemaVersion, SchemaVersion)
	}
	if env.Type != TypeServiceHeartbeat {
		t.Errorf("NewEnvelope Type = %q, want %q", env.Type, TypeServiceHeartbeat)
	}
	if env.Source != src {
		t.Errorf("NewEnvelope Source = %+v, want %+v", env.Source, src)
	}
}

func TestNewMessageParse(t *testing.T) {
	tests := []struct {
		name    string
		msgType string
		payload any
	}{
		{"heartbeat", TypeServiceHeartbeat, HeartbeatPayload{Status: "running", UptimeSeconds: 3600, Tick: 3600, Version: "1.0.0"}},
		{"command_request", TypeCommandRequest, CommandRequestPayload{Command: "toggle_pump"}},
		{"alert", TypeAlert, model.Alert{ID: "ALT-1", Type: model.AlertTankLow, Severity: model.SeverityHigh}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(testSource(), tt.msgType, tt.payload)
			if err != nil {
				t.Fatalf("NewMessage() error: %v", err)
			}
			data, err := json.Marshal(msg)
			if err != nil {
				t.Fatalf("json.Marshal() error: %v", err)
			}
			parsed, err := Parse(data)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if parsed.Envelope.Type != tt.msgType {
				t.Errorf("Type = %q, want %q", parsed.Envelope.Type, tt.msgType)
			}
			if parsed.Envelope.ID != msg.Envelope.ID {
				t.Errorf("ID = %q, want %q", parsed.Envelope.ID, msg.Envelope.ID)
			}
			if err := Validate(parsed); err != nil && tt.msgType != TypeCommandRequest {
				t.Errorf("Validate() error: %v", err)
			}
		})
	}
}

func TestParseInvalidJSON(t *testing.T) {
	for _, data := range []string{"", "this is not json", `{"envelope":`, `[]`} {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", data)
		}
	}
}

func TestParseSnapshot(t *testing.T) {
	at := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	s := model.State{
		SystemID:  "GJJ-VILLAGE-001",
		Tick:      42,
		UpdatedAt: at,
		Tank:      model.Tank{ID: "OHT-001", Level: 72.5},
		Pump:      model.Pump{ID: "PUMP-001", Status: model.PumpOn},
		Pipelines: []model.PipelineSegment{{ID: 1, ValveOpen: true}},
		ControlUnit: model.ControlUnit{
			ValveRelays: map[int]model.ValveState{1: model.ValveOpen},
		},
	}
	msg, err := NewMessage(testSource(), TypeSnapshot, s)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	got, err := ParseSnapshot(msg)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if got.Tick != 42 || got.Tank.Level != 72.5 || got.Pump.Status != model.PumpOn {
		t.Errorf("snapshot = tick %d level %v pump %s", got.Tick, got.Tank.Level, got.Pump.Status)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, at)
	}
	if got.ControlUnit.ValveRelays[1] != model.ValveOpen {
		t.Errorf("ValveRelays[1] = %q, want OPEN", got.ControlUnit.ValveRelays[1])
	}
}

func TestTypedParsersRejectWrongShape(t *testing.T) {
	msg := &Message{Payload: json.RawMessage(`"just a string"`)}
	if _, err := ParseCommandRequest(msg); err == nil {
		t.Error("ParseCommandRequest accepted a string payload")
	}
	if _, err := ParseHeartbeat(msg); err == nil {
		t.Error("ParseHeartbeat accepted a string payload")
	}
	if _, err := ParseAlert(msg); err == nil {
		t.Error("ParseAlert accepted a string payload")
	}
}
