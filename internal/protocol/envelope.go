package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

// Message type constants.
const (
	TypeCommandRequest   = "twin.command.request"
	TypeCommandResponse  = "twin.command.response"
	TypeSnapshot         = "twin.snapshot"
	TypeAlert            = "twin.alert"
	TypeServiceHeartbeat = "service.heartbeat"
)

// ValidMessageTypes lists all valid message types.
var ValidMessageTypes = []string{
	TypeCommandRequest,
	TypeCommandResponse,
	TypeSnapshot,
	TypeAlert,
	TypeServiceHeartbeat,
}

// SchemaVersion is the current protocol version.
const SchemaVersion = "v1.0.0"

// Message is the top-level protocol message containing an envelope and payload.
type Message struct {
	Envelope Envelope        `json:"envelope"`
	Payload  json.RawMessage `json:"payload"`
}

// Envelope contains message metadata and routing information.
type Envelope struct {
	ID            string `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	Source        Source `json:"source"`
	SchemaVersion string `json:"schema_version"`
	Type          string `json:"type"`
	CorrelationID string `json:"correlation_id,omitempty"`
	ReplyTo       string `json:"reply_to,omitempty"`
}

// Source identifies who sent a message.
type Source struct {
	Service  string `json:"service"`
	Instance string `json:"instance"`
	Version  string `json:"version"`
}

// HeartbeatPayload is published by the twin service on every heartbeat.
type HeartbeatPayload struct {
	Status        string `json:"status"` // "running", "stopped"
	UptimeSeconds int64  `json:"uptime_seconds"`
	Tick          uint64 `json:"tick"`
	SystemStatus  string `json:"system_status"`
	ActiveAlerts  int    `json:"active_alerts"`
	Failsafe      bool   `json:"failsafe"`
	Version       string `json:"version"`
}

// CommandRequestPayload carries one operator command. Only the fields the
// named command uses are read.
type CommandRequestPayload struct {
	Command    string             `json:"command"`
	Pipeline   *int               `json:"pipeline,omitempty"`
	Open       *bool              `json:"open,omitempty"`
	Status     string             `json:"status,omitempty"`
	Minutes    *float64           `json:"minutes,omitempty"`
	StopAt     *time.Time         `json:"stop_at,omitempty"`
	StartPump  bool               `json:"start_pump,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	AlertID    string             `json:"alert_id,omitempty"`
	Component  string             `json:"component,omitempty"`
	State      string             `json:"state,omitempty"`
	Overrides  map[string]float64 `json:"overrides,omitempty"`
	Target     string             `json:"target,omitempty"`
	Technician string             `json:"technician,omitempty"`
	Notes      string             `json:"notes,omitempty"`
}

// CommandResponsePayload is the reply to a twin.command.request.
type CommandResponsePayload struct {
	Command    string `json:"command"`
	Success    bool   `json:"success"`
	Reason     string `json:"reason,omitempty"`
	CommandID  string `json:"command_id,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMs int    `json:"duration_ms"`
}

// NewEnvelope creates a new envelope with a generated UUIDv4 and current UTC timestamp.
func NewEnvelope(source Source, msgType string) Envelope {
	return Envelope{
		ID:            uuid.New().String(),
		Timestamp:     time.Now().UTC().Unix(),
		Source:        source,
		SchemaVersion: SchemaVersion,
		Type:          msgType,
	}
}

// NewMessage builds a complete message with envelope and marshaled payload.
func NewMessage(source Source, msgType string, payload any) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Envelope: NewEnvelope(source, msgType),
		Payload:  json.RawMessage(payloadBytes),
	}, nil
}

// Parse unmarshals JSON bytes into a Message.
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return &msg, nil
}

func decode[T any](msg *Message, what string) (*T, error) {
	var p T
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", what, err)
	}
	return &p, nil
}

// ParseHeartbeat extracts a HeartbeatPayload from a Message.
func ParseHeartbeat(msg *Message) (*HeartbeatPayload, error) {
	return decode[HeartbeatPayload](msg, "heartbeat")
}

// ParseCommandRequest extracts a CommandRequestPayload from a Message.
func ParseCommandRequest(msg *Message) (*CommandRequestPayload, error) {
	return decode[CommandRequestPayload](msg, "command request")
}

// ParseCommandResponse extracts a CommandResponsePayload from a Message.
func ParseCommandResponse(msg *Message) (*CommandResponsePayload, error) {
	return decode[CommandResponsePayload](msg, "command response")
}

// ParseSnapshot extracts the plant state from a twin.snapshot Message.
func ParseSnapshot(msg *Message) (*model.State, error) {
	return decode[model.State](msg, "snapshot")
}

// ParseAlert extracts the alert from a twin.alert Message.
func ParseAlert(msg *Message) (*model.Alert, error) {
	return decode[model.Alert](msg, "alert")
}
