package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TopicPrefix is the root of the node telemetry topics.
const TopicPrefix = "jalsense/nodes"

// Topic is where readings for a field node are published.
func Topic(node string) string {
	return TopicPrefix + "/" + node + "/telemetry"
}

// MQTTSink publishes readings to a broker.
type MQTTSink struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

// DialMQTT connects to broker as clientID. The client reconnects on its
// own after the first connection succeeds.
func DialMQTT(broker, clientID, node string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("telemetry: mqtt connection lost: %v", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Printf("telemetry: mqtt connected to %s", broker)
		})

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return NewMQTTSink(c, node), nil
}

// NewMQTTSink publishes on Topic(node) through an existing client.
func NewMQTTSink(c mqtt.Client, node string) *MQTTSink {
	return &MQTTSink{client: c, topic: Topic(node), qos: 1, timeout: 5 * time.Second}
}

// Name identifies the sink in logs.
func (m *MQTTSink) Name() string { return "mqtt" }

// Publish sends each reading as its own message.
func (m *MQTTSink) Publish(ctx context.Context, readings []Reading) error {
	for _, r := range readings {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", r.NodeID, err)
		}
		token := m.client.Publish(m.topic, m.qos, false, payload)
		if !token.WaitTimeout(m.timeout) {
			return fmt.Errorf("publish %s: timed out", r.NodeID)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", r.NodeID, err)
		}
	}
	return nil
}

// Ping fails while the broker connection is down.
func (m *MQTTSink) Ping(ctx context.Context) error {
	if !m.client.IsConnectionOpen() {
		return errors.New("mqtt: connection not open")
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}
