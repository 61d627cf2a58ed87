package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes readings to a topic keyed by node id, so each node's
// readings stay ordered within a partition.
type KafkaSink struct {
	w messageWriter
}

// NewKafkaSink creates a writer for topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

// Name identifies the sink in logs.
func (k *KafkaSink) Name() string { return "kafka" }

// Publish writes all readings in one batch.
func (k *KafkaSink) Publish(ctx context.Context, readings []Reading) error {
	msgs := make([]kafka.Message, 0, len(readings))
	for _, r := range readings {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", r.NodeID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(r.NodeID), Value: b, Time: r.Timestamp})
	}
	if err := k.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	return k.w.Close()
}
