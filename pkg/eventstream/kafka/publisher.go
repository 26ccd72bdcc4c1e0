// Package kafka provides a Kafka-backed eventstream publisher built on
// segmentio/kafka-go. Events are keyed by area so per-area ordering is
// preserved across partitions.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/loomworks/engram/pkg/eventstream"
)

// DefaultTopic is the topic decision events are published to when none is
// configured.
const DefaultTopic = "engram.decisions"

// Publisher publishes decision events to a Kafka topic.
type Publisher struct {
	writer *kafkago.Writer
}

// NewPublisher creates a Kafka publisher writing to the given brokers and topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafkago.Hash{},
	}

	return &Publisher{writer: writer}, nil
}

// PublishDecision serializes the event as JSON and writes it to the topic.
func (p *Publisher) PublishDecision(ctx context.Context, event *eventstream.DecisionRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilDecisionEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling decision event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Decision.Area),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing decision event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
