package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
)

// messageWriter is the subset of kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces admin change events to a Kafka topic.
type Publisher struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the change-event topic.
func NewPublisher(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, metrics: metrics, logger: logger}
}

// Publish writes one change event. Events for the same record share a key so
// they stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, event domain.ChangeEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.ChangeEvents.WithLabelValues("error").Inc()
		return fmt.Errorf("publish change event %s: %w", event.Key(), err)
	}
	p.metrics.ChangeEvents.WithLabelValues("success").Inc()
	p.logger.Debug("change event published", "entity", event.Entity, "op", event.Op, "id", event.ID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a ChangeEvent into a Kafka message.
func serializeToMessage(event domain.ChangeEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize change event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "entity", Value: []byte(event.Entity)},
			{Key: "op", Value: []byte(event.Op)},
			{Key: "occurred_at", Value: []byte(event.At.Format(time.RFC3339))},
		},
	}, nil
}
