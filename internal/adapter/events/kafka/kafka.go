// Package kafka publishes URL lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/vadimbarashkov/tinylink/internal/entity"
)

const headerEventType = "event_type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

// NewPublisher returns a Publisher writing asynchronously to topic. Delivery
// failures are reported to logger, never to the caller.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to deliver url events",
					slog.String("topic", topic),
					slog.Int("count", len(messages)),
					slog.Any("err", err),
				)
			}
		},
	}

	return &Publisher{writer: w}
}

func (p *Publisher) Publish(ctx context.Context, event entity.Event) error {
	const op = "adapter.events.kafka.Publisher.Publish"

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: failed to encode event: %w", op, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.URLID.String()),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	const op = "adapter.events.kafka.Publisher.Close"

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
