// Package kafka publishes committed domain events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"freight/internal/core/domain/model/order"
	"freight/internal/core/ports"

	skafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const headerEventType = "event-type"

// Writer is the part of kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Envelope is the message value. Payload is the event itself.
type Envelope struct {
	Type          string            `json:"type"`
	MasterOrderID string            `json:"masterOrderId"`
	OccurredAt    time.Time         `json:"occurredAt"`
	Payload       order.DomainEvent `json:"payload"`
}

// EventPublisher writes one message per event, keyed by master order id so
// that one order's events stay in one partition and in order.
type EventPublisher struct {
	writer Writer
	logger *zap.Logger
}

var _ ports.EventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(brokers []string, topic string, logger *zap.Logger) *EventPublisher {
	w := &skafka.Writer{
		Addr:                   skafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &skafka.Hash{},
		RequiredAcks:           skafka.RequireOne,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return NewEventPublisherWithWriter(w, logger)
}

// NewEventPublisherWithWriter allows injecting a test writer.
func NewEventPublisherWithWriter(w Writer, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{writer: w, logger: logger.Named("kafka")}
}

func (p *EventPublisher) Publish(ctx context.Context, events ...order.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]skafka.Message, 0, len(events))
	for _, e := range events {
		msg, err := message(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("kafka write failed", zap.Int("events", len(msgs)), zap.Error(err))
		return err
	}
	return nil
}

func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

func message(e order.DomainEvent) (skafka.Message, error) {
	key := e.MasterOrderID().String()
	value, err := json.Marshal(Envelope{
		Type:          e.EventName(),
		MasterOrderID: key,
		OccurredAt:    e.OccurredAt(),
		Payload:       e,
	})
	if err != nil {
		return skafka.Message{}, fmt.Errorf("marshal %s: %w", e.EventName(), err)
	}

	return skafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: []skafka.Header{{Key: headerEventType, Value: []byte(e.EventName())}},
		Time:    e.OccurredAt(),
	}, nil
}

// LogPublisher stands in when no brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = LogPublisher{}

func NewLogPublisher(logger *zap.Logger) LogPublisher {
	return LogPublisher{logger: logger.Named("events")}
}

func (p LogPublisher) Publish(_ context.Context, events ...order.DomainEvent) error {
	for _, e := range events {
		p.logger.Info("domain event",
			zap.String("type", e.EventName()),
			zap.Stringer("masterOrderId", e.MasterOrderID()),
			zap.Time("occurredAt", e.OccurredAt()),
		)
	}
	return nil
}
