// Package rabbitmq ships administrative audit records to a durable queue.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"freight/internal/core/ports"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher is the part of amqp.Channel the recorder uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AuditRecorder implements ports.AuditRecorder on a single channel.
type AuditRecorder struct {
	mu     sync.Mutex
	ch     Publisher
	conn   *amqp.Connection
	queue  string
	logger *zap.Logger
}

var _ ports.AuditRecorder = (*AuditRecorder)(nil)

// NewAuditRecorder dials url and declares queue as durable.
func NewAuditRecorder(url, queue string, logger *zap.Logger) (*AuditRecorder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open channel: %w", err), conn.Close())
	}

	if _, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return nil, errors.Join(fmt.Errorf("declare queue %s: %w", queue, err), ch.Close(), conn.Close())
	}

	r := NewAuditRecorderWithPublisher(ch, queue, logger)
	r.conn = conn
	return r, nil
}

// NewAuditRecorderWithPublisher allows injecting a test channel.
func NewAuditRecorderWithPublisher(ch Publisher, queue string, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{ch: ch, queue: queue, logger: logger.Named("audit")}
}

func (r *AuditRecorder) Record(ctx context.Context, rec ports.AuditRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.ch.PublishWithContext(ctx,
		"",      // default exchange
		r.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    rec.At,
			Type:         rec.Action,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish audit record %s: %w", rec.Action, err)
	}
	return nil
}

func (r *AuditRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.ch.Close()
	if r.conn != nil {
		err = errors.Join(err, r.conn.Close())
	}
	return err
}

// LogRecorder stands in when no broker URL is configured.
type LogRecorder struct {
	logger *zap.Logger
}

var _ ports.AuditRecorder = LogRecorder{}

func NewLogRecorder(logger *zap.Logger) LogRecorder {
	return LogRecorder{logger: logger.Named("audit")}
}

func (r LogRecorder) Record(_ context.Context, rec ports.AuditRecord) error {
	r.logger.Info("audit record",
		zap.String("action", rec.Action),
		zap.Stringer("resourceId", rec.ResourceID),
		zap.String("actorId", rec.ActorID),
		zap.String("actorRole", rec.ActorRole),
		zap.Any("details", rec.Details),
		zap.Time("at", rec.At),
	)
	return nil
}
