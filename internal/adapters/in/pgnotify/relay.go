// Package pgnotify relays master order progress between instances through
// PostgreSQL LISTEN/NOTIFY.
package pgnotify

import (
	"context"
	"fmt"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/ports"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	defaultPingInterval  = 90 * time.Second
	defaultReadTimeout   = 5 * time.Second
)

// Listener is the subset of *pq.Listener the relay uses.
type Listener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

type ProgressReader interface {
	Progress(ctx context.Context, masterOrderID kernel.UUID) (order.ProgressSnapshot, error)
}

// NewListener opens a reconnecting pq listener on dsn.
func NewListener(dsn string, logger *zap.Logger) Listener {
	logger = logger.Named("pgnotify")
	return pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			logger.Info("listener connected")
		case pq.ListenerEventDisconnected:
			logger.Warn("listener disconnected", zap.Error(err))
		case pq.ListenerEventReconnected:
			logger.Info("listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("listener connection attempt failed", zap.Error(err))
		}
	})
}

// Relay turns notifications carrying a master order id into fresh progress
// snapshots on the local publisher. Duplicate deliveries are harmless
// because the publisher drops versions it has already seen.
type Relay struct {
	listener     Listener
	channel      string
	reader       ProgressReader
	publisher    ports.ProgressPublisher
	logger       *zap.Logger
	pingInterval time.Duration
	readTimeout  time.Duration
}

type Option func(*Relay)

func WithPingInterval(d time.Duration) Option {
	return func(r *Relay) { r.pingInterval = d }
}

func NewRelay(
	listener Listener,
	channel string,
	reader ProgressReader,
	publisher ports.ProgressPublisher,
	logger *zap.Logger,
	opts ...Option,
) *Relay {
	r := &Relay{
		listener:     listener,
		channel:      channel,
		reader:       reader,
		publisher:    publisher,
		logger:       logger.Named("pgnotify").With(zap.String("channel", channel)),
		pingInterval: defaultPingInterval,
		readTimeout:  defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run listens until ctx is done. The listener is closed on return.
func (r *Relay) Run(ctx context.Context) error {
	defer func() {
		if err := r.listener.Close(); err != nil {
			r.logger.Warn("close listener", zap.Error(err))
		}
	}()

	if err := r.listener.Listen(r.channel); err != nil {
		return fmt.Errorf("listen on %s: %w", r.channel, err)
	}
	r.logger.Info("relaying progress notifications")

	ping := time.NewTicker(r.pingInterval)
	defer ping.Stop()

	notifications := r.listener.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return nil

		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			if n == nil {
				// pq sends nil after a reconnect; anything sent meanwhile is lost.
				r.logger.Warn("notifications may have been missed during reconnect")
				continue
			}
			r.relay(ctx, n.Extra)

		case <-ping.C:
			if err := r.listener.Ping(); err != nil {
				r.logger.Warn("ping listener", zap.Error(err))
			}
		}
	}
}

func (r *Relay) relay(ctx context.Context, payload string) {
	orderID, err := kernel.UUIDFromString(payload)
	if err != nil {
		r.logger.Warn("ignore malformed notification", zap.String("payload", payload), zap.Error(err))
		return
	}

	readCtx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	snap, err := r.reader.Progress(readCtx, orderID)
	if err != nil {
		r.logger.Warn("reload progress", zap.Stringer("orderId", orderID), zap.Error(err))
		return
	}
	r.publisher.Publish(snap)
}
