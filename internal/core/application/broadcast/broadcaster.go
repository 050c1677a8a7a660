// Package broadcast pushes progress snapshots to clients watching an order.
//
// Each order is a topic with its own lock: replaying state to a new
// subscriber and fanning out a published snapshot never interleave for one
// order, so all subscribers of an order see its snapshots in production
// order. Delivery is a non-blocking enqueue into the session's buffer.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/pkg/errs"
	"freight/internal/pkg/keylock"
	"freight/internal/pkg/metrics"

	"go.uber.org/zap"
)

// DefaultBufferSize is the outbound queue length of a session.
const DefaultBufferSize = 32

// ErrSessionClosed is returned for events on a disconnected session.
var ErrSessionClosed = errors.New("session is closed")

// ProgressReader reads the current snapshot of an order from the ledger.
type ProgressReader interface {
	Progress(ctx context.Context, masterOrderID kernel.UUID) (order.ProgressSnapshot, error)
}

// ProgressReaderFunc adapts a function to ProgressReader.
type ProgressReaderFunc func(ctx context.Context, masterOrderID kernel.UUID) (order.ProgressSnapshot, error)

func (f ProgressReaderFunc) Progress(ctx context.Context, id kernel.UUID) (order.ProgressSnapshot, error) {
	return f(ctx, id)
}

// Broadcaster owns the session and subscription registries.
type Broadcaster struct {
	reader     ProgressReader
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
	bufferSize int

	topics *keylock.KeyedMutex

	mu          sync.RWMutex
	sessions    map[kernel.UUID]*Session
	subscribers map[kernel.UUID]map[kernel.UUID]*Session

	lastMu     sync.RWMutex
	last       map[kernel.UUID]order.ProgressSnapshot
	lastUpdate time.Time
}

type Option func(*Broadcaster)

func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) { b.now = now }
}

func WithBufferSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

func New(reader ProgressReader, m *metrics.Metrics, logger *zap.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		reader:      reader,
		metrics:     m,
		logger:      logger.Named("broadcaster"),
		now:         time.Now,
		bufferSize:  DefaultBufferSize,
		topics:      keylock.New(),
		sessions:    make(map[kernel.UUID]*Session),
		subscribers: make(map[kernel.UUID]map[kernel.UUID]*Session),
		last:        make(map[kernel.UUID]order.ProgressSnapshot),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect registers a session and greets it with the connection state.
func (b *Broadcaster) Connect(identity Identity) (*Session, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	s := newSession(identity, b.bufferSize, b.now())
	b.mu.Lock()
	b.sessions[s.id] = s
	b.mu.Unlock()
	b.metrics.Sessions.Inc()

	s.enqueue(ConnectionStateMessage{Type: TypeConnectionState, Data: b.connectionState()})
	b.logger.Debug("session connected",
		zap.Stringer("sessionId", s.id),
		zap.String("userId", identity.UserID),
		zap.String("clientType", identity.ClientType),
	)
	return s, nil
}

// HandleEvent applies one decoded client event to session.
func (b *Broadcaster) HandleEvent(ctx context.Context, s *Session, event ClientEvent) error {
	switch e := event.(type) {
	case SubscribeEvent:
		return b.subscribe(ctx, s, e.OrderID)
	case UnsubscribeEvent:
		return b.unsubscribe(s, e.OrderID)
	default:
		return ErrUnknownEventType
	}
}

// subscribe registers s and replays the newest known snapshot to it while
// holding the topic, so no publish can slip in between.
func (b *Broadcaster) subscribe(ctx context.Context, s *Session, orderID kernel.UUID) error {
	unlock := b.topics.Lock(orderID.String())
	defer unlock()

	if err := b.register(s, orderID); err != nil {
		return err
	}

	cached, hasCached := b.LastSnapshot(orderID)
	fresh, err := b.reader.Progress(ctx, orderID)
	switch {
	case err == nil && (!hasCached || fresh.IsNewerThan(cached)):
		b.storeLast(fresh)
		b.fanOut(fresh)
		return nil
	case hasCached:
		if err != nil {
			b.logger.Warn("read progress for replay", zap.Stringer("orderId", orderID), zap.Error(err))
		}
		b.deliver(s, progressUpdate(cached, b.now()))
		return nil
	}

	b.deregister(s, orderID)
	if errors.Is(err, errs.ErrObjectNotFound) {
		s.enqueue(errorMessage("order %s not found", orderID))
	} else {
		s.enqueue(errorMessage("progress of order %s is unavailable", orderID))
	}
	return err
}

func (b *Broadcaster) unsubscribe(s *Session, orderID kernel.UUID) error {
	unlock := b.topics.Lock(orderID.String())
	defer unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[s.id]; !ok {
		return ErrSessionClosed
	}
	b.removeLocked(s, orderID)
	return nil
}

func (b *Broadcaster) register(s *Session, orderID kernel.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sessions[s.id]; !ok {
		return ErrSessionClosed
	}
	subs, ok := b.subscribers[orderID]
	if !ok {
		subs = make(map[kernel.UUID]*Session)
		b.subscribers[orderID] = subs
	}
	subs[s.id] = s
	s.orders[orderID] = struct{}{}
	return nil
}

func (b *Broadcaster) deregister(s *Session, orderID kernel.UUID) {
	b.mu.Lock()
	b.removeLocked(s, orderID)
	b.mu.Unlock()
}

func (b *Broadcaster) removeLocked(s *Session, orderID kernel.UUID) {
	delete(s.orders, orderID)
	if subs, ok := b.subscribers[orderID]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(b.subscribers, orderID)
		}
	}
}

// NotifyError sends an error message to s alone.
func (b *Broadcaster) NotifyError(s *Session, message string) {
	b.deliver(s, errorMessage("%s", message))
}

// Disconnect removes s from every order and from the session registry.
// Calling it again is a no-op.
func (b *Broadcaster) Disconnect(s *Session) {
	b.mu.Lock()
	if _, ok := b.sessions[s.id]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.sessions, s.id)
	for orderID := range s.orders {
		b.removeLocked(s, orderID)
	}
	b.mu.Unlock()

	s.close()
	b.metrics.Sessions.Dec()
	b.logger.Debug("session disconnected", zap.Stringer("sessionId", s.id), zap.String("userId", s.identity.UserID))
}

// Publish caches snap and delivers it to the order's subscribers. Snapshots
// not newer than the last known one are dropped.
func (b *Broadcaster) Publish(snap order.ProgressSnapshot) {
	unlock := b.topics.Lock(snap.OrderID.String())
	defer unlock()

	if last, ok := b.LastSnapshot(snap.OrderID); ok && !snap.IsNewerThan(last) {
		b.logger.Debug("drop stale snapshot",
			zap.Stringer("orderId", snap.OrderID),
			zap.Int64("version", snap.Version),
			zap.Int64("lastVersion", last.Version),
		)
		return
	}
	b.storeLast(snap)
	b.fanOut(snap)
}

// fanOut must run under the order's topic lock.
func (b *Broadcaster) fanOut(snap order.ProgressSnapshot) {
	b.mu.RLock()
	targets := make([]*Session, 0, len(b.subscribers[snap.OrderID]))
	for _, s := range b.subscribers[snap.OrderID] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	msg := progressUpdate(snap, b.now())
	for _, s := range targets {
		b.deliver(s, msg)
	}
}

func (b *Broadcaster) deliver(s *Session, msg ServerMessage) {
	err := s.enqueue(msg)
	switch {
	case err == nil:
		b.metrics.Deliveries.Inc()
	case errors.Is(err, ErrSessionClosed):
		b.logger.Debug("skip closed session", zap.Stringer("sessionId", s.id))
	default:
		b.metrics.DroppedDelivery.Inc()
		b.logger.Warn("drop message for session",
			zap.Stringer("sessionId", s.id),
			zap.String("userId", s.identity.UserID),
			zap.String("type", msg.MessageType()),
			zap.Error(err),
		)
	}
}

func (b *Broadcaster) storeLast(snap order.ProgressSnapshot) {
	b.lastMu.Lock()
	b.last[snap.OrderID] = snap
	b.lastUpdate = b.now()
	b.lastMu.Unlock()
}

// LastSnapshot returns the last snapshot delivered for the order.
func (b *Broadcaster) LastSnapshot(orderID kernel.UUID) (order.ProgressSnapshot, bool) {
	b.lastMu.RLock()
	defer b.lastMu.RUnlock()
	snap, ok := b.last[orderID]
	return snap, ok
}

// ConnectedCount is the number of sessions subscribed to the order.
func (b *Broadcaster) ConnectedCount(orderID kernel.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[orderID])
}

// IsSubscribed reports whether any session of userID watches the order.
func (b *Broadcaster) IsSubscribed(userID string, orderID kernel.UUID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subscribers[orderID] {
		if s.identity.UserID == userID {
			return true
		}
	}
	return false
}

func (b *Broadcaster) connectionState() ConnectionState {
	b.mu.RLock()
	users := make(map[string]struct{}, len(b.sessions))
	for _, s := range b.sessions {
		users[s.identity.UserID] = struct{}{}
	}
	clients := len(b.sessions)
	b.mu.RUnlock()

	b.lastMu.RLock()
	lastUpdate := b.lastUpdate
	b.lastMu.RUnlock()

	return ConnectionState{ConnectedClients: clients, ConnectedUsers: len(users), LastUpdate: lastUpdate}
}

// ReapUnhealthy disconnects every session marked unhealthy and returns how
// many were removed.
func (b *Broadcaster) ReapUnhealthy() int {
	b.mu.RLock()
	var dead []*Session
	for _, s := range b.sessions {
		if !s.Healthy() {
			dead = append(dead, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range dead {
		b.Disconnect(s)
	}
	if len(dead) > 0 {
		b.logger.Info("reaped unhealthy sessions", zap.Int("count", len(dead)))
	}
	return len(dead)
}

// SessionCount is the number of live sessions.
func (b *Broadcaster) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// Sessions returns the live sessions in no particular order.
func (b *Broadcaster) Sessions() []*Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s)
	}
	return out
}
