package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/pkg/errs"
)

// Identity is the caller identity established at handshake.
type Identity struct {
	UserID     string
	Role       string
	ClientType string
}

// Validate requires every identity field.
func (i Identity) Validate() error {
	switch {
	case i.UserID == "":
		return errs.NewValueIsRequiredError("userId")
	case i.Role == "":
		return errs.NewValueIsRequiredError("userRole")
	case i.ClientType == "":
		return errs.NewValueIsRequiredError("clientType")
	}
	return nil
}

// Session is one client connection. The transport drains Outbound and
// stops when Done is closed.
type Session struct {
	id          kernel.UUID
	identity    Identity
	connectedAt time.Time

	outbound  chan ServerMessage
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	unhealthy atomic.Bool

	// orders is guarded by the broadcaster registry lock.
	orders map[kernel.UUID]struct{}
}

func newSession(identity Identity, bufferSize int, at time.Time) *Session {
	return &Session{
		id:          kernel.NewUUID(),
		identity:    identity,
		connectedAt: at,
		outbound:    make(chan ServerMessage, bufferSize),
		done:        make(chan struct{}),
		orders:      make(map[kernel.UUID]struct{}),
	}
}

func (s *Session) ID() kernel.UUID                { return s.id }
func (s *Session) Identity() Identity             { return s.identity }
func (s *Session) ConnectedAt() time.Time         { return s.connectedAt }
func (s *Session) Outbound() <-chan ServerMessage { return s.outbound }
func (s *Session) Done() <-chan struct{}          { return s.done }
func (s *Session) Healthy() bool                  { return !s.unhealthy.Load() }
func (s *Session) MarkUnhealthy()                 { s.unhealthy.Store(true) }

var errOutboundFull = errors.New("outbound buffer is full")

// enqueue never blocks. A full buffer marks the session unhealthy; a closed
// session returns ErrSessionClosed.
func (s *Session) enqueue(msg ServerMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.outbound <- msg:
		return nil
	default:
		s.unhealthy.Store(true)
		return errOutboundFull
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
