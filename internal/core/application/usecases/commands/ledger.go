package commands

import (
	"context"
	"errors"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/ports"
	"freight/internal/pkg/keylock"

	"go.uber.org/zap"
)

// Ledger bundles what every master order command needs besides its unit of
// work: the per-order lock, post-commit collaborators, a logger and a clock.
type Ledger struct {
	locks    *keylock.KeyedMutex
	events   ports.EventPublisher
	progress ports.ProgressPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// LedgerOption customizes a Ledger.
type LedgerOption func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// NewLedger wires the shared ledger dependencies. Handlers built from the
// same Ledger serialize on the same per-order locks.
func NewLedger(
	events ports.EventPublisher,
	progress ports.ProgressPublisher,
	logger *zap.Logger,
	opts ...LedgerOption,
) *Ledger {
	l := &Ledger{
		locks:    keylock.New(),
		events:   events,
		progress: progress,
		logger:   logger.Named("ledger"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// lock serializes mutations of one master order inside this process.
// The row lock taken by GetForUpdate covers other processes.
func (l *Ledger) lock(id kernel.UUID) func() {
	return l.locks.Lock(id.String())
}

// snapshot computes the post-mutation progress before commit so an
// invariant violation aborts the transaction.
func (l *Ledger) snapshot(mo *order.MasterOrder, trigger string) (order.ProgressSnapshot, error) {
	snap, err := mo.Progress(trigger, l.now())
	if err != nil {
		l.defect(mo.ID(), err)
		return order.ProgressSnapshot{}, err
	}
	return snap, nil
}

// committed runs the side effects of a committed mutation. Failures here
// are logged; the mutation itself already happened.
func (l *Ledger) committed(ctx context.Context, events []order.DomainEvent, snap order.ProgressSnapshot) {
	if len(events) > 0 {
		if err := l.events.Publish(ctx, events...); err != nil {
			l.logger.Warn("publish domain events",
				zap.Stringer("orderId", snap.OrderID),
				zap.Int("count", len(events)),
				zap.Error(err))
		}
	}
	l.progress.Publish(snap)
}

// defect logs invariant violations, which point at a bug rather than bad input.
func (l *Ledger) defect(id kernel.UUID, err error) {
	if errors.Is(err, order.ErrInvariantViolation) {
		l.logger.Error("ledger invariant violated", zap.Stringer("orderId", id), zap.Error(err))
	}
}
