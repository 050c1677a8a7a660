// Package queries contains the read side of the brokerage: progress
// snapshots, recommendations, oracle lookups and provider listings.
// Queries never mutate state and never take locks.
package queries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/pkg/guard"
)

var ErrGetProgressQueryIsNotConstructed = errors.New(
	"GetProgressQuery must be created via NewGetProgressQuery constructor",
)

// MasterOrderReader loads an aggregate without locking it.
type MasterOrderReader interface {
	Get(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error)
}

// GetProgressQuery asks for the current progress of one master order.
//
// Example:
//
//	query, err := NewGetProgressQuery(orderID)
//	if err != nil {
//	    return err
//	}
//	snapshot, err := handler.Handle(ctx, query)
type GetProgressQuery struct {
	masterOrderID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetProgressQuery(masterOrderID kernel.UUID) (GetProgressQuery, error) {
	if err := masterOrderID.Validate(); err != nil {
		return GetProgressQuery{}, err
	}
	return GetProgressQuery{masterOrderID: masterOrderID, guard: guard.NewConstructorGuard()}, nil
}

func (q GetProgressQuery) Validate() error {
	return q.guard.Validate(ErrGetProgressQueryIsNotConstructed)
}

func (q GetProgressQuery) MasterOrderID() kernel.UUID { return q.masterOrderID }

// GetProgressQueryHandler derives a fresh snapshot from the stored aggregate.
type GetProgressQueryHandler struct {
	reader MasterOrderReader
	now    func() time.Time
}

func NewGetProgressQueryHandler(reader MasterOrderReader, now func() time.Time) GetProgressQueryHandler {
	if now == nil {
		now = time.Now
	}
	return GetProgressQueryHandler{reader: reader, now: now}
}

// Handle returns the snapshot tagged with the progress.queried trigger.
// A snapshot whose shares do not add up fails with order.ErrInvariantViolation.
func (h GetProgressQueryHandler) Handle(ctx context.Context, query GetProgressQuery) (order.ProgressSnapshot, error) {
	if err := query.Validate(); err != nil {
		return order.ProgressSnapshot{}, err
	}

	mo, err := h.reader.Get(ctx, query.MasterOrderID())
	if err != nil {
		return order.ProgressSnapshot{}, err
	}

	snap, err := mo.Progress(order.EventProgressQueried, h.now())
	if err != nil {
		return order.ProgressSnapshot{}, fmt.Errorf("progress of %s: %w", mo.ID(), err)
	}
	return snap, nil
}

// Progress is Handle for callers that only have an order id, such as the
// broadcaster replaying state to a new subscriber.
func (h GetProgressQueryHandler) Progress(ctx context.Context, masterOrderID kernel.UUID) (order.ProgressSnapshot, error) {
	query, err := NewGetProgressQuery(masterOrderID)
	if err != nil {
		return order.ProgressSnapshot{}, err
	}
	return h.Handle(ctx, query)
}
