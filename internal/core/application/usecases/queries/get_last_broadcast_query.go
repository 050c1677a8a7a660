package queries

import (
	"context"
	"errors"
	"fmt"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/pkg/errs"
	"freight/internal/pkg/guard"
)

var (
	ErrGetLastBroadcastQueryIsNotConstructed = errors.New(
		"GetLastBroadcastQuery must be created via NewGetLastBroadcastQuery constructor",
	)

	// ErrNoBroadcastSnapshot means nothing has been broadcast for the order
	// since this process started.
	ErrNoBroadcastSnapshot = errors.New("no snapshot has been broadcast for the order")
)

// BroadcastCache exposes the last snapshot the broadcaster delivered.
type BroadcastCache interface {
	LastSnapshot(masterOrderID kernel.UUID) (order.ProgressSnapshot, bool)
}

type GetLastBroadcastQuery struct {
	masterOrderID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetLastBroadcastQuery(masterOrderID kernel.UUID) (GetLastBroadcastQuery, error) {
	if err := masterOrderID.Validate(); err != nil {
		return GetLastBroadcastQuery{}, err
	}
	return GetLastBroadcastQuery{masterOrderID: masterOrderID, guard: guard.NewConstructorGuard()}, nil
}

func (q GetLastBroadcastQuery) Validate() error {
	return q.guard.Validate(ErrGetLastBroadcastQueryIsNotConstructed)
}

func (q GetLastBroadcastQuery) MasterOrderID() kernel.UUID { return q.masterOrderID }

// GetLastBroadcastQueryHandler reads the broadcaster cache. The result may
// lag behind GetProgress when no change has been broadcast since a restart.
type GetLastBroadcastQueryHandler struct {
	cache BroadcastCache
}

func NewGetLastBroadcastQueryHandler(cache BroadcastCache) GetLastBroadcastQueryHandler {
	return GetLastBroadcastQueryHandler{cache: cache}
}

func (h GetLastBroadcastQueryHandler) Handle(_ context.Context, query GetLastBroadcastQuery) (order.ProgressSnapshot, error) {
	if err := query.Validate(); err != nil {
		return order.ProgressSnapshot{}, err
	}

	snap, ok := h.cache.LastSnapshot(query.MasterOrderID())
	if !ok {
		return order.ProgressSnapshot{}, fmt.Errorf("%w: %w",
			ErrNoBroadcastSnapshot, errs.NewObjectNotFoundError("masterOrderID", query.MasterOrderID()))
	}
	return snap, nil
}
