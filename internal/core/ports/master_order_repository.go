// Package ports defines the contracts between the freight core and its
// infrastructure: repositories, the unit of work and outbound collaborators.
package ports

import (
	"context"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
)

// MasterOrderRepository persists master order aggregates together with
// their partial orders and bids.
type MasterOrderRepository interface {
	// Add persists a new aggregate.
	Add(ctx context.Context, aggregate *order.MasterOrder) error

	// Update persists a mutated aggregate. The stored version must be the one
	// the aggregate was loaded at, otherwise errs.ErrVersionIsInvalid is returned.
	// A successful update also announces the change on the progress channel
	// once the surrounding transaction commits.
	Update(ctx context.Context, aggregate *order.MasterOrder) error

	// Get loads an aggregate without locking it.
	// Returns order.ErrMasterOrderNotFound when it does not exist.
	Get(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error)

	// GetForUpdate loads an aggregate and holds a row lock on it until the
	// transaction ends. Concurrent mutations of one order serialize here.
	GetForUpdate(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error)
}

// RoutePrice is an accepted bid amount together with the route it was placed on.
type RoutePrice struct {
	Route  kernel.Route
	Amount float64
}

// RoutePriceHistory reads accepted bid prices for market validation.
type RoutePriceHistory interface {
	// AcceptedRoutePrices returns prices of bids that still hold capacity on
	// routes whose endpoints lie roughly within radiusKm of route's endpoints.
	// Callers apply the exact distance filter.
	AcceptedRoutePrices(ctx context.Context, route kernel.Route, radiusKm float64) ([]RoutePrice, error)
}
