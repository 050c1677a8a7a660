// Package consensus implements the fuel surcharge oracle and market price
// validation on top of the configured price providers.
//
// The surcharge policy, in order: a weighted average over enabled consensus
// providers when more than one is configured; otherwise the enabled provider
// with the lowest priority; otherwise a bounded synthetic rate. Provider
// failures are logged and counted, never returned.
package consensus

import (
	"context"
	"errors"

	"freight/internal/core/domain/model/oracle"
)

// ErrProviderUnavailable is returned by a PriceProvider that cannot quote.
var ErrProviderUnavailable = errors.New("price provider unavailable")

// PriceProvider quotes a fuel surcharge rate for a region.
type PriceProvider interface {
	Name() string
	FetchCurrentRate(ctx context.Context, region string) (float64, error)
	IsAvailable(ctx context.Context) bool
	Weight() float64
}

// ProviderFactory builds the adapter that serves a configured provider.
type ProviderFactory interface {
	Build(p *oracle.Provider) (PriceProvider, error)
}

// ProviderLister reads the configured providers.
type ProviderLister interface {
	List(ctx context.Context) ([]*oracle.Provider, error)
}

// ProviderListerFunc adapts a function to ProviderLister.
type ProviderListerFunc func(ctx context.Context) ([]*oracle.Provider, error)

func (f ProviderListerFunc) List(ctx context.Context) ([]*oracle.Provider, error) { return f(ctx) }
