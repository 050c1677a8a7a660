package ports

import (
	"context"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
)

// ProviderRepository persists oracle price providers.
type ProviderRepository interface {
	Add(ctx context.Context, provider *oracle.Provider) error
	Update(ctx context.Context, provider *oracle.Provider) error
	Delete(ctx context.Context, id kernel.UUID) error

	// Get returns errs.ErrObjectNotFound when the provider does not exist.
	Get(ctx context.Context, id kernel.UUID) (*oracle.Provider, error)

	// List returns every provider ordered by priority, then name.
	List(ctx context.Context) ([]*oracle.Provider, error)
}
