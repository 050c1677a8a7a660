package ports

import (
	"context"
)

// UnitOfWorkFactory creates a UnitOfWork per command.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UnitOfWork is a business transaction boundary. Repositories obtained
// after Begin run inside the transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error

	// Rollback is a no-op error after Commit, so it is safe to defer.
	Rollback(ctx context.Context) error

	MasterOrderRepository() MasterOrderRepository
	ProviderRepository() ProviderRepository
}
