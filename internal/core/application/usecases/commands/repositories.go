// Package commands contains the operations that change ledger or oracle state.
// Every command follows the same pattern: validate, open a unit of work,
// mutate an aggregate, commit, then run side effects.
package commands

import (
	"context"

	"freight/internal/core/ports"
)

// Unit of work views narrowed to what each handler touches.
type (
	// TxManager handles the transaction lifecycle.
	TxManager interface {
		Begin(ctx context.Context) error
		Commit(ctx context.Context) error
		Rollback(ctx context.Context) error
	}

	// MasterOrderRepoFactory provides the master order repository within a transaction.
	MasterOrderRepoFactory interface {
		MasterOrderRepository() ports.MasterOrderRepository
	}

	// ProviderRepoFactory provides the provider repository within a transaction.
	ProviderRepoFactory interface {
		ProviderRepository() ports.ProviderRepository
	}

	// MasterOrderUoW manages transactions for ledger commands.
	//
	// Example:
	//   uow := factory.Create()
	//   if err := uow.Begin(ctx); err != nil {
	//       return err
	//   }
	//   defer uow.Rollback(ctx)
	//
	//   mo, err := uow.MasterOrderRepository().GetForUpdate(ctx, id)
	//   // ... mutate mo, Update it
	//
	//   err = uow.Commit(ctx)
	MasterOrderUoW interface {
		TxManager
		MasterOrderRepoFactory
	}

	// MasterOrderUoWFactory creates ledger units of work.
	MasterOrderUoWFactory interface {
		Create() MasterOrderUoW
	}

	// ProviderUoW manages transactions for oracle administration.
	ProviderUoW interface {
		TxManager
		ProviderRepoFactory
	}

	// ProviderUoWFactory creates provider units of work.
	ProviderUoWFactory interface {
		Create() ProviderUoW
	}
)

// ProviderRegistry is the oracle's view of configured providers.
type ProviderRegistry interface {
	// Reload rebuilds the registry from storage and drops cached surcharges.
	Reload(ctx context.Context) error
}
