package commands

import (
	"context"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
)

// mutateMasterOrder runs one locked load-mutate-store cycle and publishes
// the outcome after commit.
func mutateMasterOrder(
	ctx context.Context,
	uowFactory MasterOrderUoWFactory,
	ledger *Ledger,
	id kernel.UUID,
	trigger string,
	mutate func(*order.MasterOrder) error,
) (order.ProgressSnapshot, error) {
	unlock := ledger.lock(id)
	defer unlock()

	uow := uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return order.ProgressSnapshot{}, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	repo := uow.MasterOrderRepository()
	mo, err := repo.GetForUpdate(ctx, id)
	if err != nil {
		return order.ProgressSnapshot{}, err
	}

	if err = mutate(mo); err != nil {
		ledger.defect(id, err)
		return order.ProgressSnapshot{}, err
	}

	snap, err := ledger.snapshot(mo, trigger)
	if err != nil {
		return order.ProgressSnapshot{}, err
	}

	if err = repo.Update(ctx, mo); err != nil {
		return order.ProgressSnapshot{}, err
	}

	if err = uow.Commit(ctx); err != nil {
		return order.ProgressSnapshot{}, err
	}

	ledger.committed(ctx, mo.PullEvents(), snap)
	return snap, nil
}
