package commands

import (
	"context"

	"freight/internal/core/domain/model/order"
)

// CreateMasterOrderCommandHandler persists a new master order and announces it.
type CreateMasterOrderCommandHandler struct {
	uowFactory MasterOrderUoWFactory
	ledger     *Ledger
}

func NewCreateMasterOrderCommandHandler(uowFactory MasterOrderUoWFactory, ledger *Ledger) CreateMasterOrderCommandHandler {
	return CreateMasterOrderCommandHandler{uowFactory: uowFactory, ledger: ledger}
}

// Handle returns the initial snapshot of the created order.
func (h CreateMasterOrderCommandHandler) Handle(ctx context.Context, cmd CreateMasterOrderCommand) (order.ProgressSnapshot, error) {
	if err := cmd.Validate(); err != nil {
		return order.ProgressSnapshot{}, err
	}

	mo, err := order.NewMasterOrder(cmd.OrderID(), cmd.Params(), h.ledger.now())
	if err != nil {
		return order.ProgressSnapshot{}, err
	}

	snap, err := h.ledger.snapshot(mo, order.EventMasterOrderCreated)
	if err != nil {
		return order.ProgressSnapshot{}, err
	}

	uow := h.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return order.ProgressSnapshot{}, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err = uow.MasterOrderRepository().Add(ctx, mo); err != nil {
		return order.ProgressSnapshot{}, err
	}

	if err = uow.Commit(ctx); err != nil {
		return order.ProgressSnapshot{}, err
	}

	h.ledger.committed(ctx, mo.PullEvents(), snap)
	return snap, nil
}
