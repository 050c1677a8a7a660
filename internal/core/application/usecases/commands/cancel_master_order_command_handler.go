package commands

import (
	"context"

	"freight/internal/core/domain/model/order"
)

// CancelMasterOrderCommandHandler cancels a master order. The cancellation
// event goes to the event publisher after commit.
type CancelMasterOrderCommandHandler struct {
	uowFactory MasterOrderUoWFactory
	ledger     *Ledger
}

func NewCancelMasterOrderCommandHandler(uowFactory MasterOrderUoWFactory, ledger *Ledger) CancelMasterOrderCommandHandler {
	return CancelMasterOrderCommandHandler{uowFactory: uowFactory, ledger: ledger}
}

func (h CancelMasterOrderCommandHandler) Handle(ctx context.Context, cmd CancelMasterOrderCommand) (order.ProgressSnapshot, error) {
	if err := cmd.Validate(); err != nil {
		return order.ProgressSnapshot{}, err
	}

	return mutateMasterOrder(ctx, h.uowFactory, h.ledger, cmd.MasterOrderID(), order.EventMasterOrderCancelled,
		func(mo *order.MasterOrder) error {
			return mo.Cancel(h.ledger.now())
		})
}
