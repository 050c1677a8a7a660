package commands

import (
	"context"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
)

// ChangePartialOrderCommandHandler awards, starts, completes or withdraws a
// partial order.
type ChangePartialOrderCommandHandler struct {
	uowFactory MasterOrderUoWFactory
	ledger     *Ledger
}

func NewChangePartialOrderCommandHandler(uowFactory MasterOrderUoWFactory, ledger *Ledger) ChangePartialOrderCommandHandler {
	return ChangePartialOrderCommandHandler{uowFactory: uowFactory, ledger: ledger}
}

func (h ChangePartialOrderCommandHandler) Handle(ctx context.Context, cmd ChangePartialOrderCommand) (order.ProgressSnapshot, error) {
	if err := cmd.Validate(); err != nil {
		return order.ProgressSnapshot{}, err
	}

	var (
		step    func(*order.MasterOrder, kernel.UUID, time.Time) error
		trigger string
	)
	switch cmd.Action() {
	case ActionAward:
		step, trigger = (*order.MasterOrder).Award, order.EventPartialOrderAwarded
	case ActionStart:
		step, trigger = (*order.MasterOrder).Start, order.EventPartialOrderStarted
	case ActionComplete:
		step, trigger = (*order.MasterOrder).Complete, order.EventPartialOrderCompleted
	default:
		step, trigger = (*order.MasterOrder).Withdraw, order.EventPartialOrderWithdrawn
	}

	return mutateMasterOrder(ctx, h.uowFactory, h.ledger, cmd.MasterOrderID(), trigger,
		func(mo *order.MasterOrder) error {
			return step(mo, cmd.PartialOrderID(), h.ledger.now())
		})
}
