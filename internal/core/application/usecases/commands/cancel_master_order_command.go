package commands

import (
	"errors"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/pkg/guard"
)

var ErrCancelMasterOrderCommandIsNotConstructed = errors.New(
	"CancelMasterOrderCommand must be created via NewCancelMasterOrderCommand constructor",
)

// CancelMasterOrderCommand cancels an order and its unfinished partial orders.
type CancelMasterOrderCommand struct { //nolint:recvcheck //using for validation
	masterOrderID kernel.UUID

	guard guard.ConstructorGuard
}

func NewCancelMasterOrderCommand(masterOrderID kernel.UUID) (CancelMasterOrderCommand, error) {
	if err := masterOrderID.Validate(); err != nil {
		return CancelMasterOrderCommand{}, err
	}
	return CancelMasterOrderCommand{masterOrderID: masterOrderID, guard: guard.NewConstructorGuard()}, nil
}

func (c CancelMasterOrderCommand) Validate() error {
	return c.guard.Validate(ErrCancelMasterOrderCommandIsNotConstructed)
}

func (c CancelMasterOrderCommand) MasterOrderID() kernel.UUID { return c.masterOrderID }
