package commands

import (
	"errors"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/pkg/guard"
)

var ErrCreateMasterOrderCommandIsNotConstructed = errors.New(
	"CreateMasterOrderCommand must be created via NewCreateMasterOrderCommand constructor",
)

// CreateMasterOrderCommand posts a new master order for a shipper.
//
// Example:
//
//	cmd, err := NewCreateMasterOrderCommand(kernel.NewUUID(), order.MasterOrderParams{...})
//	if err != nil {
//	    return err
//	}
//	snapshot, err := handler.Handle(ctx, cmd)
type CreateMasterOrderCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID
	params  order.MasterOrderParams

	guard guard.ConstructorGuard
}

// NewCreateMasterOrderCommand checks identities; capacity, route and deadline
// are validated by the aggregate itself.
func NewCreateMasterOrderCommand(orderID kernel.UUID, params order.MasterOrderParams) (CreateMasterOrderCommand, error) {
	if err := errors.Join(orderID.Validate(), params.ShipperID.Validate()); err != nil {
		return CreateMasterOrderCommand{}, err
	}
	return CreateMasterOrderCommand{
		orderID: orderID,
		params:  params,
		guard:   guard.NewConstructorGuard(),
	}, nil
}

func (c CreateMasterOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateMasterOrderCommandIsNotConstructed)
}

func (c CreateMasterOrderCommand) OrderID() kernel.UUID            { return c.orderID }
func (c CreateMasterOrderCommand) Params() order.MasterOrderParams { return c.params }
