package commands

import (
	"errors"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/pkg/guard"
)

var ErrPlaceBidCommandIsNotConstructed = errors.New(
	"PlaceBidCommand must be created via NewPlaceBidCommand constructor",
)

// PlaceBidCommand asks for a slice of a master order's capacity.
type PlaceBidCommand struct { //nolint:recvcheck //using for validation
	masterOrderID kernel.UUID
	terms         order.BidTerms

	guard guard.ConstructorGuard
}

// NewPlaceBidCommand expects terms built by order.NewBidTerms.
func NewPlaceBidCommand(masterOrderID kernel.UUID, terms order.BidTerms) (PlaceBidCommand, error) {
	if err := errors.Join(masterOrderID.Validate(), terms.Validate()); err != nil {
		return PlaceBidCommand{}, err
	}
	return PlaceBidCommand{
		masterOrderID: masterOrderID,
		terms:         terms,
		guard:         guard.NewConstructorGuard(),
	}, nil
}

func (c PlaceBidCommand) Validate() error {
	return c.guard.Validate(ErrPlaceBidCommandIsNotConstructed)
}

func (c PlaceBidCommand) MasterOrderID() kernel.UUID { return c.masterOrderID }
func (c PlaceBidCommand) Terms() order.BidTerms      { return c.terms }
