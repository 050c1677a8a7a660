package commands

import (
	"errors"
	"fmt"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/pkg/errs"
	"freight/internal/pkg/guard"
)

var ErrChangePartialOrderCommandIsNotConstructed = errors.New(
	"ChangePartialOrderCommand must be created via NewChangePartialOrderCommand constructor",
)

// PartialOrderAction is a lifecycle step of a partial order.
type PartialOrderAction string

const (
	ActionAward    PartialOrderAction = "award"
	ActionStart    PartialOrderAction = "start"
	ActionComplete PartialOrderAction = "complete"
	ActionWithdraw PartialOrderAction = "withdraw"
)

// ChangePartialOrderCommand moves one partial order through its lifecycle.
type ChangePartialOrderCommand struct { //nolint:recvcheck //using for validation
	masterOrderID  kernel.UUID
	partialOrderID kernel.UUID
	action         PartialOrderAction

	guard guard.ConstructorGuard
}

func NewChangePartialOrderCommand(
	masterOrderID, partialOrderID kernel.UUID,
	action PartialOrderAction,
) (ChangePartialOrderCommand, error) {
	var actionErr error
	switch action {
	case ActionAward, ActionStart, ActionComplete, ActionWithdraw:
	default:
		actionErr = errs.NewValueIsInvalidErrorWithCause("action", fmt.Errorf("unknown action %q", string(action)))
	}

	if err := errors.Join(masterOrderID.Validate(), partialOrderID.Validate(), actionErr); err != nil {
		return ChangePartialOrderCommand{}, err
	}

	return ChangePartialOrderCommand{
		masterOrderID:  masterOrderID,
		partialOrderID: partialOrderID,
		action:         action,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (c ChangePartialOrderCommand) Validate() error {
	return c.guard.Validate(ErrChangePartialOrderCommandIsNotConstructed)
}

func (c ChangePartialOrderCommand) MasterOrderID() kernel.UUID  { return c.masterOrderID }
func (c ChangePartialOrderCommand) PartialOrderID() kernel.UUID { return c.partialOrderID }
func (c ChangePartialOrderCommand) Action() PartialOrderAction  { return c.action }
