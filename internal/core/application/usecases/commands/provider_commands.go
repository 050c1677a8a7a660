package commands

import (
	"errors"
	"fmt"
	"math"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/ports"
	"freight/internal/pkg/errs"
	"freight/internal/pkg/guard"
)

var (
	ErrRegisterProviderCommandIsNotConstructed = errors.New(
		"RegisterProviderCommand must be created via NewRegisterProviderCommand constructor",
	)
	ErrUpdateProviderCommandIsNotConstructed = errors.New(
		"UpdateProviderCommand must be created via NewUpdateProviderCommand constructor",
	)
	ErrDeleteProviderCommandIsNotConstructed = errors.New(
		"DeleteProviderCommand must be created via NewDeleteProviderCommand constructor",
	)
	ErrAdjustProviderCommandIsNotConstructed = errors.New(
		"AdjustProviderCommand must be created via NewAdjustProviderCommand constructor",
	)
)

func validateActor(actor ports.Actor) error {
	if actor.UserID == "" {
		return errs.NewValueIsRequiredError("actor.userId")
	}
	return nil
}

// RegisterProviderCommand adds an oracle provider.
type RegisterProviderCommand struct { //nolint:recvcheck //using for validation
	providerID kernel.UUID
	params     oracle.ProviderParams
	actor      ports.Actor

	guard guard.ConstructorGuard
}

func NewRegisterProviderCommand(providerID kernel.UUID, params oracle.ProviderParams, actor ports.Actor) (RegisterProviderCommand, error) {
	if err := errors.Join(providerID.Validate(), validateActor(actor)); err != nil {
		return RegisterProviderCommand{}, err
	}
	return RegisterProviderCommand{providerID: providerID, params: params, actor: actor, guard: guard.NewConstructorGuard()}, nil
}

func (c RegisterProviderCommand) Validate() error {
	return c.guard.Validate(ErrRegisterProviderCommandIsNotConstructed)
}

func (c RegisterProviderCommand) ProviderID() kernel.UUID       { return c.providerID }
func (c RegisterProviderCommand) Params() oracle.ProviderParams { return c.params }
func (c RegisterProviderCommand) Actor() ports.Actor            { return c.actor }

// UpdateProviderCommand replaces every editable setting of a provider.
type UpdateProviderCommand struct { //nolint:recvcheck //using for validation
	providerID kernel.UUID
	params     oracle.ProviderParams
	actor      ports.Actor

	guard guard.ConstructorGuard
}

func NewUpdateProviderCommand(providerID kernel.UUID, params oracle.ProviderParams, actor ports.Actor) (UpdateProviderCommand, error) {
	if err := errors.Join(providerID.Validate(), validateActor(actor)); err != nil {
		return UpdateProviderCommand{}, err
	}
	return UpdateProviderCommand{providerID: providerID, params: params, actor: actor, guard: guard.NewConstructorGuard()}, nil
}

func (c UpdateProviderCommand) Validate() error {
	return c.guard.Validate(ErrUpdateProviderCommandIsNotConstructed)
}

func (c UpdateProviderCommand) ProviderID() kernel.UUID       { return c.providerID }
func (c UpdateProviderCommand) Params() oracle.ProviderParams { return c.params }
func (c UpdateProviderCommand) Actor() ports.Actor            { return c.actor }

// DeleteProviderCommand removes a provider.
type DeleteProviderCommand struct { //nolint:recvcheck //using for validation
	providerID kernel.UUID
	actor      ports.Actor

	guard guard.ConstructorGuard
}

func NewDeleteProviderCommand(providerID kernel.UUID, actor ports.Actor) (DeleteProviderCommand, error) {
	if err := errors.Join(providerID.Validate(), validateActor(actor)); err != nil {
		return DeleteProviderCommand{}, err
	}
	return DeleteProviderCommand{providerID: providerID, actor: actor, guard: guard.NewConstructorGuard()}, nil
}

func (c DeleteProviderCommand) Validate() error {
	return c.guard.Validate(ErrDeleteProviderCommandIsNotConstructed)
}

func (c DeleteProviderCommand) ProviderID() kernel.UUID { return c.providerID }
func (c DeleteProviderCommand) Actor() ports.Actor      { return c.actor }

// ProviderAdjustment is a single-field change to a provider.
type ProviderAdjustment string

const (
	AdjustToggleEnabled   ProviderAdjustment = "toggle"
	AdjustToggleConsensus ProviderAdjustment = "consensus"
	AdjustSetPriority     ProviderAdjustment = "priority"
)

// AdjustProviderCommand toggles enablement or consensus, or sets the priority.
type AdjustProviderCommand struct { //nolint:recvcheck //using for validation
	providerID kernel.UUID
	adjustment ProviderAdjustment
	priority   int
	actor      ports.Actor

	guard guard.ConstructorGuard
}

// NewAdjustProviderCommand ignores priority unless adjustment is AdjustSetPriority.
func NewAdjustProviderCommand(
	providerID kernel.UUID,
	adjustment ProviderAdjustment,
	priority int,
	actor ports.Actor,
) (AdjustProviderCommand, error) {
	var adjustErr error
	switch adjustment {
	case AdjustToggleEnabled, AdjustToggleConsensus:
	case AdjustSetPriority:
		if priority < 0 {
			adjustErr = errs.NewValueIsOutOfRangeError("priority", priority, 0, math.MaxInt32)
		}
	default:
		adjustErr = errs.NewValueIsInvalidErrorWithCause("adjustment", fmt.Errorf("unknown adjustment %q", string(adjustment)))
	}

	if err := errors.Join(providerID.Validate(), validateActor(actor), adjustErr); err != nil {
		return AdjustProviderCommand{}, err
	}
	return AdjustProviderCommand{
		providerID: providerID,
		adjustment: adjustment,
		priority:   priority,
		actor:      actor,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

func (c AdjustProviderCommand) Validate() error {
	return c.guard.Validate(ErrAdjustProviderCommandIsNotConstructed)
}

func (c AdjustProviderCommand) ProviderID() kernel.UUID        { return c.providerID }
func (c AdjustProviderCommand) Adjustment() ProviderAdjustment { return c.adjustment }
func (c AdjustProviderCommand) Priority() int                  { return c.priority }
func (c AdjustProviderCommand) Actor() ports.Actor             { return c.actor }
