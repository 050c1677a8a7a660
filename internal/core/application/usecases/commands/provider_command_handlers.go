package commands

import (
	"context"
	"strconv"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/ports"

	"go.uber.org/zap"
)

// Audit actions.
const (
	AuditProviderRegistered    = "oracle.provider.registered"
	AuditProviderUpdated       = "oracle.provider.updated"
	AuditProviderDeleted       = "oracle.provider.deleted"
	AuditProviderToggled       = "oracle.provider.toggled"
	AuditProviderConsensus     = "oracle.provider.consensus_toggled"
	AuditProviderReprioritized = "oracle.provider.priority_set"
)

const defaultAuditTimeout = 5 * time.Second

// ProviderAdmin bundles the dependencies of provider administration: the
// oracle registry to reload and the audit recorder.
type ProviderAdmin struct {
	uowFactory   ProviderUoWFactory
	registry     ProviderRegistry
	audit        ports.AuditRecorder
	logger       *zap.Logger
	auditTimeout time.Duration
	now          func() time.Time
}

func NewProviderAdmin(
	uowFactory ProviderUoWFactory,
	registry ProviderRegistry,
	audit ports.AuditRecorder,
	logger *zap.Logger,
) *ProviderAdmin {
	return &ProviderAdmin{
		uowFactory:   uowFactory,
		registry:     registry,
		audit:        audit,
		logger:       logger.Named("provider-admin"),
		auditTimeout: defaultAuditTimeout,
		now:          time.Now,
	}
}

// withTx runs fn inside a provider transaction.
func (a *ProviderAdmin) withTx(ctx context.Context, fn func(ports.ProviderRepository) error) error {
	uow := a.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err := fn(uow.ProviderRepository()); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// committed makes the change visible to the oracle and records the audit
// trail. The audit call runs detached with its own timeout.
func (a *ProviderAdmin) committed(ctx context.Context, action string, id kernel.UUID, actor ports.Actor, details map[string]string) {
	if err := a.registry.Reload(ctx); err != nil {
		a.logger.Warn("reload provider registry", zap.String("action", action), zap.Error(err))
	}

	rec := ports.AuditRecord{
		Action:     action,
		ResourceID: id,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Details:    details,
		At:         a.now(),
	}
	go func() {
		auditCtx, cancel := context.WithTimeout(context.Background(), a.auditTimeout)
		defer cancel()
		if err := a.audit.Record(auditCtx, rec); err != nil {
			a.logger.Warn("record audit", zap.String("action", rec.Action), zap.Stringer("resourceId", rec.ResourceID), zap.Error(err))
		}
	}()
}

func providerDetails(p *oracle.Provider) map[string]string {
	return map[string]string{
		"name":             p.Name(),
		"type":             string(p.Type()),
		"enabled":          strconv.FormatBool(p.Enabled()),
		"weight":           strconv.FormatFloat(p.Weight(), 'f', -1, 64),
		"priority":         strconv.Itoa(p.Priority()),
		"consensusEnabled": strconv.FormatBool(p.ConsensusEnabled()),
	}
}

// RegisterProviderCommandHandler adds a provider.
type RegisterProviderCommandHandler struct{ admin *ProviderAdmin }

func NewRegisterProviderCommandHandler(admin *ProviderAdmin) RegisterProviderCommandHandler {
	return RegisterProviderCommandHandler{admin: admin}
}

func (h RegisterProviderCommandHandler) Handle(ctx context.Context, cmd RegisterProviderCommand) (*oracle.Provider, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	p, err := oracle.NewProvider(cmd.ProviderID(), cmd.Params())
	if err != nil {
		return nil, err
	}

	if err = h.admin.withTx(ctx, func(repo ports.ProviderRepository) error {
		return repo.Add(ctx, p)
	}); err != nil {
		return nil, err
	}

	h.admin.committed(ctx, AuditProviderRegistered, p.ID(), cmd.Actor(), providerDetails(p))
	return p, nil
}

// UpdateProviderCommandHandler edits a provider.
type UpdateProviderCommandHandler struct{ admin *ProviderAdmin }

func NewUpdateProviderCommandHandler(admin *ProviderAdmin) UpdateProviderCommandHandler {
	return UpdateProviderCommandHandler{admin: admin}
}

func (h UpdateProviderCommandHandler) Handle(ctx context.Context, cmd UpdateProviderCommand) (*oracle.Provider, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var updated *oracle.Provider
	if err := h.admin.withTx(ctx, func(repo ports.ProviderRepository) error {
		p, err := repo.Get(ctx, cmd.ProviderID())
		if err != nil {
			return err
		}
		if err = p.Update(cmd.Params()); err != nil {
			return err
		}
		updated = p
		return repo.Update(ctx, p)
	}); err != nil {
		return nil, err
	}

	h.admin.committed(ctx, AuditProviderUpdated, updated.ID(), cmd.Actor(), providerDetails(updated))
	return updated, nil
}

// DeleteProviderCommandHandler removes a provider.
type DeleteProviderCommandHandler struct{ admin *ProviderAdmin }

func NewDeleteProviderCommandHandler(admin *ProviderAdmin) DeleteProviderCommandHandler {
	return DeleteProviderCommandHandler{admin: admin}
}

func (h DeleteProviderCommandHandler) Handle(ctx context.Context, cmd DeleteProviderCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	if err := h.admin.withTx(ctx, func(repo ports.ProviderRepository) error {
		return repo.Delete(ctx, cmd.ProviderID())
	}); err != nil {
		return err
	}

	h.admin.committed(ctx, AuditProviderDeleted, cmd.ProviderID(), cmd.Actor(), nil)
	return nil
}

// AdjustProviderCommandHandler toggles a provider flag or sets its priority.
type AdjustProviderCommandHandler struct{ admin *ProviderAdmin }

func NewAdjustProviderCommandHandler(admin *ProviderAdmin) AdjustProviderCommandHandler {
	return AdjustProviderCommandHandler{admin: admin}
}

func (h AdjustProviderCommandHandler) Handle(ctx context.Context, cmd AdjustProviderCommand) (*oracle.Provider, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		adjusted *oracle.Provider
		action   string
	)
	if err := h.admin.withTx(ctx, func(repo ports.ProviderRepository) error {
		p, err := repo.Get(ctx, cmd.ProviderID())
		if err != nil {
			return err
		}

		switch cmd.Adjustment() {
		case AdjustToggleEnabled:
			p.Toggle()
			action = AuditProviderToggled
		case AdjustToggleConsensus:
			p.ToggleConsensus()
			action = AuditProviderConsensus
		case AdjustSetPriority:
			if err = p.SetPriority(cmd.Priority()); err != nil {
				return err
			}
			action = AuditProviderReprioritized
		}

		adjusted = p
		return repo.Update(ctx, p)
	}); err != nil {
		return nil, err
	}

	h.admin.committed(ctx, action, adjusted.ID(), cmd.Actor(), providerDetails(adjusted))
	return adjusted, nil
}
