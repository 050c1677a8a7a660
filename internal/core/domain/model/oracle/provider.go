package oracle

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/pkg/errs"
)

// ErrProviderIsNotConstructed is returned for Provider values not built by a constructor.
var ErrProviderIsNotConstructed = errors.New("Provider must be created via NewProvider or RestoreProvider")

// ProviderType selects the adapter that quotes rates for a provider.
type ProviderType string

const (
	TypeMock                ProviderType = "mock"
	TypeRegionalStaticTable ProviderType = "regional_static_table"
	TypeExternalBulletin    ProviderType = "external_bulletin"
)

// Validate rejects unknown provider types.
func (t ProviderType) Validate() error {
	switch t {
	case TypeMock, TypeRegionalStaticTable, TypeExternalBulletin:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("providerType", fmt.Errorf("%q is not a known provider type", string(t)))
	}
}

// ProviderParams holds the editable settings of a provider.
type ProviderParams struct {
	Name             string
	Type             ProviderType
	Endpoint         string
	Weight           float64
	Enabled          bool
	Priority         int
	ConsensusEnabled bool
}

// Provider is an oracle price source as configured by an administrator.
type Provider struct {
	id               kernel.UUID
	name             string
	providerType     ProviderType
	endpoint         string
	weight           float64
	enabled          bool
	priority         int
	consensusEnabled bool
	isConstructed    bool
}

// NewProvider validates params and creates a provider.
func NewProvider(id kernel.UUID, p ProviderParams) (*Provider, error) {
	pr := &Provider{isConstructed: true}
	if err := errors.Join(id.Validate(), pr.apply(p)); err != nil {
		return nil, err
	}
	pr.id = id
	return pr, nil
}

// RestoreProvider rebuilds a provider loaded from storage.
func RestoreProvider(id kernel.UUID, p ProviderParams) (*Provider, error) {
	return NewProvider(id, p)
}

// Validate fails for providers not built by a constructor.
func (p *Provider) Validate() error {
	if p == nil || !p.isConstructed {
		return ErrProviderIsNotConstructed
	}
	return nil
}

func (p *Provider) ID() kernel.UUID        { return p.id }
func (p *Provider) Name() string           { return p.name }
func (p *Provider) Type() ProviderType     { return p.providerType }
func (p *Provider) Endpoint() string       { return p.endpoint }
func (p *Provider) Weight() float64        { return p.weight }
func (p *Provider) Enabled() bool          { return p.enabled }
func (p *Provider) Priority() int          { return p.priority }
func (p *Provider) ConsensusEnabled() bool { return p.consensusEnabled }

// Params returns the current settings, handy for partial updates.
func (p *Provider) Params() ProviderParams {
	return ProviderParams{
		Name:             p.name,
		Type:             p.providerType,
		Endpoint:         p.endpoint,
		Weight:           p.weight,
		Enabled:          p.enabled,
		Priority:         p.priority,
		ConsensusEnabled: p.consensusEnabled,
	}
}

// Update replaces every editable setting. Nothing changes on error.
func (p *Provider) Update(params ProviderParams) error {
	next := *p
	if err := next.apply(params); err != nil {
		return err
	}
	*p = next
	return nil
}

// Toggle flips the enabled flag.
func (p *Provider) Toggle() {
	p.enabled = !p.enabled
}

// ToggleConsensus flips participation in the weighted average.
func (p *Provider) ToggleConsensus() {
	p.consensusEnabled = !p.consensusEnabled
}

// SetPriority reorders the provider; lower values are preferred.
func (p *Provider) SetPriority(priority int) error {
	if priority < 0 {
		return errs.NewValueIsOutOfRangeError("priority", priority, 0, math.MaxInt32)
	}
	p.priority = priority
	return nil
}

func (p *Provider) apply(params ProviderParams) error {
	var nameErr, endpointErr, weightErr, priorityErr error
	if strings.TrimSpace(params.Name) == "" {
		nameErr = errs.NewValueIsRequiredError("name")
	}
	if params.Type != TypeMock && strings.TrimSpace(params.Endpoint) == "" {
		endpointErr = errs.NewValueIsRequiredErrorWithCause("endpoint",
			fmt.Errorf("%s providers need an endpoint or file path", params.Type))
	}
	if math.IsNaN(params.Weight) || params.Weight < 0 || params.Weight > 1 {
		weightErr = errs.NewValueIsOutOfRangeError("weight", params.Weight, 0, 1)
	}
	if params.Priority < 0 {
		priorityErr = errs.NewValueIsOutOfRangeError("priority", params.Priority, 0, math.MaxInt32)
	}

	if err := errors.Join(nameErr, params.Type.Validate(), endpointErr, weightErr, priorityErr); err != nil {
		return err
	}

	p.name = strings.TrimSpace(params.Name)
	p.providerType = params.Type
	p.endpoint = params.Endpoint
	p.weight = params.Weight
	p.enabled = params.Enabled
	p.priority = params.Priority
	p.consensusEnabled = params.ConsensusEnabled
	return nil
}
