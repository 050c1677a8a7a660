// Package providerrepo stores oracle price provider settings.
package providerrepo

import (
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"

	"github.com/google/uuid"
)

// ProviderDTO is a row of price_providers.
type ProviderDTO struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name             string    `gorm:"type:varchar(128);uniqueIndex"`
	Type             string    `gorm:"type:varchar(64)"`
	Endpoint         string
	Weight           float64
	Enabled          bool
	Priority         int `gorm:"index"`
	ConsensusEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (ProviderDTO) TableName() string {
	return "price_providers"
}

func fromDomain(p *oracle.Provider) ProviderDTO {
	return ProviderDTO{
		ID:               p.ID().Bytes(),
		Name:             p.Name(),
		Type:             string(p.Type()),
		Endpoint:         p.Endpoint(),
		Weight:           p.Weight(),
		Enabled:          p.Enabled(),
		Priority:         p.Priority(),
		ConsensusEnabled: p.ConsensusEnabled(),
	}
}

func toDomain(dto ProviderDTO) (*oracle.Provider, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	return oracle.RestoreProvider(id, oracle.ProviderParams{
		Name:             dto.Name,
		Type:             oracle.ProviderType(dto.Type),
		Endpoint:         dto.Endpoint,
		Weight:           dto.Weight,
		Enabled:          dto.Enabled,
		Priority:         dto.Priority,
		ConsensusEnabled: dto.ConsensusEnabled,
	})
}
