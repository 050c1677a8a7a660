package queries

import (
	"context"
	"errors"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/pkg/guard"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrListProvidersQueryIsNotConstructed = errors.New(
	"ListProvidersQuery must be created via NewListProvidersQuery constructor",
)

// ListProvidersQuery lists every oracle price provider for the admin view.
type ListProvidersQuery struct {
	guard guard.ConstructorGuard
}

func NewListProvidersQuery() ListProvidersQuery {
	return ListProvidersQuery{guard: guard.NewConstructorGuard()}
}

func (q ListProvidersQuery) Validate() error {
	return q.guard.Validate(ErrListProvidersQueryIsNotConstructed)
}

// ListProvidersQueryResponse is one row of the provider listing.
type ListProvidersQueryResponse struct {
	ID               kernel.UUID         `json:"id"`
	Name             string              `json:"name"`
	Type             oracle.ProviderType `json:"type"`
	Endpoint         string              `json:"endpoint"`
	Weight           float64             `json:"weight"`
	Enabled          bool                `json:"enabled"`
	Priority         int                 `json:"priority"`
	ConsensusEnabled bool                `json:"consensusEnabled"`
}

// ListProvidersQueryHandler reads providers straight from the database,
// ordered the way the oracle picks its primary: priority, then name.
type ListProvidersQueryHandler struct {
	db *gorm.DB
}

func NewListProvidersQueryHandler(db *gorm.DB) ListProvidersQueryHandler {
	return ListProvidersQueryHandler{db: db}
}

func (h ListProvidersQueryHandler) Handle(ctx context.Context, query ListProvidersQuery) ([]ListProvidersQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	providers := make([]ListProvidersQueryResponse, 0)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			name,
			type,
			endpoint,
			weight,
			enabled,
			priority,
			consensus_enabled
		FROM price_providers
		ORDER BY priority, name
	`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p            ListProvidersQueryResponse
			id           uuid.UUID
			providerType string
		)
		if err = rows.Scan(
			&id,
			&p.Name,
			&providerType,
			&p.Endpoint,
			&p.Weight,
			&p.Enabled,
			&p.Priority,
			&p.ConsensusEnabled,
		); err != nil {
			return nil, err
		}

		providerID, idErr := kernel.UUIDFromBytes(id[:])
		if idErr != nil {
			return nil, idErr
		}
		p.ID = providerID
		p.Type = oracle.ProviderType(providerType)
		providers = append(providers, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return providers, nil
}
