package providerrepo

import (
	"context"
	"errors"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/pkg/errs"

	"gorm.io/gorm"
)

type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

// GormProviderRepository implements ports.ProviderRepository.
type GormProviderRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

func NewGormProviderRepository(db *gorm.DB, tracker aggregateTracker) *GormProviderRepository {
	return &GormProviderRepository{db: db, tracker: tracker}
}

func (r *GormProviderRepository) Add(ctx context.Context, provider *oracle.Provider) error {
	if err := provider.Validate(); err != nil {
		return err
	}

	dto := fromDomain(provider)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return err
	}

	r.tracker.TrackAggregate(provider.ID(), provider)
	return nil
}

// Update writes every editable column, including false and zero values.
func (r *GormProviderRepository) Update(ctx context.Context, provider *oracle.Provider) error {
	if err := provider.Validate(); err != nil {
		return err
	}

	dto := fromDomain(provider)
	result := r.db.WithContext(ctx).
		Model(&ProviderDTO{}).
		Where("id = ?", dto.ID).
		Select("name", "type", "endpoint", "weight", "enabled", "priority", "consensus_enabled", "updated_at").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("providerID", provider.ID())
	}

	r.tracker.TrackAggregate(provider.ID(), provider)
	return nil
}

func (r *GormProviderRepository) Delete(ctx context.Context, id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Delete(&ProviderDTO{}, "id = ?", id.Bytes())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("providerID", id)
	}
	return nil
}

func (r *GormProviderRepository) Get(ctx context.Context, id kernel.UUID) (*oracle.Provider, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto ProviderDTO
	err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NewObjectNotFoundError("providerID", id)
	}
	if err != nil {
		return nil, err
	}

	return toDomain(dto)
}

// List returns providers ordered by priority, then name.
func (r *GormProviderRepository) List(ctx context.Context) ([]*oracle.Provider, error) {
	var dtos []ProviderDTO
	if err := r.db.WithContext(ctx).Order("priority, name").Find(&dtos).Error; err != nil {
		return nil, err
	}

	providers := make([]*oracle.Provider, 0, len(dtos))
	for _, dto := range dtos {
		p, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}
