package postgres

import (
	"freight/internal/adapters/out/postgres/masterorderrepo"
	"freight/internal/adapters/out/postgres/providerrepo"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/ports"

	"gorm.io/gorm"
)

// Migrate creates or updates every table the freight service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&masterorderrepo.MasterOrderDTO{},
		&masterorderrepo.PartialOrderDTO{},
		&masterorderrepo.BidDTO{},
		&providerrepo.ProviderDTO{},
	)
}

// NewRoutePriceHistory reads accepted bid prices outside any transaction.
func NewRoutePriceHistory(db *gorm.DB) ports.RoutePriceHistory {
	return masterorderrepo.NewGormMasterOrderRepository(db, noopTracker{})
}

type noopTracker struct{}

func (noopTracker) TrackAggregate(kernel.UUID, any)       {}
func (noopTracker) TrackLoadedVersion(kernel.UUID, int64) {}
func (noopTracker) LoadedVersion(kernel.UUID) (int64, bool) {
	return 0, false
}
