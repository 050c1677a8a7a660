// Package postgres provides the GORM implementation of the unit of work and
// the schema helpers for the freight ledger.
//
// A unit of work wraps one database transaction. Repositories obtained from
// it after Begin run inside that transaction; before Begin they use the
// plain connection, which is how read paths use them.
//
// Usage:
//
//	uow := factory.Create()
//	if err := uow.Begin(ctx); err != nil {
//	    return err
//	}
//	defer uow.Rollback(ctx)
//
//	repo := uow.MasterOrderRepository()
//	mo, err := repo.GetForUpdate(ctx, id)
//	if err != nil {
//	    return err
//	}
//	// mutate mo
//	if err := repo.Update(ctx, mo); err != nil {
//	    return err
//	}
//
//	return uow.Commit(ctx)
//
// Each goroutine needs its own unit of work. GetForUpdate records the
// version an aggregate was loaded at, and Update refuses to write over a
// row whose version has moved since.
package postgres

import (
	"context"

	"freight/internal/adapters/out/postgres/masterorderrepo"
	"freight/internal/adapters/out/postgres/providerrepo"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/ports"

	"gorm.io/gorm"
)

// trackedAggregate is an aggregate written during the unit of work.
type trackedAggregate struct {
	ID        kernel.UUID
	Aggregate any
}

// GormUnitOfWorkFactory creates UnitOfWork instances sharing one connection pool.
type GormUnitOfWorkFactory struct {
	db *gorm.DB
}

func NewGormUnitOfWorkFactory(db *gorm.DB) *GormUnitOfWorkFactory {
	return &GormUnitOfWorkFactory{db: db}
}

// Create returns a fresh unit of work with no transaction.
func (f *GormUnitOfWorkFactory) Create() ports.UnitOfWork {
	return &GormUnitOfWork{
		db:                f.db,
		trackedAggregates: make([]trackedAggregate, 0),
		loadedVersions:    make(map[kernel.UUID]int64),
	}
}

// GormUnitOfWork coordinates one transaction and remembers which aggregates
// it loaded and wrote.
type GormUnitOfWork struct {
	db                *gorm.DB
	tx                *gorm.DB
	trackedAggregates []trackedAggregate
	loadedVersions    map[kernel.UUID]int64
}

// Begin starts the transaction. Calling it twice keeps the first one.
func (uow *GormUnitOfWork) Begin(ctx context.Context) error {
	if uow.tx != nil {
		return nil
	}

	uow.tx = uow.db.WithContext(ctx).Begin()
	if uow.tx.Error != nil {
		err := uow.tx.Error
		uow.tx = nil
		return err
	}

	return nil
}

// Commit returns gorm.ErrInvalidTransaction when no transaction is active.
func (uow *GormUnitOfWork) Commit(_ context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := uow.tx.Commit().Error
	uow.tx = nil
	return err
}

// Rollback discards the transaction. After Commit it only returns
// gorm.ErrInvalidTransaction, so deferring it is safe.
func (uow *GormUnitOfWork) Rollback(_ context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := uow.tx.Rollback().Error
	uow.tx = nil
	clear(uow.loadedVersions)
	return err
}

func (uow *GormUnitOfWork) MasterOrderRepository() ports.MasterOrderRepository {
	return masterorderrepo.NewGormMasterOrderRepository(uow.conn(), uow)
}

func (uow *GormUnitOfWork) ProviderRepository() ports.ProviderRepository {
	return providerrepo.NewGormProviderRepository(uow.conn(), uow)
}

func (uow *GormUnitOfWork) conn() *gorm.DB {
	if uow.tx != nil {
		return uow.tx
	}
	return uow.db
}

// TrackAggregate registers an aggregate written within this unit of work.
func (uow *GormUnitOfWork) TrackAggregate(id kernel.UUID, aggregate any) {
	uow.trackedAggregates = append(uow.trackedAggregates, trackedAggregate{
		ID:        id,
		Aggregate: aggregate,
	})
}

// TrackedAggregates returns the ids of aggregates written so far, in order.
func (uow *GormUnitOfWork) TrackedAggregates() []kernel.UUID {
	ids := make([]kernel.UUID, 0, len(uow.trackedAggregates))
	for _, t := range uow.trackedAggregates {
		ids = append(ids, t.ID)
	}
	return ids
}

// TrackLoadedVersion records the stored version an aggregate was locked at.
func (uow *GormUnitOfWork) TrackLoadedVersion(id kernel.UUID, version int64) {
	uow.loadedVersions[id] = version
}

func (uow *GormUnitOfWork) LoadedVersion(id kernel.UUID) (int64, bool) {
	v, ok := uow.loadedVersions[id]
	return v, ok
}
