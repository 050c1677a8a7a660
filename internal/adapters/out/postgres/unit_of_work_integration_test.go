package postgres_test

import (
	"context"
	"testing"
	"time"

	postgres_adapter "freight/internal/adapters/out/postgres"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/ports"
	"freight/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gorm_postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var createdAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// UnitOfWorkIntegrationTestSuite runs the GORM unit of work against a real
// PostgreSQL database.
type UnitOfWorkIntegrationTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *gorm.DB
	factory   ports.UnitOfWorkFactory
}

func (suite *UnitOfWorkIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2)),
	)
	suite.Require().NoError(err)
	suite.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(gorm_postgres.Open(dsn), &gorm.Config{})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(postgres_adapter.Migrate(db))
	// Migrate is idempotent.
	suite.Require().NoError(postgres_adapter.Migrate(db))

	suite.factory = postgres_adapter.NewGormUnitOfWorkFactory(db)
}

func (suite *UnitOfWorkIntegrationTestSuite) SetupTest() {
	err := suite.db.Exec("TRUNCATE TABLE master_orders, partial_orders, bids, price_providers").Error
	suite.Require().NoError(err)
}

func (suite *UnitOfWorkIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWorkFactory_Create() {
	uow1 := suite.factory.Create()
	uow2 := suite.factory.Create()

	suite.NotSame(uow1, uow2)
	suite.NotNil(uow1.MasterOrderRepository())
	suite.NotNil(uow1.ProviderRepository())
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_TransactionLifecycle() {
	ctx := context.Background()
	uow := suite.factory.Create()

	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.Begin(ctx), "a second Begin keeps the open transaction")
	suite.Require().NoError(uow.Commit(ctx))

	suite.Require().ErrorIs(uow.Rollback(ctx), gorm.ErrInvalidTransaction, "rollback after commit is a no-op")
	suite.Require().ErrorIs(uow.Commit(ctx), gorm.ErrInvalidTransaction)

	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.Rollback(ctx))
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_LockedUpdateCommits() {
	ctx := context.Background()
	mo := suite.addOrder()

	uow := suite.factory.Create()
	suite.Require().NoError(uow.Begin(ctx))
	defer func() { _ = uow.Rollback(ctx) }()

	repo := uow.MasterOrderRepository()
	loaded, err := repo.GetForUpdate(ctx, mo.ID())
	suite.Require().NoError(err)
	_, _, err = loaded.CommitBid(suite.terms(250), order.PriceAssessment{}, createdAt.Add(time.Hour))
	suite.Require().NoError(err)
	suite.Require().NoError(repo.Update(ctx, loaded))
	suite.Require().NoError(uow.Commit(ctx))

	got, err := suite.factory.Create().MasterOrderRepository().Get(ctx, mo.ID())
	suite.Require().NoError(err)
	suite.Equal(int64(2), got.Version())
	suite.InDelta(750, got.RemainingWeight(), 1e-9)
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_TransactionRollback() {
	ctx := context.Background()
	mo := suite.addOrder()

	uow := suite.factory.Create()
	suite.Require().NoError(uow.Begin(ctx))

	provider := suite.newProvider()
	suite.Require().NoError(uow.ProviderRepository().Add(ctx, provider))

	repo := uow.MasterOrderRepository()
	loaded, err := repo.GetForUpdate(ctx, mo.ID())
	suite.Require().NoError(err)
	suite.Require().NoError(loaded.Cancel(createdAt.Add(time.Hour)))
	suite.Require().NoError(repo.Update(ctx, loaded))

	suite.Require().NoError(uow.Rollback(ctx))

	fresh := suite.factory.Create()
	got, err := fresh.MasterOrderRepository().Get(ctx, mo.ID())
	suite.Require().NoError(err)
	suite.Equal(order.StatusOpen, got.Status())

	_, err = fresh.ProviderRepository().Get(ctx, provider.ID())
	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

// TestUnitOfWork_RowLockSerializesWriters runs two writers on one order.
// The second blocks on the row lock until the first commits, then loads the
// committed version and writes on top of it.
func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_RowLockSerializesWriters() {
	ctx := context.Background()
	mo := suite.addOrder()

	first := suite.factory.Create()
	suite.Require().NoError(first.Begin(ctx))
	loaded, err := first.MasterOrderRepository().GetForUpdate(ctx, mo.ID())
	suite.Require().NoError(err)

	secondDone := make(chan error, 1)
	go func() {
		second := suite.factory.Create()
		if beginErr := second.Begin(ctx); beginErr != nil {
			secondDone <- beginErr
			return
		}
		defer func() { _ = second.Rollback(ctx) }()

		repo := second.MasterOrderRepository()
		other, getErr := repo.GetForUpdate(ctx, mo.ID())
		if getErr != nil {
			secondDone <- getErr
			return
		}
		if _, _, bidErr := other.CommitBid(suite.terms(300), order.PriceAssessment{}, createdAt.Add(2*time.Hour)); bidErr != nil {
			secondDone <- bidErr
			return
		}
		if updateErr := repo.Update(ctx, other); updateErr != nil {
			secondDone <- updateErr
			return
		}
		secondDone <- second.Commit(ctx)
	}()

	select {
	case err = <-secondDone:
		suite.FailNow("second writer finished while the row was locked", "err: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	_, _, err = loaded.CommitBid(suite.terms(200), order.PriceAssessment{}, createdAt.Add(time.Hour))
	suite.Require().NoError(err)
	suite.Require().NoError(first.MasterOrderRepository().Update(ctx, loaded))
	suite.Require().NoError(first.Commit(ctx))

	select {
	case err = <-secondDone:
		suite.Require().NoError(err)
	case <-time.After(10 * time.Second):
		suite.FailNow("second writer did not finish")
	}

	got, err := suite.factory.Create().MasterOrderRepository().Get(ctx, mo.ID())
	suite.Require().NoError(err)
	suite.Equal(int64(3), got.Version())
	suite.InDelta(500, got.RemainingWeight(), 1e-9)
	suite.Len(got.PartialOrders(), 2)
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_UpdateWithoutLockIsRejected() {
	ctx := context.Background()
	mo := suite.addOrder()

	uow := suite.factory.Create()
	suite.Require().NoError(uow.Begin(ctx))
	defer func() { _ = uow.Rollback(ctx) }()

	repo := uow.MasterOrderRepository()
	loaded, err := repo.Get(ctx, mo.ID())
	suite.Require().NoError(err)
	suite.Require().NoError(loaded.Cancel(createdAt.Add(time.Hour)))

	suite.Require().ErrorIs(repo.Update(ctx, loaded), errs.ErrVersionIsInvalid)
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_WithoutTransaction() {
	ctx := context.Background()
	uow := suite.factory.Create()
	provider := suite.newProvider()

	suite.Require().NoError(uow.ProviderRepository().Add(ctx, provider))

	list, err := suite.factory.Create().ProviderRepository().List(ctx)
	suite.Require().NoError(err)
	suite.Require().Len(list, 1)
	suite.Equal(provider.ID(), list[0].ID())
}

func (suite *UnitOfWorkIntegrationTestSuite) TestRoutePriceHistory_ReadsCommittedBids() {
	ctx := context.Background()
	mo := suite.addOrder()

	uow := suite.factory.Create()
	suite.Require().NoError(uow.Begin(ctx))
	repo := uow.MasterOrderRepository()
	loaded, err := repo.GetForUpdate(ctx, mo.ID())
	suite.Require().NoError(err)
	_, _, err = loaded.CommitBid(suite.terms(250), order.PriceAssessment{}, createdAt.Add(time.Hour))
	suite.Require().NoError(err)
	suite.Require().NoError(repo.Update(ctx, loaded))

	history := postgres_adapter.NewRoutePriceHistory(suite.db)
	prices, err := history.AcceptedRoutePrices(ctx, mo.Route(), 25)
	suite.Require().NoError(err)
	suite.Empty(prices, "uncommitted bids are invisible")

	suite.Require().NoError(uow.Commit(ctx))

	prices, err = history.AcceptedRoutePrices(ctx, mo.Route(), 25)
	suite.Require().NoError(err)
	suite.Require().Len(prices, 1)
	suite.InDelta(2500, prices[0].Amount, 1e-9)
}

func (suite *UnitOfWorkIntegrationTestSuite) addOrder() *order.MasterOrder {
	pickup, err := kernel.NewGeoPoint(41.88, -87.63)
	suite.Require().NoError(err)
	delivery, err := kernel.NewGeoPoint(39.1, -84.51)
	suite.Require().NoError(err)
	route, err := kernel.NewRoute(pickup, delivery, "Chicago DC", "Cincinnati DC")
	suite.Require().NoError(err)
	cargo, err := order.NewCargo("paper goods", false, false)
	suite.Require().NoError(err)

	mo, err := order.NewMasterOrder(kernel.NewUUID(), order.MasterOrderParams{
		ShipperID:         kernel.NewUUID(),
		Cargo:             cargo,
		TotalWeight:       1000,
		TotalVolume:       60,
		Route:             route,
		Deadline:          createdAt.Add(96 * time.Hour),
		MaxBidAmount:      decimal.NewFromInt(10_000),
		LTLEnabled:        true,
		MinLoadPercentage: 0.1,
	}, createdAt)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.factory.Create().MasterOrderRepository().Add(context.Background(), mo))
	return mo
}

func (suite *UnitOfWorkIntegrationTestSuite) terms(weight float64) order.BidTerms {
	bt, err := order.NewBidTerms(kernel.NewUUID(), weight, weight*0.06, decimal.NewFromInt(2500),
		createdAt.Add(48*time.Hour), false, false)
	suite.Require().NoError(err)
	return bt
}

func (suite *UnitOfWorkIntegrationTestSuite) newProvider() *oracle.Provider {
	p, err := oracle.NewProvider(kernel.NewUUID(), oracle.ProviderParams{
		Name:     "mock-feed",
		Type:     oracle.TypeMock,
		Weight:   1,
		Enabled:  true,
		Priority: 1,
	})
	suite.Require().NoError(err)
	return p
}

func TestUnitOfWorkIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(UnitOfWorkIntegrationTestSuite))
}
