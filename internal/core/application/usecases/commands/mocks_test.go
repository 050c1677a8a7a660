package commands_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"freight/internal/core/application/usecases/commands"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/ports"
	"freight/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

type MockMasterOrderRepository struct{ mock.Mock }

func (m *MockMasterOrderRepository) Add(ctx context.Context, mo *order.MasterOrder) error {
	return m.Called(ctx, mo).Error(0)
}

func (m *MockMasterOrderRepository) Update(ctx context.Context, mo *order.MasterOrder) error {
	return m.Called(ctx, mo).Error(0)
}

func (m *MockMasterOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error) {
	args := m.Called(ctx, id)
	mo, _ := args.Get(0).(*order.MasterOrder)
	return mo, args.Error(1)
}

func (m *MockMasterOrderRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error) {
	args := m.Called(ctx, id)
	mo, _ := args.Get(0).(*order.MasterOrder)
	return mo, args.Error(1)
}

type MockMasterOrderUoW struct{ mock.Mock }

func (m *MockMasterOrderUoW) Begin(ctx context.Context) error    { return m.Called(ctx).Error(0) }
func (m *MockMasterOrderUoW) Commit(ctx context.Context) error   { return m.Called(ctx).Error(0) }
func (m *MockMasterOrderUoW) Rollback(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockMasterOrderUoW) MasterOrderRepository() ports.MasterOrderRepository {
	return m.Called().Get(0).(ports.MasterOrderRepository)
}

type MockMasterOrderUoWFactory struct{ mock.Mock }

func (m *MockMasterOrderUoWFactory) Create() commands.MasterOrderUoW {
	return m.Called().Get(0).(commands.MasterOrderUoW)
}

type MockComplianceChecker struct{ mock.Mock }

func (m *MockComplianceChecker) Check(ctx context.Context, carrierID kernel.UUID, req ports.ComplianceRequirements) error {
	return m.Called(ctx, carrierID, req).Error(0)
}

type MockPriceValidator struct{ mock.Mock }

func (m *MockPriceValidator) ValidateMarketPrice(ctx context.Context, price float64, route kernel.Route) order.PriceAssessment {
	return m.Called(ctx, price, route).Get(0).(order.PriceAssessment)
}

// recorder collects what the ledger publishes after commit.
type recorder struct {
	mu        sync.Mutex
	events    []order.DomainEvent
	snapshots []order.ProgressSnapshot
}

func (r *recorder) Publish(_ context.Context, events ...order.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

type progressRecorder struct{ *recorder }

func (p progressRecorder) Publish(s order.ProgressSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, s)
}

func (r *recorder) eventNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.EventName())
	}
	return names
}

func (r *recorder) published() []order.ProgressSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]order.ProgressSnapshot(nil), r.snapshots...)
}

func newLedger(rec *recorder) *commands.Ledger {
	return commands.NewLedger(rec, progressRecorder{rec}, zap.NewNop(),
		commands.WithClock(func() time.Time { return fixedNow }))
}

func masterParams(t *testing.T) order.MasterOrderParams {
	t.Helper()
	pickup, _ := kernel.NewGeoPoint(41.88, -87.63)
	delivery, _ := kernel.NewGeoPoint(39.1, -84.51)
	route, err := kernel.NewRoute(pickup, delivery, "Chicago DC", "Cincinnati DC")
	require.NoError(t, err)
	cargo, err := order.NewCargo("consumer electronics", false, false)
	require.NoError(t, err)
	return order.MasterOrderParams{
		ShipperID:         kernel.NewUUID(),
		Cargo:             cargo,
		TotalWeight:       1000,
		TotalVolume:       60,
		Route:             route,
		Deadline:          fixedNow.Add(96 * time.Hour),
		MaxBidAmount:      decimal.NewFromInt(10_000),
		LTLEnabled:        true,
		MinLoadPercentage: 0.1,
	}
}

func openOrder(t *testing.T) *order.MasterOrder {
	t.Helper()
	mo, err := order.NewMasterOrder(kernel.NewUUID(), masterParams(t), fixedNow)
	require.NoError(t, err)
	mo.PullEvents()
	return mo
}

func bidTerms(t *testing.T, weight, volume float64) order.BidTerms {
	t.Helper()
	bt, err := order.NewBidTerms(kernel.NewUUID(), weight, volume, decimal.NewFromInt(2500),
		fixedNow.Add(48*time.Hour), false, false)
	require.NoError(t, err)
	return bt
}

// memoryStore is an in-process ledger store: one aggregate per id, with a
// row lock emulated by the handler's own order lock.
type memoryStore struct {
	mu     sync.Mutex
	orders map[kernel.UUID]*order.MasterOrder
}

func newMemoryStore(orders ...*order.MasterOrder) *memoryStore {
	s := &memoryStore{orders: make(map[kernel.UUID]*order.MasterOrder)}
	for _, mo := range orders {
		s.orders[mo.ID()] = mo
	}
	return s
}

func (s *memoryStore) Create() commands.MasterOrderUoW { return memoryUoW{s} }

type memoryUoW struct{ s *memoryStore }

func (u memoryUoW) Begin(context.Context) error    { return nil }
func (u memoryUoW) Commit(context.Context) error   { return nil }
func (u memoryUoW) Rollback(context.Context) error { return nil }

func (u memoryUoW) MasterOrderRepository() ports.MasterOrderRepository { return u }

func (u memoryUoW) Add(_ context.Context, mo *order.MasterOrder) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	u.s.orders[mo.ID()] = mo
	return nil
}

func (u memoryUoW) Update(ctx context.Context, mo *order.MasterOrder) error { return u.Add(ctx, mo) }

func (u memoryUoW) Get(_ context.Context, id kernel.UUID) (*order.MasterOrder, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	mo, ok := u.s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %w", order.ErrMasterOrderNotFound, errs.NewObjectNotFoundError("masterOrderID", id))
	}
	return mo, nil
}

func (u memoryUoW) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error) {
	return u.Get(ctx, id)
}

type MockProviderRepository struct{ mock.Mock }

func (m *MockProviderRepository) Add(ctx context.Context, p *oracle.Provider) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProviderRepository) Update(ctx context.Context, p *oracle.Provider) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProviderRepository) Delete(ctx context.Context, id kernel.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProviderRepository) Get(ctx context.Context, id kernel.UUID) (*oracle.Provider, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*oracle.Provider)
	return p, args.Error(1)
}

func (m *MockProviderRepository) List(ctx context.Context) ([]*oracle.Provider, error) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]*oracle.Provider)
	return ps, args.Error(1)
}

type MockProviderUoW struct{ mock.Mock }

func (m *MockProviderUoW) Begin(ctx context.Context) error    { return m.Called(ctx).Error(0) }
func (m *MockProviderUoW) Commit(ctx context.Context) error   { return m.Called(ctx).Error(0) }
func (m *MockProviderUoW) Rollback(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockProviderUoW) ProviderRepository() ports.ProviderRepository {
	return m.Called().Get(0).(ports.ProviderRepository)
}

type MockProviderUoWFactory struct{ mock.Mock }

func (m *MockProviderUoWFactory) Create() commands.ProviderUoW {
	return m.Called().Get(0).(commands.ProviderUoW)
}

type MockProviderRegistry struct{ mock.Mock }

func (m *MockProviderRegistry) Reload(ctx context.Context) error { return m.Called(ctx).Error(0) }

type MockAuditRecorder struct{ mock.Mock }

func (m *MockAuditRecorder) Record(ctx context.Context, rec ports.AuditRecord) error {
	return m.Called(ctx, rec).Error(0)
}
