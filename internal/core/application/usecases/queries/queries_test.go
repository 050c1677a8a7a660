package queries_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"freight/internal/core/application/usecases/queries"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/domain/services"
	"freight/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type orderReader map[kernel.UUID]*order.MasterOrder

func (r orderReader) Get(_ context.Context, id kernel.UUID) (*order.MasterOrder, error) {
	mo, ok := r[id]
	if !ok {
		return nil, fmt.Errorf("%w: %w", order.ErrMasterOrderNotFound, errs.NewObjectNotFoundError("masterOrderID", id))
	}
	return mo, nil
}

func testRoute(t *testing.T) kernel.Route {
	t.Helper()
	pickup, _ := kernel.NewGeoPoint(45.5, -73.57)
	delivery, _ := kernel.NewGeoPoint(43.65, -79.38)
	route, err := kernel.NewRoute(pickup, delivery, "Montreal yard", "Toronto yard")
	require.NoError(t, err)
	return route
}

func masterOrder(t *testing.T, deadline time.Time) *order.MasterOrder {
	t.Helper()
	cargo, err := order.NewCargo("paper rolls", false, false)
	require.NoError(t, err)
	mo, err := order.NewMasterOrder(kernel.NewUUID(), order.MasterOrderParams{
		ShipperID:         kernel.NewUUID(),
		Cargo:             cargo,
		TotalWeight:       2000,
		TotalVolume:       80,
		Route:             testRoute(t),
		Deadline:          deadline,
		LTLEnabled:        true,
		MinLoadPercentage: 0.1,
	}, fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	return mo
}

func placeBid(t *testing.T, mo *order.MasterOrder, weight, volume float64) {
	t.Helper()
	bt, err := order.NewBidTerms(kernel.NewUUID(), weight, volume, decimal.NewFromInt(1200), fixedNow, false, false)
	require.NoError(t, err)
	_, _, err = mo.CommitBid(bt, order.PriceAssessment{}, fixedNow)
	require.NoError(t, err)
}

func TestGetProgressQueryHandler_Handle(t *testing.T) {
	mo := masterOrder(t, fixedNow.Add(7*24*time.Hour))
	placeBid(t, mo, 500, 20)
	h := queries.NewGetProgressQueryHandler(orderReader{mo.ID(): mo}, clock)

	query, err := queries.NewGetProgressQuery(mo.ID())
	require.NoError(t, err)
	snap, err := h.Handle(t.Context(), query)

	require.NoError(t, err)
	assert.Equal(t, order.EventProgressQueried, snap.TriggerEvent)
	assert.Equal(t, fixedNow, snap.GeneratedAt)
	assert.Equal(t, mo.Version(), snap.Version)
	assert.InDelta(t, 0.25, snap.Weight.PendingPercentage, 1e-9)
	assert.InDelta(t, 0.75, snap.Weight.OpenPercentage, 1e-9)
	assert.Equal(t, "PARTIALLY_FILLED", snap.ProgressStatus)

	byID, err := h.Progress(t.Context(), mo.ID())
	require.NoError(t, err)
	assert.Equal(t, snap, byID)
}

func TestGetProgressQueryHandler_Errors(t *testing.T) {
	h := queries.NewGetProgressQueryHandler(orderReader{}, clock)

	query, _ := queries.NewGetProgressQuery(kernel.NewUUID())
	_, err := h.Handle(t.Context(), query)
	require.ErrorIs(t, err, order.ErrMasterOrderNotFound)

	_, err = h.Handle(t.Context(), queries.GetProgressQuery{})
	require.ErrorIs(t, err, queries.ErrGetProgressQueryIsNotConstructed)

	_, err = queries.NewGetProgressQuery(kernel.UUID{})
	require.ErrorIs(t, err, kernel.ErrUUIDIsNotConstructed)
}

func TestGetRecommendationsQueryHandler_Handle(t *testing.T) {
	mo := masterOrder(t, fixedNow.Add(20*time.Hour))
	h := queries.NewGetRecommendationsQueryHandler(orderReader{mo.ID(): mo}, services.NewProgressAdvisor(), clock)

	query, err := queries.NewGetRecommendationsQuery(mo.ID())
	require.NoError(t, err)
	resp, err := h.Handle(t.Context(), query)

	require.NoError(t, err)
	assert.Equal(t, "OPEN", resp.Snapshot.ProgressStatus)
	codes := make([]string, 0, len(resp.Recommendations))
	for _, r := range resp.Recommendations {
		codes = append(codes, r.Code)
		assert.NotEmpty(t, r.Message)
	}
	assert.Equal(t, []string{services.RecommendIncreasePrice, services.RecommendExtendDeadline}, codes)
}

type broadcastCache map[kernel.UUID]order.ProgressSnapshot

func (c broadcastCache) LastSnapshot(id kernel.UUID) (order.ProgressSnapshot, bool) {
	s, ok := c[id]
	return s, ok
}

func TestGetLastBroadcastQueryHandler_Handle(t *testing.T) {
	known := kernel.NewUUID()
	h := queries.NewGetLastBroadcastQueryHandler(broadcastCache{
		known: {OrderID: known, Version: 4},
	})

	query, _ := queries.NewGetLastBroadcastQuery(known)
	snap, err := h.Handle(t.Context(), query)
	require.NoError(t, err)
	assert.Equal(t, int64(4), snap.Version)

	query, _ = queries.NewGetLastBroadcastQuery(kernel.NewUUID())
	_, err = h.Handle(t.Context(), query)
	require.ErrorIs(t, err, queries.ErrNoBroadcastSnapshot)
	require.ErrorIs(t, err, errs.ErrObjectNotFound)
}

type fixedOracle oracle.Surcharge

func (o fixedOracle) FuelSurcharge(context.Context) oracle.Surcharge { return oracle.Surcharge(o) }

type MockPriceValidator struct{ mock.Mock }

func (m *MockPriceValidator) ValidateMarketPrice(ctx context.Context, price float64, route kernel.Route) order.PriceAssessment {
	return m.Called(ctx, price, route).Get(0).(order.PriceAssessment)
}

func TestOracleQueries(t *testing.T) {
	ctx := t.Context()

	surcharge, err := queries.NewGetFuelSurchargeQueryHandler(fixedOracle{Rate: 1.06, Source: oracle.SourceConsensus}).
		Handle(ctx, queries.NewGetFuelSurchargeQuery())
	require.NoError(t, err)
	assert.InDelta(t, 1.06, surcharge.Rate, 1e-9)
	assert.Equal(t, oracle.SourceConsensus, surcharge.Source)

	route := testRoute(t)
	prices := new(MockPriceValidator)
	want := order.PriceAssessment{MedianPrice: 102.5, DeviationPercent: 26.83, HighRisk: true}
	prices.On("ValidateMarketPrice", ctx, 130.0, route).Return(want).Once()

	query, err := queries.NewValidatePriceQuery(130, route)
	require.NoError(t, err)
	got, err := queries.NewValidatePriceQueryHandler(prices).Handle(ctx, query)

	require.NoError(t, err)
	assert.Equal(t, want, got)
	prices.AssertExpectations(t)

	_, err = queries.NewValidatePriceQuery(0, route)
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
	_, err = queries.NewValidatePriceQuery(10, kernel.Route{})
	require.ErrorIs(t, err, kernel.ErrRouteIsNotConstructed)
}

func TestQueries_NotConstructedViaConstructor(t *testing.T) {
	assert.ErrorIs(t, queries.GetRecommendationsQuery{}.Validate(), queries.ErrGetRecommendationsQueryIsNotConstructed)
	assert.ErrorIs(t, queries.GetLastBroadcastQuery{}.Validate(), queries.ErrGetLastBroadcastQueryIsNotConstructed)
	assert.ErrorIs(t, queries.GetFuelSurchargeQuery{}.Validate(), queries.ErrGetFuelSurchargeQueryIsNotConstructed)
	assert.ErrorIs(t, queries.ValidatePriceQuery{}.Validate(), queries.ErrValidatePriceQueryIsNotConstructed)
	assert.ErrorIs(t, queries.ListProvidersQuery{}.Validate(), queries.ErrListProvidersQueryIsNotConstructed)
	assert.NoError(t, queries.NewListProvidersQuery().Validate())
}
