package order_test

import (
	"testing"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testRoute(t require.TestingT) kernel.Route {
	pickup, err := kernel.NewGeoPoint(52.52, 13.405)
	require.NoError(t, err)
	delivery, err := kernel.NewGeoPoint(48.137, 11.575)
	require.NoError(t, err)
	r, err := kernel.NewRoute(pickup, delivery, "Berlin depot", "Munich hub")
	require.NoError(t, err)
	return r
}

func testParams(t require.TestingT) order.MasterOrderParams {
	cargo, err := order.NewCargo("pallets of tiles", false, false)
	require.NoError(t, err)
	return order.MasterOrderParams{
		ShipperID:         kernel.NewUUID(),
		Cargo:             cargo,
		TotalWeight:       1000,
		TotalVolume:       50,
		Route:             testRoute(t),
		Deadline:          testNow.Add(72 * time.Hour),
		MaxBidAmount:      decimal.NewFromInt(5000),
		LTLEnabled:        true,
		MinLoadPercentage: 0.1,
	}
}

func newOrder(t require.TestingT, mutate ...func(*order.MasterOrderParams)) *order.MasterOrder {
	p := testParams(t)
	for _, m := range mutate {
		m(&p)
	}
	mo, err := order.NewMasterOrder(kernel.NewUUID(), p, testNow)
	require.NoError(t, err)
	mo.PullEvents()
	return mo
}

func terms(t require.TestingT, weight, volume float64, amount int64) order.BidTerms {
	bt, err := order.NewBidTerms(kernel.NewUUID(), weight, volume, decimal.NewFromInt(amount),
		testNow.Add(48*time.Hour), false, false)
	require.NoError(t, err)
	return bt
}

func commit(t *testing.T, mo *order.MasterOrder, weight, volume float64) *order.PartialOrder {
	t.Helper()
	_, p, err := mo.CommitBid(terms(t, weight, volume, 1000), order.PriceAssessment{}, testNow)
	require.NoError(t, err)
	return p
}
