package queries

import (
	"context"
	"errors"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/ports"
	"freight/internal/pkg/errs"
	"freight/internal/pkg/guard"
)

var (
	ErrGetFuelSurchargeQueryIsNotConstructed = errors.New(
		"GetFuelSurchargeQuery must be created via NewGetFuelSurchargeQuery constructor",
	)
	ErrValidatePriceQueryIsNotConstructed = errors.New(
		"ValidatePriceQuery must be created via NewValidatePriceQuery constructor",
	)
)

// SurchargeOracle answers the current fuel surcharge. It never fails.
type SurchargeOracle interface {
	FuelSurcharge(ctx context.Context) oracle.Surcharge
}

type GetFuelSurchargeQuery struct {
	guard guard.ConstructorGuard
}

func NewGetFuelSurchargeQuery() GetFuelSurchargeQuery {
	return GetFuelSurchargeQuery{guard: guard.NewConstructorGuard()}
}

func (q GetFuelSurchargeQuery) Validate() error {
	return q.guard.Validate(ErrGetFuelSurchargeQueryIsNotConstructed)
}

type GetFuelSurchargeQueryHandler struct {
	oracle SurchargeOracle
}

func NewGetFuelSurchargeQueryHandler(o SurchargeOracle) GetFuelSurchargeQueryHandler {
	return GetFuelSurchargeQueryHandler{oracle: o}
}

func (h GetFuelSurchargeQueryHandler) Handle(ctx context.Context, query GetFuelSurchargeQuery) (oracle.Surcharge, error) {
	if err := query.Validate(); err != nil {
		return oracle.Surcharge{}, err
	}
	return h.oracle.FuelSurcharge(ctx), nil
}

// ValidatePriceQuery asks how a price compares with accepted bids on
// similar routes.
type ValidatePriceQuery struct {
	price float64
	route kernel.Route

	guard guard.ConstructorGuard
}

func NewValidatePriceQuery(price float64, route kernel.Route) (ValidatePriceQuery, error) {
	var priceErr error
	if price <= 0 {
		priceErr = errs.NewValueIsInvalidError("price")
	}
	if err := errors.Join(priceErr, route.Validate()); err != nil {
		return ValidatePriceQuery{}, err
	}
	return ValidatePriceQuery{price: price, route: route, guard: guard.NewConstructorGuard()}, nil
}

func (q ValidatePriceQuery) Validate() error {
	return q.guard.Validate(ErrValidatePriceQueryIsNotConstructed)
}

func (q ValidatePriceQuery) Price() float64      { return q.price }
func (q ValidatePriceQuery) Route() kernel.Route { return q.route }

type ValidatePriceQueryHandler struct {
	prices ports.PriceValidator
}

func NewValidatePriceQueryHandler(prices ports.PriceValidator) ValidatePriceQueryHandler {
	return ValidatePriceQueryHandler{prices: prices}
}

func (h ValidatePriceQueryHandler) Handle(ctx context.Context, query ValidatePriceQuery) (order.PriceAssessment, error) {
	if err := query.Validate(); err != nil {
		return order.PriceAssessment{}, err
	}
	return h.prices.ValidateMarketPrice(ctx, query.Price(), query.Route()), nil
}
