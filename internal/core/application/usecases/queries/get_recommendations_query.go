package queries

import (
	"context"
	"errors"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/domain/services"
	"freight/internal/pkg/guard"
)

var ErrGetRecommendationsQueryIsNotConstructed = errors.New(
	"GetRecommendationsQuery must be created via NewGetRecommendationsQuery constructor",
)

type GetRecommendationsQuery struct {
	masterOrderID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetRecommendationsQuery(masterOrderID kernel.UUID) (GetRecommendationsQuery, error) {
	if err := masterOrderID.Validate(); err != nil {
		return GetRecommendationsQuery{}, err
	}
	return GetRecommendationsQuery{masterOrderID: masterOrderID, guard: guard.NewConstructorGuard()}, nil
}

func (q GetRecommendationsQuery) Validate() error {
	return q.guard.Validate(ErrGetRecommendationsQueryIsNotConstructed)
}

func (q GetRecommendationsQuery) MasterOrderID() kernel.UUID { return q.masterOrderID }

// GetRecommendationsQueryResponse pairs the hints with the snapshot they
// were derived from.
type GetRecommendationsQueryResponse struct {
	Snapshot        order.ProgressSnapshot
	Recommendations []services.Recommendation
}

// GetRecommendationsQueryHandler runs the progress advisor over the current
// state of an order.
type GetRecommendationsQueryHandler struct {
	reader  MasterOrderReader
	advisor services.ProgressAdvisor
	now     func() time.Time
}

func NewGetRecommendationsQueryHandler(
	reader MasterOrderReader,
	advisor services.ProgressAdvisor,
	now func() time.Time,
) GetRecommendationsQueryHandler {
	if now == nil {
		now = time.Now
	}
	return GetRecommendationsQueryHandler{reader: reader, advisor: advisor, now: now}
}

func (h GetRecommendationsQueryHandler) Handle(
	ctx context.Context,
	query GetRecommendationsQuery,
) (GetRecommendationsQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetRecommendationsQueryResponse{}, err
	}

	mo, err := h.reader.Get(ctx, query.MasterOrderID())
	if err != nil {
		return GetRecommendationsQueryResponse{}, err
	}

	now := h.now()
	snap, err := mo.Progress(order.EventProgressQueried, now)
	if err != nil {
		return GetRecommendationsQueryResponse{}, err
	}

	return GetRecommendationsQueryResponse{
		Snapshot:        snap,
		Recommendations: h.advisor.Advise(mo, snap, now),
	}, nil
}
