package commands

import (
	"context"
	"errors"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/ports"
	"freight/internal/pkg/metrics"

	"go.uber.org/zap"
)

// ComplianceStatusPassed is reported for bids that cleared the compliance check.
const ComplianceStatusPassed = "PASSED"

// PlaceBidResult describes a committed bid.
type PlaceBidResult struct {
	BidID            kernel.UUID
	PartialOrderID   kernel.UUID
	ComplianceStatus string
	Assessment       order.PriceAssessment
	Snapshot         order.ProgressSnapshot
}

// PlaceBidCommandHandler allocates capacity for a bid.
//
// The preconditions run in a fixed order, each failing fast:
//  1. the order exists and accepts bids
//  2. capacity is available
//  3. the minimum load is met (or the bid takes the exact remainder)
//  4. the amount does not exceed the order maximum
//  5. the carrier passes compliance
//
// The market price check follows; a high-risk price is recorded on the bid
// and surfaced on the snapshot but never rejects it.
//
// Check-and-decrement is atomic per order: the handler holds the in-process
// order lock and the row lock from GetForUpdate until commit, so of two
// racing bids that together overcommit, the second sees the reduced
// remainder and fails with order.ErrCapacityExceeded.
type PlaceBidCommandHandler struct {
	uowFactory MasterOrderUoWFactory
	ledger     *Ledger
	compliance ports.ComplianceChecker
	prices     ports.PriceValidator
	metrics    *metrics.Metrics
}

func NewPlaceBidCommandHandler(
	uowFactory MasterOrderUoWFactory,
	ledger *Ledger,
	compliance ports.ComplianceChecker,
	prices ports.PriceValidator,
	m *metrics.Metrics,
) PlaceBidCommandHandler {
	return PlaceBidCommandHandler{
		uowFactory: uowFactory,
		ledger:     ledger,
		compliance: compliance,
		prices:     prices,
		metrics:    m,
	}
}

func (h PlaceBidCommandHandler) Handle(ctx context.Context, cmd PlaceBidCommand) (PlaceBidResult, error) {
	if err := cmd.Validate(); err != nil {
		return PlaceBidResult{}, err
	}

	res, err := h.place(ctx, cmd)
	if err != nil {
		h.metrics.BidsRejected.WithLabelValues(rejectReason(err)).Inc()
		return PlaceBidResult{}, err
	}

	h.metrics.BidsAccepted.Inc()
	if res.Assessment.HighRisk {
		h.metrics.HighRiskBids.Inc()
	}
	return res, nil
}

func (h PlaceBidCommandHandler) place(ctx context.Context, cmd PlaceBidCommand) (PlaceBidResult, error) {
	unlock := h.ledger.lock(cmd.MasterOrderID())
	defer unlock()

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return PlaceBidResult{}, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	repo := uow.MasterOrderRepository()
	mo, err := repo.GetForUpdate(ctx, cmd.MasterOrderID())
	if err != nil {
		return PlaceBidResult{}, err
	}

	terms := cmd.Terms()
	if err = mo.ValidateBid(terms); err != nil {
		return PlaceBidResult{}, err
	}

	req := ports.ComplianceRequirements{
		Hazardous:             terms.Hazardous() || mo.Cargo().Hazardous(),
		TemperatureControlled: terms.TemperatureControlled() || mo.Cargo().TemperatureControlled(),
	}
	if err = h.compliance.Check(ctx, terms.CarrierID(), req); err != nil {
		return PlaceBidResult{}, err
	}

	amount, _ := terms.Amount().Float64()
	assessment := h.prices.ValidateMarketPrice(ctx, amount, mo.Route())

	bid, partial, err := mo.CommitBid(terms, assessment, h.ledger.now())
	if err != nil {
		h.ledger.defect(mo.ID(), err)
		return PlaceBidResult{}, err
	}

	snap, err := h.ledger.snapshot(mo, order.EventBidPlaced)
	if err != nil {
		return PlaceBidResult{}, err
	}

	if err = repo.Update(ctx, mo); err != nil {
		return PlaceBidResult{}, err
	}

	if err = uow.Commit(ctx); err != nil {
		return PlaceBidResult{}, err
	}

	if assessment.HighRisk {
		h.ledger.logger.Info("high-risk bid accepted",
			zap.Stringer("orderId", mo.ID()),
			zap.Stringer("bidId", bid.ID()),
			zap.Float64("deviationPercent", assessment.DeviationPercent))
	}
	h.ledger.committed(ctx, mo.PullEvents(), snap)

	return PlaceBidResult{
		BidID:            bid.ID(),
		PartialOrderID:   partial.ID(),
		ComplianceStatus: ComplianceStatusPassed,
		Assessment:       assessment,
		Snapshot:         snap,
	}, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, order.ErrMasterOrderNotFound):
		return "not_found"
	case errors.Is(err, order.ErrMasterOrderNotOpen):
		return "not_open"
	case errors.Is(err, order.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, order.ErrBelowMinimumLoad):
		return "below_minimum_load"
	case errors.Is(err, order.ErrBidAmountExceedsMaximum):
		return "amount_exceeds_maximum"
	case errors.Is(err, order.ErrComplianceRejected):
		return "compliance_rejected"
	default:
		return "error"
	}
}
