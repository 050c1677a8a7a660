package order

import "errors"

// epsilon is the relative tolerance for capacity comparisons.
const epsilon = 1e-9

var (
	// ErrMasterOrderIsNotConstructed is returned for MasterOrder values not built by a constructor.
	ErrMasterOrderIsNotConstructed = errors.New("MasterOrder must be created via NewMasterOrder or RestoreMasterOrder")

	// ErrMasterOrderNotFound is returned when no master order has the requested id.
	ErrMasterOrderNotFound = errors.New("master order not found")

	// ErrMasterOrderNotOpen is returned when bidding on an order outside OPEN or PARTIALLY_FILLED.
	ErrMasterOrderNotOpen = errors.New("master order is not open for bids")

	// ErrCapacityExceeded is returned when a bid asks for more weight or volume than remains.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrBelowMinimumLoad is returned when a bid is smaller than the minimum load
	// and does not take the exact remainder.
	ErrBelowMinimumLoad = errors.New("below minimum load")

	// ErrBidAmountExceedsMaximum is returned when a bid asks more than the order's maximum amount.
	ErrBidAmountExceedsMaximum = errors.New("bid amount exceeds maximum")

	// ErrComplianceRejected is returned when the carrier fails the compliance check.
	ErrComplianceRejected = errors.New("compliance rejected")

	// ErrPartialOrderNotFound is returned when a partial order does not belong to the master order.
	ErrPartialOrderNotFound = errors.New("partial order not found")

	// ErrInvalidTransition is returned for status changes the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvariantViolation marks a broken capacity or percentage invariant.
	// It signals a defect, never a user error, and must abort the transaction.
	ErrInvariantViolation = errors.New("ledger invariant violation")
)
