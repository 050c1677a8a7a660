package order

import (
	"fmt"

	"freight/internal/pkg/errs"
)

// Status is the lifecycle state of a MasterOrder.
//
//	OPEN ──> PARTIALLY_FILLED ──> FILLED ──> IN_PROGRESS ──> COMPLETED
//	  │             │               │             │
//	  └─────────────┴───────────────┴─────────────┴──> CANCELLED
//
// Withdrawing a pending bid can reopen capacity, moving FILLED back to
// PARTIALLY_FILLED or OPEN; IN_PROGRESS and COMPLETED never move back.
type Status int

const (
	StatusUnknown Status = iota
	StatusOpen
	StatusPartiallyFilled
	StatusFilled
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusOpen:            "OPEN",
	StatusPartiallyFilled: "PARTIALLY_FILLED",
	StatusFilled:          "FILLED",
	StatusInProgress:      "IN_PROGRESS",
	StatusCompleted:       "COMPLETED",
	StatusCancelled:       "CANCELLED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Validate rejects StatusUnknown and out-of-range values.
func (s Status) Validate() error {
	if _, ok := statusNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%d is not a valid master order status", s))
	}
	return nil
}

// AcceptsBids reports whether new capacity can be allocated.
func (s Status) AcceptsBids() bool {
	return s == StatusOpen || s == StatusPartiallyFilled
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus maps a persisted or wire name back to a Status.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return StatusUnknown, errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%q is not a valid master order status", name))
}

// PartialStatus is the lifecycle state of a PartialOrder.
//
//	AVAILABLE/BIDDING ──> AWARDED ──> IN_PROGRESS ──> COMPLETED
//	        │                │             │
//	        └────────────────┴─────────────┴──> CANCELLED
type PartialStatus int

const (
	PartialUnknown PartialStatus = iota
	PartialAvailable
	PartialBidding
	PartialAwarded
	PartialInProgress
	PartialCompleted
	PartialCancelled
)

var partialStatusNames = map[PartialStatus]string{
	PartialAvailable:  "AVAILABLE",
	PartialBidding:    "BIDDING",
	PartialAwarded:    "AWARDED",
	PartialInProgress: "IN_PROGRESS",
	PartialCompleted:  "COMPLETED",
	PartialCancelled:  "CANCELLED",
}

func (s PartialStatus) String() string {
	if name, ok := partialStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Validate rejects PartialUnknown and out-of-range values.
func (s PartialStatus) Validate() error {
	if _, ok := partialStatusNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("partialStatus", fmt.Errorf("%d is not a valid partial order status", s))
	}
	return nil
}

// IsPending is true for allocated capacity that no carrier has been awarded yet.
func (s PartialStatus) IsPending() bool {
	return s == PartialAvailable || s == PartialBidding
}

// IsCommitted is true once a carrier holds the allocation.
func (s PartialStatus) IsCommitted() bool {
	return s == PartialAwarded || s == PartialInProgress || s == PartialCompleted
}

// IsActive is true for every status that still consumes capacity.
func (s PartialStatus) IsActive() bool {
	return s.IsPending() || s.IsCommitted()
}

// ParsePartialStatus maps a persisted or wire name back to a PartialStatus.
func ParsePartialStatus(name string) (PartialStatus, error) {
	for s, n := range partialStatusNames {
		if n == name {
			return s, nil
		}
	}
	return PartialUnknown, errs.NewValueIsInvalidErrorWithCause("partialStatus", fmt.Errorf("%q is not a valid partial order status", name))
}

// award moves a pending partial order to AWARDED.
func (s PartialStatus) award() (PartialStatus, error) {
	if !s.IsPending() {
		return PartialUnknown, fmt.Errorf("%w: cannot award partial order in %s", ErrInvalidTransition, s)
	}
	return PartialAwarded, nil
}

// start moves an awarded partial order to IN_PROGRESS.
func (s PartialStatus) start() (PartialStatus, error) {
	if s != PartialAwarded {
		return PartialUnknown, fmt.Errorf("%w: cannot start partial order in %s", ErrInvalidTransition, s)
	}
	return PartialInProgress, nil
}

// complete moves a running partial order to COMPLETED.
func (s PartialStatus) complete() (PartialStatus, error) {
	if s != PartialInProgress {
		return PartialUnknown, fmt.Errorf("%w: cannot complete partial order in %s", ErrInvalidTransition, s)
	}
	return PartialCompleted, nil
}

// withdraw cancels a pending partial order.
func (s PartialStatus) withdraw() (PartialStatus, error) {
	if !s.IsPending() {
		return PartialUnknown, fmt.Errorf("%w: cannot withdraw partial order in %s", ErrInvalidTransition, s)
	}
	return PartialCancelled, nil
}
