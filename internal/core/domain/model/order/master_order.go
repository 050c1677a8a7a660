package order

import (
	"errors"
	"fmt"
	"math"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

// MasterOrderParams is the shipper's description of a new master order.
type MasterOrderParams struct {
	ShipperID         kernel.UUID
	Cargo             Cargo
	TotalWeight       float64
	TotalVolume       float64
	Route             kernel.Route
	Deadline          time.Time
	MaxBidAmount      decimal.Decimal
	LTLEnabled        bool
	MinLoadPercentage float64
}

// MasterOrder is the aggregate root of the ledger. It owns its partial
// orders and bids and is the only place remaining capacity changes.
//
// Invariants, checked after every mutation:
//   - remainingWeight and remainingVolume are never negative
//   - remaining + sum of active partial orders equals the total, per dimension
//
// Every successful mutation bumps version and records a DomainEvent that the
// application layer pulls with PullEvents once the transaction commits.
type MasterOrder struct {
	id                kernel.UUID
	shipperID         kernel.UUID
	cargo             Cargo
	totalWeight       float64
	totalVolume       float64
	remainingWeight   float64
	remainingVolume   float64
	route             kernel.Route
	deadline          time.Time
	maxBidAmount      decimal.Decimal
	ltlEnabled        bool
	minLoadPercentage float64
	status            Status
	partials          []*PartialOrder
	bids              []*Bid
	version           int64
	createdAt         time.Time
	updatedAt         time.Time

	events        []DomainEvent
	isConstructed bool
}

// NewMasterOrder validates params and opens the order with all capacity remaining.
//
// Example:
//
//	mo, err := order.NewMasterOrder(kernel.NewUUID(), order.MasterOrderParams{
//	    ShipperID:   shipperID,
//	    Cargo:       cargo,
//	    TotalWeight: 1000,
//	    TotalVolume: 40,
//	    Route:       route,
//	    Deadline:    now.Add(72 * time.Hour),
//	    LTLEnabled:  true,
//	}, now)
func NewMasterOrder(id kernel.UUID, p MasterOrderParams, now time.Time) (*MasterOrder, error) {
	mo := &MasterOrder{
		status:        StatusOpen,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
		isConstructed: true,
	}

	if err := errors.Join(
		mo.setID(id),
		mo.setShipper(p.ShipperID),
		mo.setCargo(p.Cargo),
		mo.setCapacity(p.TotalWeight, p.TotalVolume),
		mo.setRoute(p.Route),
		mo.setDeadline(p.Deadline),
		mo.setMaxBidAmount(p.MaxBidAmount),
		mo.setMinLoadPercentage(p.MinLoadPercentage),
	); err != nil {
		return nil, err
	}

	mo.ltlEnabled = p.LTLEnabled
	mo.remainingWeight = mo.totalWeight
	mo.remainingVolume = mo.totalVolume

	mo.record(MasterOrderCreated{
		eventHeader: eventHeader{OrderID: mo.id, At: now},
		ShipperID:   mo.shipperID,
		TotalWeight: mo.totalWeight,
		TotalVolume: mo.totalVolume,
		Deadline:    mo.deadline,
	})
	return mo, nil
}

// MasterOrderState carries persisted master order fields into RestoreMasterOrder.
type MasterOrderState struct {
	ID              kernel.UUID
	Params          MasterOrderParams
	RemainingWeight float64
	RemainingVolume float64
	Status          Status
	Partials        []*PartialOrder
	Bids            []*Bid
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RestoreMasterOrder rebuilds an aggregate loaded from storage. A stored row
// that breaks the capacity invariants is rejected rather than repaired.
func RestoreMasterOrder(s MasterOrderState) (*MasterOrder, error) {
	mo := &MasterOrder{isConstructed: true}

	var versionErr error
	if s.Version < 1 {
		versionErr = errs.NewValueIsOutOfRangeError("version", s.Version, 1, math.MaxInt64)
	}

	if err := errors.Join(
		mo.setID(s.ID),
		mo.setShipper(s.Params.ShipperID),
		mo.setCargo(s.Params.Cargo),
		mo.setCapacity(s.Params.TotalWeight, s.Params.TotalVolume),
		mo.setRoute(s.Params.Route),
		mo.setDeadline(s.Params.Deadline),
		mo.setMaxBidAmount(s.Params.MaxBidAmount),
		mo.setMinLoadPercentage(s.Params.MinLoadPercentage),
		s.Status.Validate(),
		versionErr,
	); err != nil {
		return nil, err
	}

	mo.ltlEnabled = s.Params.LTLEnabled
	mo.remainingWeight = s.RemainingWeight
	mo.remainingVolume = s.RemainingVolume
	mo.status = s.Status
	mo.partials = s.Partials
	mo.bids = s.Bids
	mo.version = s.Version
	mo.createdAt = s.CreatedAt
	mo.updatedAt = s.UpdatedAt

	for _, p := range mo.partials {
		if !p.masterOrderID.IsEqual(mo.id) {
			return nil, fmt.Errorf("%w: partial order %s belongs to %s", ErrInvariantViolation, p.id, p.masterOrderID)
		}
	}

	if err := mo.CheckInvariants(); err != nil {
		return nil, err
	}
	return mo, nil
}

// Validate fails for aggregates not built by NewMasterOrder or RestoreMasterOrder.
func (mo *MasterOrder) Validate() error {
	if mo == nil || !mo.isConstructed {
		return ErrMasterOrderIsNotConstructed
	}
	return nil
}

// IsEqual compares master orders by identity.
func (mo *MasterOrder) IsEqual(other *MasterOrder) bool {
	return other != nil && mo.id.IsEqual(other.id)
}

func (mo *MasterOrder) ID() kernel.UUID               { return mo.id }
func (mo *MasterOrder) ShipperID() kernel.UUID        { return mo.shipperID }
func (mo *MasterOrder) Cargo() Cargo                  { return mo.cargo }
func (mo *MasterOrder) TotalWeight() float64          { return mo.totalWeight }
func (mo *MasterOrder) TotalVolume() float64          { return mo.totalVolume }
func (mo *MasterOrder) RemainingWeight() float64      { return mo.remainingWeight }
func (mo *MasterOrder) RemainingVolume() float64      { return mo.remainingVolume }
func (mo *MasterOrder) Route() kernel.Route           { return mo.route }
func (mo *MasterOrder) Deadline() time.Time           { return mo.deadline }
func (mo *MasterOrder) MaxBidAmount() decimal.Decimal { return mo.maxBidAmount }
func (mo *MasterOrder) LTLEnabled() bool              { return mo.ltlEnabled }
func (mo *MasterOrder) MinLoadPercentage() float64    { return mo.minLoadPercentage }
func (mo *MasterOrder) Status() Status                { return mo.status }
func (mo *MasterOrder) Version() int64                { return mo.version }
func (mo *MasterOrder) CreatedAt() time.Time          { return mo.createdAt }
func (mo *MasterOrder) UpdatedAt() time.Time          { return mo.updatedAt }
func (mo *MasterOrder) PartialOrders() []*PartialOrder {
	return append([]*PartialOrder(nil), mo.partials...)
}
func (mo *MasterOrder) Bids() []*Bid { return append([]*Bid(nil), mo.bids...) }

// PartialOrder looks up an owned partial order.
func (mo *MasterOrder) PartialOrder(id kernel.UUID) (*PartialOrder, error) {
	for _, p := range mo.partials {
		if p.id.IsEqual(id) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in master order %s", ErrPartialOrderNotFound, id, mo.id)
}

// Bid looks up an owned bid.
func (mo *MasterOrder) Bid(id kernel.UUID) (*Bid, bool) {
	for _, b := range mo.bids {
		if b.id.IsEqual(id) {
			return b, true
		}
	}
	return nil, false
}

// ValidateBid runs the local bid preconditions in order: open status,
// capacity, minimum load, maximum amount. Compliance and price checks
// belong to collaborators and run after this succeeds.
func (mo *MasterOrder) ValidateBid(t BidTerms) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if !mo.status.AcceptsBids() {
		return fmt.Errorf("%w: master order %s is %s", ErrMasterOrderNotOpen, mo.id, mo.status)
	}

	if exceeds(t.weight, mo.remainingWeight, mo.totalWeight) || exceeds(t.volume, mo.remainingVolume, mo.totalVolume) {
		return fmt.Errorf("%w: requested %.3f/%.3f, remaining %.3f/%.3f",
			ErrCapacityExceeded, t.weight, t.volume, mo.remainingWeight, mo.remainingVolume)
	}

	fillsRemainder := mo.fillsRemainder(t.weight)
	if !mo.ltlEnabled && !fillsRemainder {
		return fmt.Errorf("%w: LTL is disabled, bid must take the remaining %.3f",
			ErrBelowMinimumLoad, mo.remainingWeight)
	}
	if share := t.weight / mo.totalWeight; share < mo.minLoadPercentage && !fillsRemainder {
		return fmt.Errorf("%w: %.4f of total is below %.4f", ErrBelowMinimumLoad, share, mo.minLoadPercentage)
	}

	if mo.maxBidAmount.IsPositive() && t.amount.GreaterThan(mo.maxBidAmount) {
		return fmt.Errorf("%w: %s > %s", ErrBidAmountExceedsMaximum, t.amount, mo.maxBidAmount)
	}
	return nil
}

// CommitBid allocates capacity for an accepted bid. It re-runs ValidateBid,
// creates the bid and its AVAILABLE partial order, decrements remaining
// capacity and moves the order to PARTIALLY_FILLED or FILLED.
func (mo *MasterOrder) CommitBid(t BidTerms, assessment PriceAssessment, at time.Time) (*Bid, *PartialOrder, error) {
	if err := mo.ValidateBid(t); err != nil {
		return nil, nil, err
	}

	partialID := kernel.NewUUID()
	bid := &Bid{
		id:                    kernel.NewUUID(),
		carrierID:             t.carrierID,
		partialOrderID:        &partialID,
		amount:                t.amount,
		proposedDeliveryDate:  t.proposedDeliveryDate,
		hazardous:             t.hazardous,
		temperatureControlled: t.temperatureControlled,
		assessment:            assessment,
		createdAt:             at,
	}
	partial := &PartialOrder{
		id:               partialID,
		masterOrderID:    mo.id,
		weight:           t.weight,
		volume:           t.volume,
		percentage:       math.Min(t.weight/mo.totalWeight, 1),
		status:           PartialAvailable,
		originatingBidID: bid.id,
	}

	if mo.fillsRemainder(t.weight) {
		mo.remainingWeight = 0
	} else {
		mo.remainingWeight -= t.weight
	}
	if math.Abs(t.volume-mo.remainingVolume) <= epsilon*mo.totalVolume {
		mo.remainingVolume = 0
	} else {
		mo.remainingVolume -= t.volume
	}

	mo.partials = append(mo.partials, partial)
	mo.bids = append(mo.bids, bid)
	mo.recomputeStatus()

	if err := mo.CheckInvariants(); err != nil {
		return nil, nil, err
	}

	mo.touch(at)
	mo.record(BidPlaced{
		eventHeader:    eventHeader{OrderID: mo.id, At: at},
		BidID:          bid.id,
		PartialOrderID: partial.id,
		CarrierID:      bid.carrierID,
		Weight:         partial.weight,
		Volume:         partial.volume,
		Amount:         bid.amount,
		HighRisk:       assessment.HighRisk,
	})
	return bid, partial, nil
}

// Award hands a pending partial order to the carrier of its originating bid.
func (mo *MasterOrder) Award(partialID kernel.UUID, at time.Time) error {
	p, err := mo.mutablePartial(partialID)
	if err != nil {
		return err
	}
	if err := p.transition(PartialStatus.award); err != nil {
		return err
	}

	bidID := p.originatingBidID
	p.assignedBid = &bidID
	if b, ok := mo.Bid(bidID); ok {
		carrierID := b.carrierID
		p.assignedCarrier = &carrierID
	}

	return mo.afterPartialChange(p, EventPartialOrderAwarded, at)
}

// Start marks an awarded partial order as picked up.
func (mo *MasterOrder) Start(partialID kernel.UUID, at time.Time) error {
	p, err := mo.mutablePartial(partialID)
	if err != nil {
		return err
	}
	if err := p.transition(PartialStatus.start); err != nil {
		return err
	}
	return mo.afterPartialChange(p, EventPartialOrderStarted, at)
}

// Complete marks a running partial order as delivered.
func (mo *MasterOrder) Complete(partialID kernel.UUID, at time.Time) error {
	p, err := mo.mutablePartial(partialID)
	if err != nil {
		return err
	}
	if err := p.transition(PartialStatus.complete); err != nil {
		return err
	}
	return mo.afterPartialChange(p, EventPartialOrderCompleted, at)
}

// Withdraw cancels a pending partial order and returns its capacity.
// Capacity can only be returned while the order is still being allocated.
func (mo *MasterOrder) Withdraw(partialID kernel.UUID, at time.Time) error {
	if mo.status != StatusOpen && mo.status != StatusPartiallyFilled && mo.status != StatusFilled {
		return fmt.Errorf("%w: cannot withdraw from master order in %s", ErrInvalidTransition, mo.status)
	}

	p, err := mo.PartialOrder(partialID)
	if err != nil {
		return err
	}
	if err := p.transition(PartialStatus.withdraw); err != nil {
		return err
	}

	mo.remainingWeight += p.weight
	mo.remainingVolume += p.volume
	return mo.afterPartialChange(p, EventPartialOrderWithdrawn, at)
}

// Cancel cancels the order and every partial order that is not finished.
// Capacity of cancelled partial orders is returned so the invariants keep holding.
func (mo *MasterOrder) Cancel(at time.Time) error {
	if mo.status.IsTerminal() {
		return fmt.Errorf("%w: cannot cancel master order in %s", ErrInvalidTransition, mo.status)
	}

	cancelled := make([]kernel.UUID, 0, len(mo.partials))
	for _, p := range mo.partials {
		if p.status == PartialCompleted || p.status == PartialCancelled {
			continue
		}
		mo.remainingWeight += p.weight
		mo.remainingVolume += p.volume
		p.status = PartialCancelled
		cancelled = append(cancelled, p.id)
	}
	mo.status = StatusCancelled

	if err := mo.CheckInvariants(); err != nil {
		return err
	}

	mo.touch(at)
	mo.record(MasterOrderCancelled{
		eventHeader:            eventHeader{OrderID: mo.id, At: at},
		CancelledPartialOrders: cancelled,
	})
	return nil
}

// CheckInvariants verifies the capacity accounting. A failure is a defect.
func (mo *MasterOrder) CheckInvariants() error {
	if mo.remainingWeight < -epsilon*mo.totalWeight || mo.remainingVolume < -epsilon*mo.totalVolume {
		return fmt.Errorf("%w: negative remaining capacity %.6f/%.6f on %s",
			ErrInvariantViolation, mo.remainingWeight, mo.remainingVolume, mo.id)
	}

	var activeWeight, activeVolume float64
	for _, p := range mo.partials {
		if p.status.IsActive() {
			activeWeight += p.weight
			activeVolume += p.volume
		}
	}

	if !approxEqual(mo.remainingWeight+activeWeight, mo.totalWeight) ||
		!approxEqual(mo.remainingVolume+activeVolume, mo.totalVolume) {
		return fmt.Errorf("%w: remaining %.6f/%.6f plus allocated %.6f/%.6f does not match total %.6f/%.6f on %s",
			ErrInvariantViolation,
			mo.remainingWeight, mo.remainingVolume, activeWeight, activeVolume,
			mo.totalWeight, mo.totalVolume, mo.id)
	}
	return nil
}

// PullEvents returns and clears the events recorded since the last pull.
func (mo *MasterOrder) PullEvents() []DomainEvent {
	events := mo.events
	mo.events = nil
	return events
}

func (mo *MasterOrder) mutablePartial(partialID kernel.UUID) (*PartialOrder, error) {
	if mo.status.IsTerminal() {
		return nil, fmt.Errorf("%w: master order %s is %s", ErrInvalidTransition, mo.id, mo.status)
	}
	return mo.PartialOrder(partialID)
}

func (mo *MasterOrder) afterPartialChange(p *PartialOrder, event string, at time.Time) error {
	mo.recomputeStatus()
	if err := mo.CheckInvariants(); err != nil {
		return err
	}

	mo.touch(at)
	mo.record(PartialOrderChanged{
		eventHeader:    eventHeader{OrderID: mo.id, At: at},
		Name:           event,
		PartialOrderID: p.id,
		Status:         p.status.String(),
	})
	return nil
}

// recomputeStatus derives the master status from capacity and partial states.
// It never touches a CANCELLED order.
func (mo *MasterOrder) recomputeStatus() {
	if mo.status == StatusCancelled {
		return
	}

	var active, running, completed int
	for _, p := range mo.partials {
		if !p.status.IsActive() {
			continue
		}
		active++
		switch p.status {
		case PartialInProgress:
			running++
		case PartialCompleted:
			completed++
		}
	}

	switch {
	case mo.remainingWeight <= epsilon*mo.totalWeight && active > 0:
		switch {
		case completed == active:
			mo.status = StatusCompleted
		case running+completed > 0:
			mo.status = StatusInProgress
		default:
			mo.status = StatusFilled
		}
	case active > 0:
		mo.status = StatusPartiallyFilled
	default:
		mo.status = StatusOpen
	}
}

func (mo *MasterOrder) fillsRemainder(weight float64) bool {
	return math.Abs(weight-mo.remainingWeight) <= epsilon*mo.totalWeight
}

func (mo *MasterOrder) touch(at time.Time) {
	mo.version++
	mo.updatedAt = at
}

func (mo *MasterOrder) record(e DomainEvent) {
	mo.events = append(mo.events, e)
}

func (mo *MasterOrder) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	mo.id = id
	return nil
}

func (mo *MasterOrder) setShipper(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("shipperID", err)
	}
	mo.shipperID = id
	return nil
}

func (mo *MasterOrder) setCargo(c Cargo) error {
	if c.description == "" {
		return errs.NewValueIsRequiredError("cargoDescription")
	}
	mo.cargo = c
	return nil
}

func (mo *MasterOrder) setCapacity(weight, volume float64) error {
	if err := errors.Join(positive("totalWeight", weight), positive("totalVolume", volume)); err != nil {
		return err
	}
	mo.totalWeight = weight
	mo.totalVolume = volume
	return nil
}

func (mo *MasterOrder) setRoute(r kernel.Route) error {
	if err := r.Validate(); err != nil {
		return err
	}
	mo.route = r
	return nil
}

func (mo *MasterOrder) setDeadline(deadline time.Time) error {
	if deadline.IsZero() {
		return errs.NewValueIsRequiredError("deadline")
	}
	mo.deadline = deadline
	return nil
}

// setMaxBidAmount accepts zero as "no maximum".
func (mo *MasterOrder) setMaxBidAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errs.NewValueIsInvalidErrorWithCause("maxBidAmount", fmt.Errorf("%s is negative", amount))
	}
	if err := validateMoney("maxBidAmount", amount); err != nil {
		return err
	}
	mo.maxBidAmount = amount
	return nil
}

func (mo *MasterOrder) setMinLoadPercentage(pct float64) error {
	if math.IsNaN(pct) || pct < 0 || pct > 1 {
		return errs.NewValueIsOutOfRangeError("minLoadPercentage", pct, 0, 1)
	}
	mo.minLoadPercentage = pct
	return nil
}

func exceeds(requested, remaining, total float64) bool {
	return requested > remaining+epsilon*total
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}
