package order

import (
	"errors"
	"fmt"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/pkg/errs"
)

// PartialOrder is a carrier-committed slice of a master order's capacity.
// It is owned by its MasterOrder and only mutated through it.
type PartialOrder struct {
	id               kernel.UUID
	masterOrderID    kernel.UUID
	weight           float64
	volume           float64
	percentage       float64
	status           PartialStatus
	assignedCarrier  *kernel.UUID
	assignedBid      *kernel.UUID
	originatingBidID kernel.UUID
}

// PartialOrderState carries persisted partial order fields into RestorePartialOrder.
type PartialOrderState struct {
	ID               kernel.UUID
	MasterOrderID    kernel.UUID
	Weight           float64
	Volume           float64
	Percentage       float64
	Status           PartialStatus
	AssignedCarrier  *kernel.UUID
	AssignedBid      *kernel.UUID
	OriginatingBidID kernel.UUID
}

// RestorePartialOrder rebuilds a partial order loaded from storage.
func RestorePartialOrder(s PartialOrderState) (*PartialOrder, error) {
	var pctErr error
	if !(s.Percentage > 0) || s.Percentage > 1+epsilon {
		pctErr = errs.NewValueIsOutOfRangeError("percentage", s.Percentage, 0, 1)
	}

	if err := errors.Join(
		s.ID.Validate(),
		s.MasterOrderID.Validate(),
		s.OriginatingBidID.Validate(),
		positive("weight", s.Weight),
		positive("volume", s.Volume),
		pctErr,
		s.Status.Validate(),
	); err != nil {
		return nil, err
	}

	return &PartialOrder{
		id:               s.ID,
		masterOrderID:    s.MasterOrderID,
		weight:           s.Weight,
		volume:           s.Volume,
		percentage:       s.Percentage,
		status:           s.Status,
		assignedCarrier:  s.AssignedCarrier,
		assignedBid:      s.AssignedBid,
		originatingBidID: s.OriginatingBidID,
	}, nil
}

func (p *PartialOrder) ID() kernel.UUID               { return p.id }
func (p *PartialOrder) MasterOrderID() kernel.UUID    { return p.masterOrderID }
func (p *PartialOrder) Weight() float64               { return p.weight }
func (p *PartialOrder) Volume() float64               { return p.volume }
func (p *PartialOrder) Percentage() float64           { return p.percentage }
func (p *PartialOrder) Status() PartialStatus         { return p.status }
func (p *PartialOrder) AssignedCarrier() *kernel.UUID { return p.assignedCarrier }
func (p *PartialOrder) AssignedBid() *kernel.UUID     { return p.assignedBid }

// OriginatingBidID is the bid whose acceptance created this allocation.
func (p *PartialOrder) OriginatingBidID() kernel.UUID { return p.originatingBidID }

func (p *PartialOrder) transition(next func(PartialStatus) (PartialStatus, error)) error {
	status, err := next(p.status)
	if err != nil {
		return fmt.Errorf("partial order %s: %w", p.id, err)
	}
	p.status = status
	return nil
}
