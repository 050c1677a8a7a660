package order

import (
	"fmt"
	"math"
	"time"

	"freight/internal/core/domain/model/kernel"
)

// percentageTolerance bounds how far the three shares may drift from 1.
const percentageTolerance = 1e-6

// Breakdown splits one capacity dimension into committed, pending and open shares.
// Percentages are fractions of Total.
type Breakdown struct {
	Total               float64 `json:"total"`
	Committed           float64 `json:"committed"`
	Pending             float64 `json:"pending"`
	Open                float64 `json:"open"`
	CommittedPercentage float64 `json:"committedPercentage"`
	PendingPercentage   float64 `json:"pendingPercentage"`
	OpenPercentage      float64 `json:"openPercentage"`
}

// RiskFlag surfaces a bid priced far from the market median.
type RiskFlag struct {
	BidID            kernel.UUID `json:"bidId"`
	PartialOrderID   kernel.UUID `json:"partialOrderId"`
	DeviationPercent float64     `json:"deviationPercent"`
	MedianPrice      float64     `json:"medianPrice"`
	Reason           string      `json:"reason"`
}

// ProgressSnapshot is the derived fill state of a master order at one version.
// It is rebuilt on every change and never mutated.
type ProgressSnapshot struct {
	OrderID           kernel.UUID `json:"orderId"`
	Version           int64       `json:"version"`
	Weight            Breakdown   `json:"weight"`
	Volume            Breakdown   `json:"volume"`
	ProgressStatus    string      `json:"progressStatus"`
	PartialOrderCount int         `json:"partialOrderCount"`
	RiskFlags         []RiskFlag  `json:"riskFlags"`
	TriggerEvent      string      `json:"triggerEvent"`
	GeneratedAt       time.Time   `json:"generatedAt"`
}

// IsNewerThan orders snapshots of the same order by version.
func (s ProgressSnapshot) IsNewerThan(other ProgressSnapshot) bool {
	return s.Version > other.Version
}

// AllocatedPercentage is the committed plus pending weight share.
func (s ProgressSnapshot) AllocatedPercentage() float64 {
	return s.Weight.CommittedPercentage + s.Weight.PendingPercentage
}

// Progress computes the snapshot for the current state of the aggregate.
// It fails with ErrInvariantViolation when the shares do not add up.
func (mo *MasterOrder) Progress(trigger string, at time.Time) (ProgressSnapshot, error) {
	if err := mo.CheckInvariants(); err != nil {
		return ProgressSnapshot{}, err
	}

	weight := Breakdown{Total: mo.totalWeight, Open: mo.remainingWeight}
	volume := Breakdown{Total: mo.totalVolume, Open: mo.remainingVolume}
	flags := make([]RiskFlag, 0)
	count := 0

	for _, p := range mo.partials {
		switch {
		case p.status.IsCommitted():
			weight.Committed += p.weight
			volume.Committed += p.volume
		case p.status.IsPending():
			weight.Pending += p.weight
			volume.Pending += p.volume
		default:
			continue
		}
		count++

		if b, ok := mo.Bid(p.originatingBidID); ok && b.assessment.HighRisk {
			flags = append(flags, RiskFlag{
				BidID:            b.id,
				PartialOrderID:   p.id,
				DeviationPercent: b.assessment.DeviationPercent,
				MedianPrice:      b.assessment.MedianPrice,
				Reason:           b.assessment.Reason,
			})
		}
	}

	if err := weight.fill(); err != nil {
		return ProgressSnapshot{}, fmt.Errorf("weight of %s: %w", mo.id, err)
	}
	if err := volume.fill(); err != nil {
		return ProgressSnapshot{}, fmt.Errorf("volume of %s: %w", mo.id, err)
	}

	return ProgressSnapshot{
		OrderID:           mo.id,
		Version:           mo.version,
		Weight:            weight,
		Volume:            volume,
		ProgressStatus:    mo.status.String(),
		PartialOrderCount: count,
		RiskFlags:         flags,
		TriggerEvent:      trigger,
		GeneratedAt:       at,
	}, nil
}

func (b *Breakdown) fill() error {
	b.CommittedPercentage = b.Committed / b.Total
	b.PendingPercentage = b.Pending / b.Total
	b.OpenPercentage = b.Open / b.Total

	sum := b.CommittedPercentage + b.PendingPercentage + b.OpenPercentage
	if math.IsNaN(sum) || math.Abs(sum-1) > percentageTolerance {
		return fmt.Errorf("%w: percentages sum to %.9f", ErrInvariantViolation, sum)
	}
	return nil
}
