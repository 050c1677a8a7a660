package services

import (
	"fmt"
	"time"

	"freight/internal/core/domain/model/order"
)

// Recommendation codes.
const (
	RecommendIncreasePrice    = "INCREASE_PRICE"
	RecommendExtendDeadline   = "EXTEND_DEADLINE"
	RecommendLowerMinimumLoad = "LOWER_MINIMUM_LOAD"
	RecommendReviewRiskyBids  = "REVIEW_HIGH_RISK_BIDS"
	RecommendAwardPending     = "AWARD_PENDING_BIDS"
	RecommendDeadlineMissed   = "DEADLINE_MISSED"
)

// Recommendation is a textual hint for the shipper.
type Recommendation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ProgressAdvisor derives recommendations from a master order and its snapshot.
//
// Rules, each producing at most one hint:
//   - less than half allocated with under 48h left: raise the price
//   - no partial orders with under 24h left: extend the deadline
//   - open capacity smaller than the minimum load: lower the minimum
//   - any high-risk bid: review flagged bids
//   - filled with pending partial orders: award them
//   - deadline passed and not fully committed: deadline missed
type ProgressAdvisor struct{}

// NewProgressAdvisor creates a ProgressAdvisor.
func NewProgressAdvisor() ProgressAdvisor {
	return ProgressAdvisor{}
}

// Advise never returns nil; an order with nothing to say gets an empty list.
func (ProgressAdvisor) Advise(mo *order.MasterOrder, snap order.ProgressSnapshot, now time.Time) []Recommendation {
	out := make([]Recommendation, 0)
	if mo.Status().IsTerminal() {
		return out
	}

	left := mo.Deadline().Sub(now)
	allocated := snap.AllocatedPercentage()

	if allocated < 0.5 && left > 0 && left < 48*time.Hour {
		out = append(out, Recommendation{
			Code: RecommendIncreasePrice,
			Message: fmt.Sprintf("only %.0f%% allocated with %s to the deadline, consider raising the price",
				allocated*100, left.Round(time.Hour)),
		})
	}

	if snap.PartialOrderCount == 0 && left > 0 && left < 24*time.Hour {
		out = append(out, Recommendation{
			Code:    RecommendExtendDeadline,
			Message: "no carrier has bid yet and the deadline is less than 24h away, consider extending it",
		})
	}

	if open := snap.Weight.OpenPercentage; open > 0 && open < mo.MinLoadPercentage() {
		out = append(out, Recommendation{
			Code: RecommendLowerMinimumLoad,
			Message: fmt.Sprintf("open capacity %.1f%% is below the minimum load %.1f%%, consider lowering it",
				open*100, mo.MinLoadPercentage()*100),
		})
	}

	if n := len(snap.RiskFlags); n > 0 {
		out = append(out, Recommendation{
			Code:    RecommendReviewRiskyBids,
			Message: fmt.Sprintf("%d bid(s) deviate strongly from the market median, review them before awarding", n),
		})
	}

	if mo.Status() == order.StatusFilled && snap.Weight.Pending > 0 {
		out = append(out, Recommendation{
			Code:    RecommendAwardPending,
			Message: "the order is fully allocated, award the pending bids",
		})
	}

	if left <= 0 && snap.Weight.CommittedPercentage < 1-1e-9 {
		out = append(out, Recommendation{
			Code:    RecommendDeadlineMissed,
			Message: fmt.Sprintf("the deadline passed with %.0f%% committed", snap.Weight.CommittedPercentage*100),
		})
	}

	return out
}
