package order

import (
	"time"

	"freight/internal/core/domain/model/kernel"

	"github.com/shopspring/decimal"
)

// Event names, also used as the trigger of progress snapshots.
const (
	EventMasterOrderCreated    = "master_order.created"
	EventBidPlaced             = "bid.placed"
	EventPartialOrderAwarded   = "partial_order.awarded"
	EventPartialOrderStarted   = "partial_order.started"
	EventPartialOrderCompleted = "partial_order.completed"
	EventPartialOrderWithdrawn = "partial_order.withdrawn"
	EventMasterOrderCancelled  = "master_order.cancelled"
	EventProgressQueried       = "progress.queried"
)

// DomainEvent is one of the event variants below, recorded by the aggregate
// and handed to collaborators after the transaction commits.
type DomainEvent interface {
	EventName() string
	MasterOrderID() kernel.UUID
	OccurredAt() time.Time
}

type eventHeader struct {
	OrderID kernel.UUID `json:"masterOrderId"`
	At      time.Time   `json:"occurredAt"`
}

func (h eventHeader) MasterOrderID() kernel.UUID { return h.OrderID }
func (h eventHeader) OccurredAt() time.Time      { return h.At }

// MasterOrderCreated is emitted when a shipper posts an order.
type MasterOrderCreated struct {
	eventHeader
	ShipperID   kernel.UUID `json:"shipperId"`
	TotalWeight float64     `json:"totalWeight"`
	TotalVolume float64     `json:"totalVolume"`
	Deadline    time.Time   `json:"deadline"`
}

func (MasterOrderCreated) EventName() string { return EventMasterOrderCreated }

// BidPlaced is emitted when a bid is committed and its capacity allocated.
type BidPlaced struct {
	eventHeader
	BidID          kernel.UUID     `json:"bidId"`
	PartialOrderID kernel.UUID     `json:"partialOrderId"`
	CarrierID      kernel.UUID     `json:"carrierId"`
	Weight         float64         `json:"weight"`
	Volume         float64         `json:"volume"`
	Amount         decimal.Decimal `json:"amount"`
	HighRisk       bool            `json:"highRisk"`
}

func (BidPlaced) EventName() string { return EventBidPlaced }

// PartialOrderChanged is emitted for award, start, complete and withdrawal.
type PartialOrderChanged struct {
	eventHeader
	Name           string      `json:"event"`
	PartialOrderID kernel.UUID `json:"partialOrderId"`
	Status         string      `json:"status"`
}

func (e PartialOrderChanged) EventName() string { return e.Name }

// MasterOrderCancelled is emitted when an order and its open allocations are cancelled.
type MasterOrderCancelled struct {
	eventHeader
	CancelledPartialOrders []kernel.UUID `json:"cancelledPartialOrders"`
}

func (MasterOrderCancelled) EventName() string { return EventMasterOrderCancelled }
