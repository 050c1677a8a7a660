// Package masterorderrepo maps master order aggregates, with their partial
// orders and bids, onto three tables.
package masterorderrepo

import (
	"errors"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MasterOrderDTO is a row of master_orders.
type MasterOrderDTO struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShipperID         uuid.UUID `gorm:"type:uuid;index"`
	Cargo             CargoDTO  `gorm:"embedded;embeddedPrefix:cargo_"`
	TotalWeight       float64
	TotalVolume       float64
	RemainingWeight   float64
	RemainingVolume   float64
	Route             RouteDTO `gorm:"embedded;embeddedPrefix:route_"`
	Deadline          time.Time
	MaxBidAmount      decimal.Decimal `gorm:"type:numeric(14,2)"`
	LTLEnabled        bool
	MinLoadPercentage float64
	Status            string `gorm:"type:varchar(32);index"`
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Partials []PartialOrderDTO `gorm:"foreignKey:MasterOrderID;constraint:OnDelete:CASCADE"`
	Bids     []BidDTO          `gorm:"foreignKey:MasterOrderID;constraint:OnDelete:CASCADE"`
}

func (MasterOrderDTO) TableName() string {
	return "master_orders"
}

// CargoDTO is embedded into master_orders.
type CargoDTO struct {
	Description           string
	Hazardous             bool
	TemperatureControlled bool
}

// RouteDTO is embedded into master_orders. The coordinate columns are
// indexed for the route price history scan.
type RouteDTO struct {
	PickupLatitude    float64 `gorm:"index:idx_master_orders_pickup"`
	PickupLongitude   float64 `gorm:"index:idx_master_orders_pickup"`
	PickupAddress     string
	DeliveryLatitude  float64 `gorm:"index:idx_master_orders_delivery"`
	DeliveryLongitude float64 `gorm:"index:idx_master_orders_delivery"`
	DeliveryAddress   string
}

// PartialOrderDTO is a row of partial_orders.
type PartialOrderDTO struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	MasterOrderID     uuid.UUID `gorm:"type:uuid;index"`
	Weight            float64
	Volume            float64
	Percentage        float64
	Status            string     `gorm:"type:varchar(32);index"`
	AssignedCarrierID *uuid.UUID `gorm:"type:uuid"`
	AssignedBidID     *uuid.UUID `gorm:"type:uuid"`
	OriginatingBidID  uuid.UUID  `gorm:"type:uuid"`
}

func (PartialOrderDTO) TableName() string {
	return "partial_orders"
}

// BidDTO is a row of bids. Bids are written once.
type BidDTO struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	MasterOrderID         uuid.UUID       `gorm:"type:uuid;index"`
	CarrierID             uuid.UUID       `gorm:"type:uuid;index"`
	PartialOrderID        *uuid.UUID      `gorm:"type:uuid"`
	Amount                decimal.Decimal `gorm:"type:numeric(14,2)"`
	ProposedDeliveryDate  time.Time
	Hazardous             bool
	TemperatureControlled bool
	MarketMedianPrice     float64
	PriceDeviationPercent float64
	HighRisk              bool
	RiskReason            string
	CreatedAt             time.Time
}

func (BidDTO) TableName() string {
	return "bids"
}

func fromDomain(mo *order.MasterOrder) MasterOrderDTO {
	route := mo.Route()
	dto := MasterOrderDTO{
		ID:        mo.ID().Bytes(),
		ShipperID: mo.ShipperID().Bytes(),
		Cargo: CargoDTO{
			Description:           mo.Cargo().Description(),
			Hazardous:             mo.Cargo().Hazardous(),
			TemperatureControlled: mo.Cargo().TemperatureControlled(),
		},
		TotalWeight:     mo.TotalWeight(),
		TotalVolume:     mo.TotalVolume(),
		RemainingWeight: mo.RemainingWeight(),
		RemainingVolume: mo.RemainingVolume(),
		Route: RouteDTO{
			PickupLatitude:    route.Pickup().Latitude(),
			PickupLongitude:   route.Pickup().Longitude(),
			PickupAddress:     route.PickupAddress(),
			DeliveryLatitude:  route.Delivery().Latitude(),
			DeliveryLongitude: route.Delivery().Longitude(),
			DeliveryAddress:   route.DeliveryAddress(),
		},
		Deadline:          mo.Deadline(),
		MaxBidAmount:      mo.MaxBidAmount(),
		LTLEnabled:        mo.LTLEnabled(),
		MinLoadPercentage: mo.MinLoadPercentage(),
		Status:            mo.Status().String(),
		Version:           mo.Version(),
		CreatedAt:         mo.CreatedAt(),
		UpdatedAt:         mo.UpdatedAt(),
	}

	for _, p := range mo.PartialOrders() {
		dto.Partials = append(dto.Partials, PartialOrderDTO{
			ID:                p.ID().Bytes(),
			MasterOrderID:     dto.ID,
			Weight:            p.Weight(),
			Volume:            p.Volume(),
			Percentage:        p.Percentage(),
			Status:            p.Status().String(),
			AssignedCarrierID: optionalBytes(p.AssignedCarrier()),
			AssignedBidID:     optionalBytes(p.AssignedBid()),
			OriginatingBidID:  p.OriginatingBidID().Bytes(),
		})
	}

	for _, b := range mo.Bids() {
		a := b.Assessment()
		dto.Bids = append(dto.Bids, BidDTO{
			ID:                    b.ID().Bytes(),
			MasterOrderID:         dto.ID,
			CarrierID:             b.CarrierID().Bytes(),
			PartialOrderID:        optionalBytes(b.PartialOrderID()),
			Amount:                b.Amount(),
			ProposedDeliveryDate:  b.ProposedDeliveryDate(),
			Hazardous:             b.Hazardous(),
			TemperatureControlled: b.TemperatureControlled(),
			MarketMedianPrice:     a.MedianPrice,
			PriceDeviationPercent: a.DeviationPercent,
			HighRisk:              a.HighRisk,
			RiskReason:            a.Reason,
			CreatedAt:             b.CreatedAt(),
		})
	}

	return dto
}

func toDomain(dto MasterOrderDTO) (*order.MasterOrder, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	shipperID, err := kernel.UUIDFromBytes(dto.ShipperID[:])
	if err != nil {
		return nil, err
	}
	cargo, err := order.NewCargo(dto.Cargo.Description, dto.Cargo.Hazardous, dto.Cargo.TemperatureControlled)
	if err != nil {
		return nil, err
	}
	route, err := dto.Route.toDomain()
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}

	partials := make([]*order.PartialOrder, 0, len(dto.Partials))
	for _, p := range dto.Partials {
		partial, partialErr := partialToDomain(p)
		if partialErr != nil {
			return nil, partialErr
		}
		partials = append(partials, partial)
	}

	bids := make([]*order.Bid, 0, len(dto.Bids))
	for _, b := range dto.Bids {
		bid, bidErr := bidToDomain(b)
		if bidErr != nil {
			return nil, bidErr
		}
		bids = append(bids, bid)
	}

	return order.RestoreMasterOrder(order.MasterOrderState{
		ID: id,
		Params: order.MasterOrderParams{
			ShipperID:         shipperID,
			Cargo:             cargo,
			TotalWeight:       dto.TotalWeight,
			TotalVolume:       dto.TotalVolume,
			Route:             route,
			Deadline:          dto.Deadline,
			MaxBidAmount:      dto.MaxBidAmount,
			LTLEnabled:        dto.LTLEnabled,
			MinLoadPercentage: dto.MinLoadPercentage,
		},
		RemainingWeight: dto.RemainingWeight,
		RemainingVolume: dto.RemainingVolume,
		Status:          status,
		Partials:        partials,
		Bids:            bids,
		Version:         dto.Version,
		CreatedAt:       dto.CreatedAt,
		UpdatedAt:       dto.UpdatedAt,
	})
}

func (r RouteDTO) toDomain() (kernel.Route, error) {
	pickup, pickupErr := kernel.NewGeoPoint(r.PickupLatitude, r.PickupLongitude)
	delivery, deliveryErr := kernel.NewGeoPoint(r.DeliveryLatitude, r.DeliveryLongitude)
	if err := errors.Join(pickupErr, deliveryErr); err != nil {
		return kernel.Route{}, err
	}
	return kernel.NewRoute(pickup, delivery, r.PickupAddress, r.DeliveryAddress)
}

func partialToDomain(dto PartialOrderDTO) (*order.PartialOrder, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	masterID, err := kernel.UUIDFromBytes(dto.MasterOrderID[:])
	if err != nil {
		return nil, err
	}
	bidID, err := kernel.UUIDFromBytes(dto.OriginatingBidID[:])
	if err != nil {
		return nil, err
	}
	status, err := order.ParsePartialStatus(dto.Status)
	if err != nil {
		return nil, err
	}
	carrier, err := optionalUUID(dto.AssignedCarrierID)
	if err != nil {
		return nil, err
	}
	assignedBid, err := optionalUUID(dto.AssignedBidID)
	if err != nil {
		return nil, err
	}

	return order.RestorePartialOrder(order.PartialOrderState{
		ID:               id,
		MasterOrderID:    masterID,
		Weight:           dto.Weight,
		Volume:           dto.Volume,
		Percentage:       dto.Percentage,
		Status:           status,
		AssignedCarrier:  carrier,
		AssignedBid:      assignedBid,
		OriginatingBidID: bidID,
	})
}

func bidToDomain(dto BidDTO) (*order.Bid, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	carrierID, err := kernel.UUIDFromBytes(dto.CarrierID[:])
	if err != nil {
		return nil, err
	}
	partialID, err := optionalUUID(dto.PartialOrderID)
	if err != nil {
		return nil, err
	}

	return order.RestoreBid(order.BidState{
		ID:                    id,
		CarrierID:             carrierID,
		PartialOrderID:        partialID,
		Amount:                dto.Amount,
		ProposedDeliveryDate:  dto.ProposedDeliveryDate,
		Hazardous:             dto.Hazardous,
		TemperatureControlled: dto.TemperatureControlled,
		Assessment: order.PriceAssessment{
			MedianPrice:      dto.MarketMedianPrice,
			DeviationPercent: dto.PriceDeviationPercent,
			HighRisk:         dto.HighRisk,
			Reason:           dto.RiskReason,
		},
		CreatedAt: dto.CreatedAt,
	})
}

func optionalBytes(id *kernel.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	raw := id.Bytes()
	return &raw
}

func optionalUUID(raw *uuid.UUID) (*kernel.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := kernel.UUIDFromBytes(raw[:])
	if err != nil {
		return nil, err
	}
	return &id, nil
}
