package http

import (
	"errors"
	"time"

	"freight/internal/core/application/usecases/commands"
	"freight/internal/core/application/usecases/queries"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/domain/services"

	"github.com/shopspring/decimal"
)

// Error is the body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

type Route struct {
	Pickup   Point `json:"pickup"`
	Delivery Point `json:"delivery"`
}

func (r Route) toDomain() (kernel.Route, error) {
	pickup, pickupErr := kernel.NewGeoPoint(r.Pickup.Latitude, r.Pickup.Longitude)
	delivery, deliveryErr := kernel.NewGeoPoint(r.Delivery.Latitude, r.Delivery.Longitude)
	if err := errors.Join(pickupErr, deliveryErr); err != nil {
		return kernel.Route{}, err
	}
	return kernel.NewRoute(pickup, delivery, r.Pickup.Address, r.Delivery.Address)
}

type Cargo struct {
	Description           string `json:"description"`
	Hazardous             bool   `json:"hazardous"`
	TemperatureControlled bool   `json:"temperatureControlled"`
}

type NewMasterOrder struct {
	ShipperID         string          `json:"shipperId"`
	Cargo             Cargo           `json:"cargo"`
	TotalWeight       float64         `json:"totalWeight"`
	TotalVolume       float64         `json:"totalVolume"`
	Route             Route           `json:"route"`
	Deadline          time.Time       `json:"deadline"`
	MaxBidAmount      decimal.Decimal `json:"maxBidAmount"`
	LTLEnabled        bool            `json:"ltlEnabled"`
	MinLoadPercentage float64         `json:"minLoadPercentage"`
}

func (n NewMasterOrder) toParams() (order.MasterOrderParams, error) {
	shipperID, shipperErr := kernel.UUIDFromString(n.ShipperID)
	cargo, cargoErr := order.NewCargo(n.Cargo.Description, n.Cargo.Hazardous, n.Cargo.TemperatureControlled)
	route, routeErr := n.Route.toDomain()
	if err := errors.Join(shipperErr, cargoErr, routeErr); err != nil {
		return order.MasterOrderParams{}, err
	}

	return order.MasterOrderParams{
		ShipperID:         shipperID,
		Cargo:             cargo,
		TotalWeight:       n.TotalWeight,
		TotalVolume:       n.TotalVolume,
		Route:             route,
		Deadline:          n.Deadline,
		MaxBidAmount:      n.MaxBidAmount,
		LTLEnabled:        n.LTLEnabled,
		MinLoadPercentage: n.MinLoadPercentage,
	}, nil
}

type NewBid struct {
	CarrierID             string          `json:"carrierId"`
	Weight                float64         `json:"weight"`
	Volume                float64         `json:"volume"`
	Amount                decimal.Decimal `json:"amount"`
	ProposedDeliveryDate  time.Time       `json:"proposedDeliveryDate"`
	Hazardous             bool            `json:"hazardous"`
	TemperatureControlled bool            `json:"temperatureControlled"`
}

func (n NewBid) toTerms() (order.BidTerms, error) {
	carrierID, err := kernel.UUIDFromString(n.CarrierID)
	if err != nil {
		return order.BidTerms{}, err
	}
	return order.NewBidTerms(carrierID, n.Weight, n.Volume, n.Amount, n.ProposedDeliveryDate,
		n.Hazardous, n.TemperatureControlled)
}

type PriceAssessment struct {
	MedianPrice      float64 `json:"medianPrice"`
	DeviationPercent float64 `json:"deviationPercent"`
	HighRisk         bool    `json:"highRisk"`
	Reason           string  `json:"reason,omitempty"`
}

func priceAssessment(a order.PriceAssessment) PriceAssessment {
	return PriceAssessment{
		MedianPrice:      a.MedianPrice,
		DeviationPercent: a.DeviationPercent,
		HighRisk:         a.HighRisk,
		Reason:           a.Reason,
	}
}

type PlacedBid struct {
	BidID            kernel.UUID            `json:"bidId"`
	PartialOrderID   kernel.UUID            `json:"partialOrderId"`
	ComplianceStatus string                 `json:"complianceStatus"`
	PriceAssessment  PriceAssessment        `json:"priceAssessment"`
	Progress         order.ProgressSnapshot `json:"progress"`
}

func placedBid(r commands.PlaceBidResult) PlacedBid {
	return PlacedBid{
		BidID:            r.BidID,
		PartialOrderID:   r.PartialOrderID,
		ComplianceStatus: r.ComplianceStatus,
		PriceAssessment:  priceAssessment(r.Assessment),
		Progress:         r.Snapshot,
	}
}

type Recommendations struct {
	Progress        order.ProgressSnapshot    `json:"progress"`
	Recommendations []services.Recommendation `json:"recommendations"`
}

func recommendations(r queries.GetRecommendationsQueryResponse) Recommendations {
	recs := r.Recommendations
	if recs == nil {
		recs = []services.Recommendation{}
	}
	return Recommendations{Progress: r.Snapshot, Recommendations: recs}
}

type ValidatePriceRequest struct {
	Price float64 `json:"price"`
	Route Route   `json:"route"`
}

type ProviderSettings struct {
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	Endpoint         string  `json:"endpoint"`
	Weight           float64 `json:"weight"`
	Enabled          bool    `json:"enabled"`
	Priority         int     `json:"priority"`
	ConsensusEnabled bool    `json:"consensusEnabled"`
}

func (s ProviderSettings) toParams() oracle.ProviderParams {
	return oracle.ProviderParams{
		Name:             s.Name,
		Type:             oracle.ProviderType(s.Type),
		Endpoint:         s.Endpoint,
		Weight:           s.Weight,
		Enabled:          s.Enabled,
		Priority:         s.Priority,
		ConsensusEnabled: s.ConsensusEnabled,
	}
}

type Provider struct {
	ID kernel.UUID `json:"id"`
	ProviderSettings
}

func provider(p *oracle.Provider) Provider {
	return Provider{
		ID: p.ID(),
		ProviderSettings: ProviderSettings{
			Name:             p.Name(),
			Type:             string(p.Type()),
			Endpoint:         p.Endpoint(),
			Weight:           p.Weight(),
			Enabled:          p.Enabled(),
			Priority:         p.Priority(),
			ConsensusEnabled: p.ConsensusEnabled(),
		},
	}
}

func listedProvider(p queries.ListProvidersQueryResponse) Provider {
	return Provider{
		ID: p.ID,
		ProviderSettings: ProviderSettings{
			Name:             p.Name,
			Type:             string(p.Type),
			Endpoint:         p.Endpoint,
			Weight:           p.Weight,
			Enabled:          p.Enabled,
			Priority:         p.Priority,
			ConsensusEnabled: p.ConsensusEnabled,
		},
	}
}

type PriorityRequest struct {
	Priority int `json:"priority"`
}
