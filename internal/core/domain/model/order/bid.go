package order

import (
	"errors"
	"fmt"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/pkg/errs"
	"freight/internal/pkg/guard"

	"github.com/shopspring/decimal"
)

// ErrBidTermsAreNotConstructed is returned for BidTerms not built by NewBidTerms.
var ErrBidTermsAreNotConstructed = errors.New("BidTerms must be created via NewBidTerms")

// BidTerms is what a carrier offers: a slice of capacity at a price.
type BidTerms struct { //nolint:recvcheck //using for validation
	carrierID             kernel.UUID
	weight                float64
	volume                float64
	amount                decimal.Decimal
	proposedDeliveryDate  time.Time
	hazardous             bool
	temperatureControlled bool
	guard                 guard.ConstructorGuard
}

// NewBidTerms validates a carrier offer independently of any master order.
func NewBidTerms(
	carrierID kernel.UUID,
	weight, volume float64,
	amount decimal.Decimal,
	proposedDeliveryDate time.Time,
	hazardous, temperatureControlled bool,
) (BidTerms, error) {
	t := BidTerms{
		hazardous:             hazardous,
		temperatureControlled: temperatureControlled,
		guard:                 guard.NewConstructorGuard(),
	}

	var dateErr error
	if proposedDeliveryDate.IsZero() {
		dateErr = errs.NewValueIsRequiredError("proposedDeliveryDate")
	}

	if err := errors.Join(
		carrierID.Validate(),
		positive("weight", weight),
		positive("volume", volume),
		t.setAmount(amount),
		dateErr,
	); err != nil {
		return BidTerms{}, err
	}

	t.carrierID = carrierID
	t.weight = weight
	t.volume = volume
	t.proposedDeliveryDate = proposedDeliveryDate
	return t, nil
}

// Validate fails for zero values.
func (t BidTerms) Validate() error {
	return t.guard.Validate(ErrBidTermsAreNotConstructed)
}

func (t BidTerms) CarrierID() kernel.UUID          { return t.carrierID }
func (t BidTerms) Weight() float64                 { return t.weight }
func (t BidTerms) Volume() float64                 { return t.volume }
func (t BidTerms) Amount() decimal.Decimal         { return t.amount }
func (t BidTerms) ProposedDeliveryDate() time.Time { return t.proposedDeliveryDate }
func (t BidTerms) Hazardous() bool                 { return t.hazardous }
func (t BidTerms) TemperatureControlled() bool     { return t.temperatureControlled }

func (t *BidTerms) setAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errs.NewValueIsInvalidErrorWithCause("amount", fmt.Errorf("%s is not greater than 0", amount))
	}
	if err := validateMoney("amount", amount); err != nil {
		return err
	}
	t.amount = amount
	return nil
}

// PriceAssessment is the market check recorded on a bid. A high-risk
// assessment never rejects the bid; it is surfaced on progress snapshots.
type PriceAssessment struct {
	MedianPrice      float64
	DeviationPercent float64
	HighRisk         bool
	Reason           string
}

// Bid is a carrier's accepted offer, created together with its PartialOrder.
type Bid struct {
	id                    kernel.UUID
	carrierID             kernel.UUID
	partialOrderID        *kernel.UUID
	amount                decimal.Decimal
	proposedDeliveryDate  time.Time
	hazardous             bool
	temperatureControlled bool
	assessment            PriceAssessment
	createdAt             time.Time
}

// BidState carries persisted bid fields into RestoreBid.
type BidState struct {
	ID                    kernel.UUID
	CarrierID             kernel.UUID
	PartialOrderID        *kernel.UUID
	Amount                decimal.Decimal
	ProposedDeliveryDate  time.Time
	Hazardous             bool
	TemperatureControlled bool
	Assessment            PriceAssessment
	CreatedAt             time.Time
}

// RestoreBid rebuilds a bid loaded from storage.
func RestoreBid(s BidState) (*Bid, error) {
	if err := errors.Join(s.ID.Validate(), s.CarrierID.Validate()); err != nil {
		return nil, err
	}
	return &Bid{
		id:                    s.ID,
		carrierID:             s.CarrierID,
		partialOrderID:        s.PartialOrderID,
		amount:                s.Amount,
		proposedDeliveryDate:  s.ProposedDeliveryDate,
		hazardous:             s.Hazardous,
		temperatureControlled: s.TemperatureControlled,
		assessment:            s.Assessment,
		createdAt:             s.CreatedAt,
	}, nil
}

func (b *Bid) ID() kernel.UUID                 { return b.id }
func (b *Bid) CarrierID() kernel.UUID          { return b.carrierID }
func (b *Bid) PartialOrderID() *kernel.UUID    { return b.partialOrderID }
func (b *Bid) Amount() decimal.Decimal         { return b.amount }
func (b *Bid) ProposedDeliveryDate() time.Time { return b.proposedDeliveryDate }
func (b *Bid) Hazardous() bool                 { return b.hazardous }
func (b *Bid) TemperatureControlled() bool     { return b.temperatureControlled }
func (b *Bid) Assessment() PriceAssessment     { return b.assessment }
func (b *Bid) CreatedAt() time.Time            { return b.createdAt }

func positive(name string, v float64) error {
	if !(v > 0) {
		return errs.NewValueIsInvalidErrorWithCause(name, fmt.Errorf("%v is not greater than 0", v))
	}
	return nil
}
