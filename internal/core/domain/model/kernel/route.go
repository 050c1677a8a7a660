package kernel

import (
	"errors"
	"fmt"
	"strings"

	"freight/internal/pkg/errs"
	"freight/internal/pkg/guard"
)

// ErrRouteIsNotConstructed is returned when a zero Route is used.
var ErrRouteIsNotConstructed = errs.NewValueIsRequiredError("route must be created via NewRoute")

// Route is the pickup and delivery pair of a master order.
type Route struct { //nolint:recvcheck //using for validation
	pickup          GeoPoint
	delivery        GeoPoint
	pickupAddress   string
	deliveryAddress string
	guard           guard.ConstructorGuard
}

// NewRoute validates both points and requires non-blank addresses.
func NewRoute(pickup, delivery GeoPoint, pickupAddress, deliveryAddress string) (Route, error) {
	r := Route{guard: guard.NewConstructorGuard()}

	if err := errors.Join(
		r.setPickup(pickup, pickupAddress),
		r.setDelivery(delivery, deliveryAddress),
	); err != nil {
		return Route{}, err
	}

	return r, nil
}

// Validate fails for zero values.
func (r Route) Validate() error {
	return r.guard.Validate(ErrRouteIsNotConstructed)
}

// Pickup returns the pickup point.
func (r Route) Pickup() GeoPoint { return r.pickup }

// Delivery returns the delivery point.
func (r Route) Delivery() GeoPoint { return r.delivery }

// PickupAddress returns the pickup street address.
func (r Route) PickupAddress() string { return r.pickupAddress }

// DeliveryAddress returns the delivery street address.
func (r Route) DeliveryAddress() string { return r.deliveryAddress }

// LengthKm is the straight-line distance between pickup and delivery.
func (r Route) LengthKm() (float64, error) {
	return r.pickup.DistanceKm(r.delivery)
}

// IsSimilar reports whether both endpoints of other lie within radiusKm of
// the corresponding endpoints of r.
func (r Route) IsSimilar(other Route, radiusKm float64) (bool, error) {
	pickupKm, err := r.pickup.DistanceKm(other.pickup)
	if err != nil {
		return false, err
	}
	deliveryKm, err := r.delivery.DistanceKm(other.delivery)
	if err != nil {
		return false, err
	}

	return pickupKm <= radiusKm && deliveryKm <= radiusKm, nil
}

// RouteKeySpanKm bounds the distance between two endpoints that round to the
// same Key: 0.1 degree on both axes is at most about 15.75 km.
const RouteKeySpanKm = 16.0

// Key buckets the route into a cache key rounded to one decimal degree
// (about 11 km), so neighbouring routes share cached price history. Routes
// sharing a key are not necessarily similar to each other.
func (r Route) Key() string {
	return fmt.Sprintf("%.1f:%.1f>%.1f:%.1f",
		r.pickup.latitude, r.pickup.longitude,
		r.delivery.latitude, r.delivery.longitude)
}

func (r *Route) setPickup(point GeoPoint, address string) error {
	if err := point.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(address) == "" {
		return errs.NewValueIsRequiredError("pickupAddress")
	}
	r.pickup = point
	r.pickupAddress = address
	return nil
}

func (r *Route) setDelivery(point GeoPoint, address string) error {
	if err := point.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(address) == "" {
		return errs.NewValueIsRequiredError("deliveryAddress")
	}
	r.delivery = point
	r.deliveryAddress = address
	return nil
}
