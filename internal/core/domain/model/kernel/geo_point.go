package kernel

import (
	"errors"
	"fmt"
	"math"

	"freight/internal/pkg/errs"
	"freight/internal/pkg/guard"
)

const (
	// EarthRadiusKm is the mean Earth radius used by the haversine distance.
	EarthRadiusKm = 6371.0

	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0
)

// ErrGeoPointIsNotConstructed is returned when a zero GeoPoint is used.
var ErrGeoPointIsNotConstructed = errs.NewValueIsRequiredError("geo point must be created via NewGeoPoint")

// GeoPoint is an immutable WGS84 coordinate used for pickup and delivery points.
//
// Example:
//
//	berlin, _ := kernel.NewGeoPoint(52.52, 13.405)
//	hamburg, _ := kernel.NewGeoPoint(53.551, 9.993)
//	km, _ := berlin.DistanceKm(hamburg) // ~255
type GeoPoint struct { //nolint:recvcheck //using for validation
	latitude  float64
	longitude float64
	guard     guard.ConstructorGuard
}

// NewGeoPoint validates latitude in [-90, 90] and longitude in [-180, 180].
func NewGeoPoint(latitude, longitude float64) (GeoPoint, error) {
	p := GeoPoint{guard: guard.NewConstructorGuard()}

	if err := errors.Join(p.setLatitude(latitude), p.setLongitude(longitude)); err != nil {
		return GeoPoint{}, err
	}

	return p, nil
}

// Validate fails for zero values.
func (p GeoPoint) Validate() error {
	return p.guard.Validate(ErrGeoPointIsNotConstructed)
}

// Latitude returns the latitude in degrees.
func (p GeoPoint) Latitude() float64 {
	return p.latitude
}

// Longitude returns the longitude in degrees.
func (p GeoPoint) Longitude() float64 {
	return p.longitude
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("GeoPoint(%.5f,%.5f)", p.latitude, p.longitude)
}

// DistanceKm returns the great-circle distance to other using the haversine formula.
func (p GeoPoint) DistanceKm(other GeoPoint) (float64, error) {
	if err := errors.Join(p.Validate(), other.Validate()); err != nil {
		return 0, err
	}

	return Haversine(p.latitude, p.longitude, other.latitude, other.longitude), nil
}

// Haversine computes the great-circle distance in kilometres between two
// coordinates given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func (p *GeoPoint) setLatitude(latitude float64) error {
	if math.IsNaN(latitude) || latitude < minLatitude || latitude > maxLatitude {
		return errs.NewValueIsOutOfRangeError("latitude", latitude, minLatitude, maxLatitude)
	}
	p.latitude = latitude
	return nil
}

func (p *GeoPoint) setLongitude(longitude float64) error {
	if math.IsNaN(longitude) || longitude < minLongitude || longitude > maxLongitude {
		return errs.NewValueIsOutOfRangeError("longitude", longitude, minLongitude, maxLongitude)
	}
	p.longitude = longitude
	return nil
}
