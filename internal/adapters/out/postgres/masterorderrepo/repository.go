package masterorderrepo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/ports"
	"freight/internal/pkg/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressChannel is the LISTEN/NOTIFY channel that carries the id of every
// master order changed by a committed transaction.
const ProgressChannel = "master_order_progress"

const kmPerDegree = 111.32

// GormMasterOrderRepository implements ports.MasterOrderRepository and
// ports.RoutePriceHistory.
type GormMasterOrderRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

// aggregateTracker is the part of the unit of work a repository reports to.
type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
	TrackLoadedVersion(id kernel.UUID, version int64)
	LoadedVersion(id kernel.UUID) (int64, bool)
}

func NewGormMasterOrderRepository(db *gorm.DB, tracker aggregateTracker) *GormMasterOrderRepository {
	return &GormMasterOrderRepository{db: db, tracker: tracker}
}

// Add inserts a new aggregate with its children and announces it.
func (r *GormMasterOrderRepository) Add(ctx context.Context, aggregate *order.MasterOrder) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(&dto).Error; err != nil {
		return err
	}
	if err := r.saveChildren(db, dto); err != nil {
		return err
	}
	if err := r.notify(db, aggregate.ID()); err != nil {
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Update writes the aggregate if the stored version is still the one it
// was loaded at within this unit of work.
func (r *GormMasterOrderRepository) Update(ctx context.Context, aggregate *order.MasterOrder) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	loaded, ok := r.tracker.LoadedVersion(aggregate.ID())
	if !ok {
		return errs.NewVersionIsInvalidError("masterOrder",
			fmt.Errorf("master order %s was not loaded in this unit of work", aggregate.ID()))
	}

	dto := fromDomain(aggregate)
	db := r.db.WithContext(ctx)
	result := db.Model(&MasterOrderDTO{}).
		Where("id = ? AND version = ?", dto.ID, loaded).
		Select(
			"remaining_weight", "remaining_volume", "deadline", "max_bid_amount",
			"ltl_enabled", "min_load_percentage", "status", "version", "updated_at",
		).
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewVersionIsInvalidError("masterOrder",
			fmt.Errorf("master order %s is no longer at version %d", aggregate.ID(), loaded))
	}

	if err := r.saveChildren(db, dto); err != nil {
		return err
	}
	if err := r.notify(db, aggregate.ID()); err != nil {
		return err
	}

	r.tracker.TrackLoadedVersion(aggregate.ID(), aggregate.Version())
	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// saveChildren inserts new bids and upserts partial orders. Bids go first
// because partial orders reference them.
func (r *GormMasterOrderRepository) saveChildren(db *gorm.DB, dto MasterOrderDTO) error {
	if len(dto.Bids) > 0 {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&dto.Bids).Error; err != nil {
			return err
		}
	}
	if len(dto.Partials) > 0 {
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "assigned_carrier_id", "assigned_bid_id"}),
		}).Create(&dto.Partials).Error; err != nil {
			return err
		}
	}
	return nil
}

// notify is delivered to listeners when the surrounding transaction commits.
func (r *GormMasterOrderRepository) notify(db *gorm.DB, id kernel.UUID) error {
	return db.Exec("SELECT pg_notify(?, ?)", ProgressChannel, id.String()).Error
}

// Get loads an aggregate without locking it.
func (r *GormMasterOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return r.load(r.db.WithContext(ctx), id)
}

// GetForUpdate locks the master order row, then loads the aggregate.
func (r *GormMasterOrderRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	var locked MasterOrderDTO
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&locked, "id = ?", id.Bytes()).Error; err != nil {
		return nil, notFound(err, id)
	}

	aggregate, err := r.load(db, id)
	if err != nil {
		return nil, err
	}
	r.tracker.TrackLoadedVersion(id, aggregate.Version())
	return aggregate, nil
}

func (r *GormMasterOrderRepository) load(db *gorm.DB, id kernel.UUID) (*order.MasterOrder, error) {
	var dto MasterOrderDTO
	err := db.
		Preload("Partials", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Preload("Bids", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at, id") }).
		First(&dto, "id = ?", id.Bytes()).Error
	if err != nil {
		return nil, notFound(err, id)
	}
	return toDomain(dto)
}

func notFound(err error, id kernel.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", order.ErrMasterOrderNotFound, errs.NewObjectNotFoundError("masterOrderID", id))
	}
	return err
}

// AcceptedRoutePrices returns the amounts of bids whose partial order still
// holds capacity, on orders whose endpoints fall inside a bounding box of
// radiusKm around route's endpoints.
func (r *GormMasterOrderRepository) AcceptedRoutePrices(
	ctx context.Context,
	route kernel.Route,
	radiusKm float64,
) ([]ports.RoutePrice, error) {
	pickup, delivery := route.Pickup(), route.Delivery()
	pLat, pLon := boundingBox(pickup.Latitude(), radiusKm)
	dLat, dLon := boundingBox(delivery.Latitude(), radiusKm)

	pickupLon, pickupLonArgs := longitudeRange("m.route_pickup_longitude", pickup.Longitude(), pLon)
	deliveryLon, deliveryLonArgs := longitudeRange("m.route_delivery_longitude", delivery.Longitude(), dLon)

	args := []any{
		order.PartialCancelled.String(),
		pickup.Latitude() - pLat, pickup.Latitude() + pLat,
	}
	args = append(args, pickupLonArgs...)
	args = append(args, delivery.Latitude()-dLat, delivery.Latitude()+dLat)
	args = append(args, deliveryLonArgs...)

	rows, err := r.db.WithContext(ctx).Raw(`
		SELECT
			b.amount,
			m.route_pickup_latitude,
			m.route_pickup_longitude,
			m.route_pickup_address,
			m.route_delivery_latitude,
			m.route_delivery_longitude,
			m.route_delivery_address
		FROM bids b
		JOIN partial_orders p ON p.originating_bid_id = b.id
		JOIN master_orders m ON m.id = b.master_order_id
		WHERE p.status <> ?
			AND m.route_pickup_latitude BETWEEN ? AND ?
			AND `+pickupLon+`
			AND m.route_delivery_latitude BETWEEN ? AND ?
			AND `+deliveryLon+`
	`, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make([]ports.RoutePrice, 0)
	for rows.Next() {
		var (
			amount float64
			route  RouteDTO
		)
		if err = rows.Scan(
			&amount,
			&route.PickupLatitude,
			&route.PickupLongitude,
			&route.PickupAddress,
			&route.DeliveryLatitude,
			&route.DeliveryLongitude,
			&route.DeliveryAddress,
		); err != nil {
			return nil, err
		}

		found, routeErr := route.toDomain()
		if routeErr != nil {
			return nil, routeErr
		}
		prices = append(prices, ports.RoutePrice{Route: found, Amount: amount})
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return prices, nil
}

// boundingBox returns the latitude and longitude half-widths in degrees of a
// box that contains every point within radiusKm of latitude.
func boundingBox(latitude, radiusKm float64) (float64, float64) {
	dLat := radiusKm / kmPerDegree
	cos := math.Cos(latitude * math.Pi / 180)
	if cos < 0.01 {
		return dLat, 180
	}
	return dLat, radiusKm / (kmPerDegree * cos)
}

// longitudeRange builds the predicate for column within half degrees of lon.
// A range that crosses the antimeridian is split in two.
func longitudeRange(column string, lon, half float64) (string, []any) {
	lo, hi := lon-half, lon+half
	switch {
	case half >= 180:
		return "TRUE", nil
	case lo < -180:
		return "(" + column + " >= ? OR " + column + " <= ?)", []any{lo + 360, hi}
	case hi > 180:
		return "(" + column + " >= ? OR " + column + " <= ?)", []any{lo, hi - 360}
	default:
		return column + " BETWEEN ? AND ?", []any{lo, hi}
	}
}
