// README: Ride store contract and its PostgreSQL implementation.
package ride

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chauffeur/internal/types"
)

// UpdateFields is what a conditional dispatch write may change. Nil pointers
// leave the column untouched.
type UpdateFields struct {
	Status     Status
	DriverID   *types.ID
	FinalPrice *float64
}

// PricingFields is always written as one unit so distance, duration, and
// price can never drift apart.
type PricingFields struct {
	DistanceKm      float64
	DurationSeconds float64
	EstimatedPrice  float64
	FinalPrice      float64
}

// Store is the system of record for rides. All status and driver mutations
// go through ConditionalUpdate; nothing is allowed to blindly overwrite
// status or driver_id. The conditional write is the only serialization point
// in the whole engine.
type Store interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	// ConditionalUpdate applies fields only where the ride's current status
	// equals expectedStatus and, when expectDriverNull is set, driver_id is
	// still null. matched=false means zero rows qualified.
	ConditionalUpdate(ctx context.Context, id types.ID, expectedStatus Status, expectDriverNull bool, fields UpdateFields) (bool, error)
	// UpdatePricing writes the derived pricing fields in one update,
	// refusing rides that already left pending/scheduled.
	UpdatePricing(ctx context.Context, id types.ID, p PricingFields) (bool, error)
}

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Create(ctx context.Context, r *Ride) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, customer_id, driver_id, status,
			pickup_lat, pickup_lng, pickup_address,
			dropoff_lat, dropoff_lng, dropoff_address,
			pickup_time, vehicle_class, options,
			distance_km, duration_seconds, estimated_price, final_price,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17,
			$18, $19
		)`,
		string(r.ID),
		string(r.CustomerID),
		idPtr(r.DriverID),
		string(r.Status),
		r.Pickup.Lat, r.Pickup.Lng, r.Pickup.Address,
		r.Dropoff.Lat, r.Dropoff.Lng, r.Dropoff.Address,
		r.PickupTime,
		r.VehicleClass,
		r.Options,
		r.DistanceKm, r.DurationSeconds, r.EstimatedPrice, r.FinalPrice,
		r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, customer_id, driver_id, status,
		       pickup_lat, pickup_lng, pickup_address,
		       dropoff_lat, dropoff_lng, dropoff_address,
		       pickup_time, vehicle_class, options,
		       distance_km, duration_seconds, estimated_price, final_price,
		       created_at, updated_at
		FROM rides
		WHERE id = $1`, string(id),
	)

	var r Ride
	var driverID *string
	err := row.Scan(
		&r.ID, &r.CustomerID, &driverID, &r.Status,
		&r.Pickup.Lat, &r.Pickup.Lng, &r.Pickup.Address,
		&r.Dropoff.Lat, &r.Dropoff.Lng, &r.Dropoff.Address,
		&r.PickupTime, &r.VehicleClass, &r.Options,
		&r.DistanceKm, &r.DurationSeconds, &r.EstimatedPrice, &r.FinalPrice,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		d := types.ID(*driverID)
		r.DriverID = &d
	}
	return &r, nil
}

func (s *PgStore) ConditionalUpdate(ctx context.Context, id types.ID, expectedStatus Status, expectDriverNull bool, fields UpdateFields) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    driver_id = COALESCE($2, driver_id),
		    final_price = COALESCE($3, final_price),
		    updated_at = NOW()
		WHERE id = $4
		  AND status = $5
		  AND ($6::bool = false OR driver_id IS NULL)`,
		string(fields.Status),
		idPtr(fields.DriverID),
		fields.FinalPrice,
		string(id),
		string(expectedStatus),
		expectDriverNull,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) UpdatePricing(ctx context.Context, id types.ID, p PricingFields) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET distance_km = $1,
		    duration_seconds = $2,
		    estimated_price = $3,
		    final_price = $4,
		    updated_at = NOW()
		WHERE id = $5
		  AND status IN ('pending', 'scheduled')`,
		p.DistanceKm, p.DurationSeconds, p.EstimatedPrice, p.FinalPrice,
		string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

var _ Store = (*PgStore)(nil)
