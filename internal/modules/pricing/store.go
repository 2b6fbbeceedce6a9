// README: Rate table lookups; PostgreSQL and static implementations.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRateNotFound = errors.New("no rate configured for vehicle class")

type RateStore interface {
	GetRate(ctx context.Context, vehicleClass string) (Rate, error)
}

type PgRateStore struct {
	db *pgxpool.Pool
}

func NewPgRateStore(db *pgxpool.Pool) *PgRateStore {
	return &PgRateStore{db: db}
}

func (s *PgRateStore) GetRate(ctx context.Context, vehicleClass string) (Rate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT vehicle_class, base_price, price_per_km, min_price
		FROM rates
		WHERE vehicle_class = $1`, vehicleClass,
	)
	var r Rate
	err := row.Scan(&r.VehicleClass, &r.BasePrice, &r.PricePerKm, &r.MinPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrRateNotFound
	}
	if err != nil {
		return Rate{}, err
	}
	return r, nil
}

// StaticRateStore serves rates from a fixed map; used in tests and as a
// bootstrap before the rates table is provisioned.
type StaticRateStore struct {
	rates map[string]Rate
}

func NewStaticRateStore(rates []Rate) *StaticRateStore {
	m := make(map[string]Rate, len(rates))
	for _, r := range rates {
		m[r.VehicleClass] = r
	}
	return &StaticRateStore{rates: m}
}

func (s *StaticRateStore) GetRate(ctx context.Context, vehicleClass string) (Rate, error) {
	r, ok := s.rates[vehicleClass]
	if !ok {
		return Rate{}, ErrRateNotFound
	}
	return r, nil
}
