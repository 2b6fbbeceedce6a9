// README: Audit sink backed by PostgreSQL.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var meta []byte
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		meta = b
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_log (event_type, service, ride_id, price, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.EventType,
		e.Service,
		string(e.RideID),
		e.Price,
		meta,
		e.CreatedAt,
	)
	return err
}
