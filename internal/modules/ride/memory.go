// README: In-memory ride store with the same conditional-update guarantees.
package ride

import (
	"context"
	"sync"
	"time"

	"chauffeur/internal/types"
)

// MemoryStore serializes conditional updates with a mutex, giving the exact
// compare-and-swap contract the Postgres store gets from row-level locking.
// Used by unit tests and single-node demos.
type MemoryStore struct {
	mu    sync.RWMutex
	rides map[types.ID]*Ride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[types.ID]*Ride)}
}

func (m *MemoryStore) Create(ctx context.Context, r *Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = r.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryStore) ConditionalUpdate(ctx context.Context, id types.ID, expectedStatus Status, expectDriverNull bool, fields UpdateFields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return false, nil
	}
	if r.Status != expectedStatus {
		return false, nil
	}
	if expectDriverNull && r.DriverID != nil {
		return false, nil
	}
	r.Status = fields.Status
	if fields.DriverID != nil {
		d := *fields.DriverID
		r.DriverID = &d
	}
	if fields.FinalPrice != nil {
		r.FinalPrice = *fields.FinalPrice
	}
	r.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryStore) UpdatePricing(ctx context.Context, id types.ID, p PricingFields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return false, nil
	}
	if r.Status != StatusPending && r.Status != StatusScheduled {
		return false, nil
	}
	r.DistanceKm = p.DistanceKm
	r.DurationSeconds = p.DurationSeconds
	r.EstimatedPrice = p.EstimatedPrice
	r.FinalPrice = p.FinalPrice
	r.UpdatedAt = time.Now().UTC()
	return true, nil
}

var _ Store = (*MemoryStore)(nil)
