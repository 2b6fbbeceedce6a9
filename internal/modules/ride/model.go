// README: Ride aggregate, status lifecycle, and legal transitions.
package ride

import (
	"time"

	"chauffeur/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusScheduled      Status = "scheduled"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusClientCanceled Status = "client_canceled"
	StatusDriverCanceled Status = "driver_canceled"
	StatusAdminCanceled  Status = "admin_canceled"
	StatusNoShow         Status = "no_show"
	StatusDelayed        Status = "delayed"
)

// Actor identifies who is cancelling a ride; each actor lands the ride in
// its own terminal status.
type Actor string

const (
	ActorClient Actor = "client"
	ActorDriver Actor = "driver"
	ActorAdmin  Actor = "admin"
)

// CanceledStatus maps an actor to its terminal cancellation status.
func (a Actor) CanceledStatus() (Status, bool) {
	switch a {
	case ActorClient:
		return StatusClientCanceled, true
	case ActorDriver:
		return StatusDriverCanceled, true
	case ActorAdmin:
		return StatusAdminCanceled, true
	}
	return "", false
}

// AllowedTransitions represents the ride state flow as code. Anything not in
// this map is rejected with a typed error, never silently ignored.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {
		StatusScheduled,
		StatusClientCanceled, StatusDriverCanceled, StatusAdminCanceled,
		StatusNoShow, StatusDelayed,
	},
	StatusScheduled: {
		StatusInProgress,
		StatusClientCanceled, StatusDriverCanceled, StatusAdminCanceled,
		StatusNoShow, StatusDelayed,
	},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further dispatch or pricing action is taken
// from this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusClientCanceled, StatusDriverCanceled,
		StatusAdminCanceled, StatusNoShow, StatusDelayed:
		return true
	}
	return false
}

type Ride struct {
	ID         types.ID
	CustomerID types.ID
	// DriverID is nil until a claim succeeds; the claim sets it atomically
	// with the pending -> scheduled transition.
	DriverID *types.ID

	Pickup     types.Coordinate
	Dropoff    types.Coordinate
	PickupTime time.Time

	VehicleClass string
	// Options is the ordered list of selected option codes; order matters to
	// the recompute diff.
	Options []string

	DistanceKm      float64
	DurationSeconds float64
	EstimatedPrice  float64
	FinalPrice      float64

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy; snapshots handed to events must not alias the
// stored ride.
func (r *Ride) Clone() *Ride {
	c := *r
	if r.DriverID != nil {
		d := *r.DriverID
		c.DriverID = &d
	}
	if r.Options != nil {
		c.Options = append([]string(nil), r.Options...)
	}
	return &c
}
