// README: Dispatch service; claim, start, complete, cancel with conditional writes.
package ride

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"chauffeur/internal/modules/audit"
	"chauffeur/internal/types"
)

var (
	ErrNotFound = errors.New("ride not found")
	// ErrInvalidState means the ride exists but is not in a state the
	// operation accepts.
	ErrInvalidState = errors.New("invalid ride state")
	// ErrAlreadyClaimed is the normal outcome of dispatch contention: the
	// conditional claim matched zero rows because another driver won.
	ErrAlreadyClaimed = errors.New("ride already claimed")
	// ErrConflict means a non-claim conditional write lost a race.
	ErrConflict   = errors.New("ride state conflict")
	ErrBadRequest = errors.New("bad request")
)

const serviceName = "dispatch"

type Service struct {
	store  Store
	audit  audit.Sink
	events Publisher
	log    *slog.Logger
}

func NewService(store Store, sink audit.Sink, events Publisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, audit: sink, events: events, log: log}
}

type CreateCommand struct {
	CustomerID   types.ID
	Pickup       types.Coordinate
	Dropoff      types.Coordinate
	PickupTime   time.Time
	VehicleClass string
	Options      []string
}

type AcceptCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type CompleteCommand struct {
	RideID types.ID
	// FinalPrice overrides the recomputed price when set; nil keeps the
	// price carried over from the last recompute.
	FinalPrice *float64
}

type CancelCommand struct {
	RideID types.ID
	Actor  Actor
	Reason string
}

// Create persists a new pending ride and publishes its created event, which
// triggers the first price computation.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	if cmd.CustomerID == "" || cmd.VehicleClass == "" {
		return nil, ErrBadRequest
	}
	if cmd.Pickup.Zero() || cmd.Dropoff.Zero() {
		return nil, ErrBadRequest
	}

	now := time.Now().UTC()
	r := &Ride{
		ID:           newID(),
		CustomerID:   cmd.CustomerID,
		Pickup:       cmd.Pickup,
		Dropoff:      cmd.Dropoff,
		PickupTime:   cmd.PickupTime,
		VehicleClass: cmd.VehicleClass,
		Options:      append([]string(nil), cmd.Options...),
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, "ride_requested", r.ID, nil, map[string]any{
		"customer_id":   string(r.CustomerID),
		"vehicle_class": r.VehicleClass,
	})
	s.publish(ctx, Mutation{Kind: MutationCreated, Ride: *r.Clone()})
	return r.Clone(), nil
}

// Accept is the claim operation: exactly one of N concurrent calls for the
// same pending ride succeeds. Losing is expected and frequent, not an error
// to retry blindly.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Ride, error) {
	prev, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if prev.Status != StatusPending {
		return nil, ErrInvalidState
	}

	matched, err := s.store.ConditionalUpdate(ctx, cmd.RideID, StatusPending, true, UpdateFields{
		Status:   StatusScheduled,
		DriverID: &cmd.DriverID,
	})
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, ErrAlreadyClaimed
	}

	updated, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	s.appendAudit(ctx, "ride_claimed", updated.ID, nil, map[string]any{
		"driver_id": string(cmd.DriverID),
	})
	s.publish(ctx, Mutation{Kind: MutationUpdated, Ride: *updated.Clone(), Previous: prev})
	return updated, nil
}

func (s *Service) Start(ctx context.Context, rideID types.ID) (*Ride, error) {
	return s.transition(ctx, rideID, StatusScheduled, StatusInProgress, "ride_started", nil, nil)
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Ride, error) {
	meta := map[string]any{}
	if cmd.FinalPrice != nil {
		meta["final_price_override"] = *cmd.FinalPrice
	}
	return s.transition(ctx, cmd.RideID, StatusInProgress, StatusCompleted, "ride_completed", cmd.FinalPrice, meta)
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Ride, error) {
	to, ok := cmd.Actor.CanceledStatus()
	if !ok {
		return nil, ErrBadRequest
	}
	return s.sideBranch(ctx, cmd.RideID, to, "ride_canceled", map[string]any{
		"actor":  string(cmd.Actor),
		"reason": cmd.Reason,
	})
}

// MarkNoShow is an operator verdict on a ride whose customer never appeared.
func (s *Service) MarkNoShow(ctx context.Context, rideID types.ID) (*Ride, error) {
	return s.sideBranch(ctx, rideID, StatusNoShow, "ride_no_show", nil)
}

// MarkDelayed parks a ride that cannot be served on time.
func (s *Service) MarkDelayed(ctx context.Context, rideID types.ID) (*Ride, error) {
	return s.sideBranch(ctx, rideID, StatusDelayed, "ride_delayed", nil)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

// sideBranch moves a ride from pending or scheduled into a terminal side
// status.
func (s *Service) sideBranch(ctx context.Context, rideID types.ID, to Status, event string, meta map[string]any) (*Ride, error) {
	prev, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(prev.Status, to) {
		return nil, ErrInvalidState
	}

	matched, err := s.store.ConditionalUpdate(ctx, rideID, prev.Status, false, UpdateFields{Status: to})
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, ErrConflict
	}
	return s.finish(ctx, rideID, prev, event, meta)
}

func (s *Service) transition(ctx context.Context, rideID types.ID, from, to Status, event string, finalPrice *float64, meta map[string]any) (*Ride, error) {
	prev, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if prev.Status != from {
		return nil, ErrInvalidState
	}

	matched, err := s.store.ConditionalUpdate(ctx, rideID, from, false, UpdateFields{
		Status:     to,
		FinalPrice: finalPrice,
	})
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, ErrConflict
	}
	return s.finish(ctx, rideID, prev, event, meta)
}

func (s *Service) finish(ctx context.Context, rideID types.ID, prev *Ride, event string, meta map[string]any) (*Ride, error) {
	updated, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	s.appendAudit(ctx, event, rideID, nil, meta)
	s.publish(ctx, Mutation{Kind: MutationUpdated, Ride: *updated.Clone(), Previous: prev})
	return updated, nil
}

func (s *Service) appendAudit(ctx context.Context, event string, rideID types.ID, price *float64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Append(ctx, audit.Entry{
		EventType: event,
		Service:   serviceName,
		RideID:    rideID,
		Price:     price,
		Metadata:  meta,
	})
	if err != nil {
		s.log.Warn("audit append failed", "event", event, "ride_id", string(rideID), "error", err)
	}
}

func (s *Service) publish(ctx context.Context, m Mutation) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishMutation(ctx, m); err != nil {
		s.log.Warn("mutation publish failed", "ride_id", string(m.Ride.ID), "error", err)
	}
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
