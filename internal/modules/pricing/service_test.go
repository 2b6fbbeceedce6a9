// README: Recompute service tests; diffing, fail-closed routing, audit trail.
package pricing

import (
	"context"
	"errors"
	"testing"

	"chauffeur/internal/modules/audit"
	"chauffeur/internal/modules/ride"
	"chauffeur/internal/routing"
	"chauffeur/internal/types"
)

type stubRouter struct {
	calls int
	route routing.Route
	err   error
}

func (s *stubRouter) Route(ctx context.Context, pickup, dropoff types.Point) (routing.Route, error) {
	s.calls++
	if s.err != nil {
		return routing.Route{}, s.err
	}
	return s.route, nil
}

func standardRates() RateStore {
	return NewStaticRateStore([]Rate{
		{VehicleClass: "standard", BasePrice: 4.00, PricePerKm: 1.10, MinPrice: 7.00},
	})
}

func newPendingRide(t *testing.T, store ride.Store) *ride.Ride {
	t.Helper()
	r := &ride.Ride{
		ID:           "r1",
		CustomerID:   "c1",
		Pickup:       types.Coordinate{Point: types.Point{Lat: 25.033, Lng: 121.565}, Address: "A"},
		Dropoff:      types.Coordinate{Point: types.Point{Lat: 25.047, Lng: 121.531}, Address: "B"},
		VehicleClass: "standard",
		Status:       ride.StatusPending,
	}
	if err := store.Create(context.Background(), r); err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	return r
}

func TestRecomputeWritesPriceAndAudits(t *testing.T) {
	ctx := context.Background()
	rides := ride.NewMemoryStore()
	sink := audit.NewMemorySink()
	router := &stubRouter{route: routing.Route{DistanceMeters: 6500, DurationSeconds: 900, Source: "osrm"}}
	svc := NewService(rides, standardRates(), router, sink, nil)

	r := newPendingRide(t, rides)
	if err := svc.HandleMutation(ctx, ride.Mutation{Kind: ride.MutationCreated, Ride: *r}); err != nil {
		t.Fatalf("handle created: %v", err)
	}

	got, err := rides.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if got.DistanceKm != 6.5 || got.DurationSeconds != 900 {
		t.Errorf("distance/duration = %v/%v, want 6.5/900", got.DistanceKm, got.DurationSeconds)
	}
	if got.EstimatedPrice != 11.15 || got.FinalPrice != 11.15 {
		t.Errorf("prices = %v/%v, want 11.15/11.15", got.EstimatedPrice, got.FinalPrice)
	}

	entries := sink.ByType(EventPriceWithRoute)
	if len(entries) != 1 {
		t.Fatalf("expected one %s entry, got %d", EventPriceWithRoute, len(entries))
	}
	e := entries[0]
	if e.Price == nil || *e.Price != 11.15 {
		t.Errorf("audited price = %v, want 11.15", e.Price)
	}
	if e.Metadata["routing_source"] != "osrm" {
		t.Errorf("routing_source = %v, want osrm", e.Metadata["routing_source"])
	}
}

func TestNoRelevantDiffSkipsRecompute(t *testing.T) {
	ctx := context.Background()
	rides := ride.NewMemoryStore()
	sink := audit.NewMemorySink()
	router := &stubRouter{route: routing.Route{DistanceMeters: 6500, DurationSeconds: 900}}
	svc := NewService(rides, standardRates(), router, sink, nil)

	r := newPendingRide(t, rides)
	prev := r.Clone()
	next := r.Clone()
	// Cosmetic address edit; coordinates unchanged.
	next.Pickup.Address = "A, rewritten by the customer"

	err := svc.HandleMutation(ctx, ride.Mutation{Kind: ride.MutationUpdated, Ride: *next, Previous: prev})
	if err != nil {
		t.Fatalf("handle updated: %v", err)
	}
	if router.calls != 0 {
		t.Errorf("routing calls = %d, want 0", router.calls)
	}
	if len(sink.Entries()) != 0 {
		t.Errorf("expected no audit entries, got %+v", sink.Entries())
	}
}

func TestOptionOrderChangeTriggersRecompute(t *testing.T) {
	ctx := context.Background()
	rides := ride.NewMemoryStore()
	router := &stubRouter{route: routing.Route{DistanceMeters: 6500, DurationSeconds: 900}}
	svc := NewService(rides, standardRates(), router, audit.NewMemorySink(), nil)

	r := newPendingRide(t, rides)
	prev := r.Clone()
	prev.Options = []string{"child_seat", "pet_friendly"}
	next := r.Clone()
	next.Options = []string{"pet_friendly", "child_seat"}

	if err := svc.HandleMutation(ctx, ride.Mutation{Kind: ride.MutationUpdated, Ride: *next, Previous: prev}); err != nil {
		t.Fatalf("handle updated: %v", err)
	}
	// Positional comparison on purpose: same set, different order recomputes.
	if router.calls != 1 {
		t.Errorf("routing calls = %d, want 1", router.calls)
	}
}

func TestRoutingFailureIsFailClosed(t *testing.T) {
	ctx := context.Background()
	rides := ride.NewMemoryStore()
	sink := audit.NewMemorySink()
	routeErr := errors.New("osrm: connection refused")
	svc := NewService(rides, standardRates(), &stubRouter{err: routeErr}, sink, nil)

	r := newPendingRide(t, rides)
	r.DistanceKm = 3.2
	r.DurationSeconds = 480
	r.EstimatedPrice = 9.90
	r.FinalPrice = 9.90
	if err := rides.Create(ctx, r); err != nil {
		t.Fatalf("seed priced ride: %v", err)
	}

	err := svc.HandleMutation(ctx, ride.Mutation{Kind: ride.MutationCreated, Ride: *r})
	if !errors.Is(err, routeErr) {
		t.Fatalf("expected routing error, got %v", err)
	}

	got, getErr := rides.Get(ctx, r.ID)
	if getErr != nil {
		t.Fatalf("get ride: %v", getErr)
	}
	if got.DistanceKm != 3.2 || got.DurationSeconds != 480 || got.EstimatedPrice != 9.90 {
		t.Errorf("ride was mutated despite routing failure: %+v", got)
	}

	if n := len(sink.ByType(EventPriceError)); n != 1 {
		t.Errorf("expected exactly one %s entry, got %d", EventPriceError, n)
	}
	if n := len(sink.ByType(EventPriceWithRoute)); n != 0 {
		t.Errorf("expected no %s entries, got %d", EventPriceWithRoute, n)
	}
}

func TestMissingRateIsAuditedAndLeavesRideAlone(t *testing.T) {
	ctx := context.Background()
	rides := ride.NewMemoryStore()
	sink := audit.NewMemorySink()
	router := &stubRouter{route: routing.Route{DistanceMeters: 6500, DurationSeconds: 900}}
	svc := NewService(rides, NewStaticRateStore(nil), router, sink, nil)

	r := newPendingRide(t, rides)
	err := svc.HandleMutation(ctx, ride.Mutation{Kind: ride.MutationCreated, Ride: *r})
	if !errors.Is(err, ErrRateNotFound) {
		t.Fatalf("expected ErrRateNotFound, got %v", err)
	}

	got, getErr := rides.Get(ctx, r.ID)
	if getErr != nil {
		t.Fatalf("get ride: %v", getErr)
	}
	if got.EstimatedPrice != 0 {
		t.Errorf("ride was priced despite missing rate: %+v", got)
	}
	if n := len(sink.ByType(EventPriceError)); n != 1 {
		t.Errorf("expected one %s entry, got %d", EventPriceError, n)
	}
}

func TestValidationRunsBeforeRouting(t *testing.T) {
	ctx := context.Background()
	rides := ride.NewMemoryStore()
	router := &stubRouter{route: routing.Route{DistanceMeters: 6500, DurationSeconds: 900}}
	svc := NewService(rides, standardRates(), router, audit.NewMemorySink(), nil)

	r := newPendingRide(t, rides)
	r.VehicleClass = ""

	err := svc.HandleMutation(ctx, ride.Mutation{Kind: ride.MutationCreated, Ride: *r})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if router.calls != 0 {
		t.Errorf("routing calls = %d, want 0 (validate first)", router.calls)
	}
}

func TestTerminalRideIsNeverRecomputed(t *testing.T) {
	ctx := context.Background()
	rides := ride.NewMemoryStore()
	router := &stubRouter{route: routing.Route{DistanceMeters: 6500, DurationSeconds: 900}}
	svc := NewService(rides, standardRates(), router, audit.NewMemorySink(), nil)

	r := newPendingRide(t, rides)
	r.Status = ride.StatusClientCanceled

	if err := svc.HandleMutation(ctx, ride.Mutation{Kind: ride.MutationUpdated, Ride: *r}); err != nil {
		t.Fatalf("handle terminal: %v", err)
	}
	if router.calls != 0 {
		t.Errorf("routing calls = %d, want 0 for terminal ride", router.calls)
	}
}
