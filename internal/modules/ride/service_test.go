// README: Dispatch service tests against the in-memory store.
package ride

import (
	"context"
	"sync"
	"testing"

	"chauffeur/internal/modules/audit"
	"chauffeur/internal/types"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []Mutation
}

func (p *capturePublisher) PublishMutation(ctx context.Context, m Mutation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, m)
	return nil
}

func (p *capturePublisher) all() []Mutation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Mutation, len(p.events))
	copy(out, p.events)
	return out
}

func newTestService() (*Service, *audit.MemorySink, *capturePublisher) {
	sink := audit.NewMemorySink()
	pub := &capturePublisher{}
	return NewService(NewMemoryStore(), sink, pub, nil), sink, pub
}

func createPending(t *testing.T, svc *Service) *Ride {
	t.Helper()
	r, err := svc.Create(context.Background(), CreateCommand{
		CustomerID:   "c1",
		Pickup:       types.Coordinate{Point: types.Point{Lat: 25.033, Lng: 121.565}, Address: "A"},
		Dropoff:      types.Coordinate{Point: types.Point{Lat: 25.047, Lng: 121.531}, Address: "B"},
		VehicleClass: "standard",
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return r
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCommand{VehicleClass: "standard"})
	if err != ErrBadRequest {
		t.Fatalf("expected ErrBadRequest for missing customer, got %v", err)
	}
	_, err = svc.Create(ctx, CreateCommand{
		CustomerID: "c1",
		Pickup:     types.Coordinate{Point: types.Point{Lat: 1, Lng: 1}},
		Dropoff:    types.Coordinate{Point: types.Point{Lat: 2, Lng: 2}},
	})
	if err != ErrBadRequest {
		t.Fatalf("expected ErrBadRequest for missing vehicle class, got %v", err)
	}
}

func TestCreatePublishesCreatedEvent(t *testing.T) {
	svc, sink, pub := newTestService()
	r := createPending(t, svc)

	events := pub.all()
	if len(events) != 1 || events[0].Kind != MutationCreated {
		t.Fatalf("expected one created event, got %+v", events)
	}
	if events[0].Previous != nil {
		t.Error("created event must not carry a previous snapshot")
	}
	if got := sink.ByType("ride_requested"); len(got) != 1 || got[0].RideID != r.ID {
		t.Fatalf("expected one ride_requested audit entry, got %+v", got)
	}
}

func TestAcceptClaimsPendingRide(t *testing.T) {
	svc, sink, pub := newTestService()
	ctx := context.Background()
	r := createPending(t, svc)

	got, err := svc.Accept(ctx, AcceptCommand{RideID: r.ID, DriverID: "d1"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", got.Status)
	}
	if got.DriverID == nil || *got.DriverID != "d1" {
		t.Errorf("driver_id = %v, want d1", got.DriverID)
	}
	if len(sink.ByType("ride_claimed")) != 1 {
		t.Error("expected one ride_claimed audit entry")
	}

	events := pub.all()
	last := events[len(events)-1]
	if last.Kind != MutationUpdated || last.Previous == nil || last.Previous.Status != StatusPending {
		t.Errorf("claim event should carry the pending snapshot, got %+v", last)
	}
}

func TestAcceptMissingRide(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Accept(context.Background(), AcceptCommand{RideID: "nope", DriverID: "d1"})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAcceptAlreadyScheduled(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	r := createPending(t, svc)

	if _, err := svc.Accept(ctx, AcceptCommand{RideID: r.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	_, err := svc.Accept(ctx, AcceptCommand{RideID: r.ID, DriverID: "d2"})
	if err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState for scheduled ride, got %v", err)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	svc, sink, _ := newTestService()
	ctx := context.Background()
	r := createPending(t, svc)

	if _, err := svc.Accept(ctx, AcceptCommand{RideID: r.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	started, err := svc.Start(ctx, r.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusInProgress {
		t.Errorf("status = %s, want in_progress", started.Status)
	}

	override := 42.50
	done, err := svc.Complete(ctx, CompleteCommand{RideID: r.ID, FinalPrice: &override})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if done.FinalPrice != 42.50 {
		t.Errorf("final_price = %v, want 42.50", done.FinalPrice)
	}
	for _, kind := range []string{"ride_started", "ride_completed"} {
		if len(sink.ByType(kind)) != 1 {
			t.Errorf("expected one %s audit entry", kind)
		}
	}
}

func TestCompleteKeepsRecomputedPrice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	r := createPending(t, svc)

	// Simulate a prior recompute before the driver claims it.
	store := svc.store.(*MemoryStore)
	if _, err := store.UpdatePricing(ctx, r.ID, PricingFields{DistanceKm: 6.5, DurationSeconds: 900, EstimatedPrice: 11.15, FinalPrice: 11.15}); err != nil {
		t.Fatalf("seed pricing: %v", err)
	}

	if _, err := svc.Accept(ctx, AcceptCommand{RideID: r.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Start(ctx, r.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := svc.Complete(ctx, CompleteCommand{RideID: r.ID})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.FinalPrice != 11.15 {
		t.Errorf("final_price = %v, want recomputed 11.15", done.FinalPrice)
	}
}

func TestIllegalOperationsLeaveRideUnmodified(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	r := createPending(t, svc)

	// start and complete are illegal from pending.
	if _, err := svc.Start(ctx, r.ID); err != ErrInvalidState {
		t.Fatalf("start from pending: expected ErrInvalidState, got %v", err)
	}
	if _, err := svc.Complete(ctx, CompleteCommand{RideID: r.ID}); err != ErrInvalidState {
		t.Fatalf("complete from pending: expected ErrInvalidState, got %v", err)
	}

	got, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending || got.DriverID != nil {
		t.Errorf("ride was modified by rejected operations: %+v", got)
	}

	// Nothing moves out of a terminal state.
	if _, err := svc.Cancel(ctx, CancelCommand{RideID: r.ID, Actor: ActorClient}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Accept(ctx, AcceptCommand{RideID: r.ID, DriverID: "d1"}); err != ErrInvalidState {
		t.Fatalf("accept after cancel: expected ErrInvalidState, got %v", err)
	}
}

func TestCancelActors(t *testing.T) {
	cases := map[Actor]Status{
		ActorClient: StatusClientCanceled,
		ActorDriver: StatusDriverCanceled,
		ActorAdmin:  StatusAdminCanceled,
	}
	for actor, want := range cases {
		svc, sink, _ := newTestService()
		r := createPending(t, svc)
		got, err := svc.Cancel(context.Background(), CancelCommand{RideID: r.ID, Actor: actor, Reason: "test"})
		if err != nil {
			t.Fatalf("cancel by %s: %v", actor, err)
		}
		if got.Status != want {
			t.Errorf("cancel by %s: status = %s, want %s", actor, got.Status, want)
		}
		if len(sink.ByType("ride_canceled")) != 1 {
			t.Errorf("cancel by %s: expected one ride_canceled audit entry", actor)
		}
	}

	svc, _, _ := newTestService()
	r := createPending(t, svc)
	if _, err := svc.Cancel(context.Background(), CancelCommand{RideID: r.ID, Actor: "robot"}); err != ErrBadRequest {
		t.Fatalf("expected ErrBadRequest for unknown actor, got %v", err)
	}
}

func TestAdminSideBranches(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	r := createPending(t, svc)
	got, err := svc.MarkNoShow(ctx, r.ID)
	if err != nil {
		t.Fatalf("no-show: %v", err)
	}
	if got.Status != StatusNoShow {
		t.Errorf("status = %s, want no_show", got.Status)
	}

	r2 := createPending(t, svc)
	if _, err := svc.Accept(ctx, AcceptCommand{RideID: r2.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	got, err = svc.MarkDelayed(ctx, r2.ID)
	if err != nil {
		t.Fatalf("delay: %v", err)
	}
	if got.Status != StatusDelayed {
		t.Errorf("status = %s, want delayed", got.Status)
	}

	// Side branches are terminal: no further dispatch.
	if _, err := svc.Start(ctx, r2.ID); err != ErrInvalidState {
		t.Fatalf("start after delay: expected ErrInvalidState, got %v", err)
	}
}
