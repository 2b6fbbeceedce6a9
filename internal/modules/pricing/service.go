// README: Pricing recompute service; diff, route, rate lookup, atomic write-back, audit.
package pricing

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"chauffeur/internal/modules/audit"
	"chauffeur/internal/modules/ride"
	"chauffeur/internal/routing"
)

var ErrValidation = errors.New("ride is missing pricing inputs")

const serviceName = "pricing"

// Audit event kinds emitted by this service.
const (
	EventPriceWithRoute = "price_calculation_with_route"
	EventPriceError     = "price_calculation_error"
	EventPriceWrite     = "price_write_error"
)

type Service struct {
	rides  ride.Store
	rates  RateStore
	router routing.Client
	audit  audit.Sink
	log    *slog.Logger
}

func NewService(rides ride.Store, rates RateStore, router routing.Client, sink audit.Sink, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{rides: rides, rates: rates, router: router, audit: sink, log: log}
}

// HandleMutation is the event entry point. It decides whether the mutation
// changed anything price-relevant and recomputes only then, so unrelated
// edits never cost a routing call.
func (s *Service) HandleMutation(ctx context.Context, m ride.Mutation) error {
	if m.Ride.Status.Terminal() {
		return nil
	}
	if !needsRecompute(m) {
		return nil
	}
	return s.Recompute(ctx, &m.Ride)
}

// needsRecompute diffs the price-relevant fields: coordinates, vehicle
// class, and the option array. The option comparison is positional on
// purpose; a reordered but equal set triggers a recompute, which is
// harmless because the recompute is idempotent.
func needsRecompute(m ride.Mutation) bool {
	if m.Kind == ride.MutationCreated || m.Previous == nil {
		return true
	}
	prev := m.Previous
	if prev.Pickup.Point != m.Ride.Pickup.Point {
		return true
	}
	if prev.Dropoff.Point != m.Ride.Dropoff.Point {
		return true
	}
	if prev.VehicleClass != m.Ride.VehicleClass {
		return true
	}
	return !slices.Equal(prev.Options, m.Ride.Options)
}

// Recompute prices one ride: route the itinerary, look up the rate, apply
// the formula, and write distance, duration, and both prices back in a
// single update. Every attempt leaves an audit entry; failures leave the
// ride exactly as it was.
func (s *Service) Recompute(ctx context.Context, r *ride.Ride) error {
	if r.VehicleClass == "" || r.Pickup.Zero() || r.Dropoff.Zero() {
		s.auditError(ctx, r, "validation", ErrValidation)
		return ErrValidation
	}

	route, err := s.router.Route(ctx, r.Pickup.Point, r.Dropoff.Point)
	if err != nil {
		// Fail closed: no haversine fallback, no price change.
		s.auditError(ctx, r, "routing", err)
		return err
	}

	rate, err := s.rates.GetRate(ctx, r.VehicleClass)
	if err != nil {
		s.auditError(ctx, r, "rate_lookup", err)
		return err
	}

	quote := Compute(rate, route.DistanceMeters/1000.0, r.Options)
	quote.DurationSeconds = route.DurationSeconds
	quote.Source = route.Source

	// The breakdown is audited even if the write below fails; a priced but
	// unsaved ride must be reconcilable from the trail.
	s.auditQuote(ctx, r, quote)

	matched, err := s.rides.UpdatePricing(ctx, r.ID, ride.PricingFields{
		DistanceKm:      quote.DistanceKm,
		DurationSeconds: quote.DurationSeconds,
		EstimatedPrice:  quote.Total,
		FinalPrice:      quote.Total,
	})
	if err != nil {
		s.auditWriteError(ctx, r, quote, err)
		return err
	}
	if !matched {
		// The ride left pending/scheduled while we were pricing it; the
		// price no longer applies and is dropped.
		s.log.Info("pricing write skipped, ride moved on", "ride_id", string(r.ID))
	}
	return nil
}

func (s *Service) auditQuote(ctx context.Context, r *ride.Ride, q Quote) {
	total := q.Total
	s.append(ctx, audit.Entry{
		EventType: EventPriceWithRoute,
		Service:   serviceName,
		RideID:    r.ID,
		Price:     &total,
		Metadata: map[string]any{
			"base_price":       q.BasePrice,
			"price_per_km":     q.PricePerKm,
			"min_price":        q.MinPrice,
			"distance_km":      q.DistanceKm,
			"duration_seconds": q.DurationSeconds,
			"distance_charge":  q.DistanceCharge,
			"options_charge":   q.OptionsCharge,
			"options":          r.Options,
			"vehicle_class":    r.VehicleClass,
			"routing_source":   q.Source,
			"total":            q.Total,
		},
	})
}

func (s *Service) auditError(ctx context.Context, r *ride.Ride, stage string, cause error) {
	s.append(ctx, audit.Entry{
		EventType: EventPriceError,
		Service:   serviceName,
		RideID:    r.ID,
		Metadata: map[string]any{
			"stage": stage,
			"error": cause.Error(),
		},
	})
}

func (s *Service) auditWriteError(ctx context.Context, r *ride.Ride, q Quote, cause error) {
	total := q.Total
	s.append(ctx, audit.Entry{
		EventType: EventPriceWrite,
		Service:   serviceName,
		RideID:    r.ID,
		Price:     &total,
		Metadata: map[string]any{
			"error": cause.Error(),
		},
	})
}

func (s *Service) append(ctx context.Context, e audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, e); err != nil {
		s.log.Warn("audit append failed", "event", e.EventType, "ride_id", string(e.RideID), "error", err)
	}
}
