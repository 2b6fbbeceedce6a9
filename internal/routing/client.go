// README: Routing client contract; road distance and travel time between two points.
package routing

import (
	"context"
	"errors"

	"chauffeur/internal/types"
)

// Route is the answer of a routing backend. Source names the backend so the
// pricing audit trail can record where a distance came from.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	Source          string
}

// Client resolves the driving route between pickup and dropoff.
//
// Implementations are fail-closed: on timeout, transport error, or a
// malformed answer they return an error and never substitute a straight-line
// estimate. A silently wrong price is worse than a rejected booking.
type Client interface {
	Route(ctx context.Context, pickup, dropoff types.Point) (Route, error)
}

// ErrNoRoute is returned when the backend answered but found no route
// between the two points.
var ErrNoRoute = errors.New("routing: no route found")
