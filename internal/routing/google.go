// README: Google Maps Directions routing backend.
package routing

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"chauffeur/internal/types"
)

// GoogleClient resolves routes through the Google Maps Directions API.
// Same fail-closed contract as the OSRM client.
type GoogleClient struct {
	client *maps.Client
}

func NewGoogleClient(apiKey string) (*GoogleClient, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("routing: create maps client: %w", err)
	}
	return &GoogleClient{client: client}, nil
}

func (c *GoogleClient) Route(ctx context.Context, pickup, dropoff types.Point) (Route, error) {
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", pickup.Lat, pickup.Lng),
		Destination: fmt.Sprintf("%f,%f", dropoff.Lat, dropoff.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := c.client.Directions(ctx, req)
	if err != nil {
		return Route{}, fmt.Errorf("routing: maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, ErrNoRoute
	}

	var meters float64
	var seconds float64
	for _, leg := range routes[0].Legs {
		meters += float64(leg.Distance.Meters)
		seconds += leg.Duration.Seconds()
	}
	return Route{
		DistanceMeters:  meters,
		DurationSeconds: seconds,
		Source:          "google",
	}, nil
}
