// README: OSRM-backed routing client over plain HTTP.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chauffeur/internal/types"
)

const defaultTimeout = 8 * time.Second

// OSRMClient talks to an OSRM "route" endpoint:
// GET {base}/route/v1/driving/{lng},{lat};{lng},{lat}?overview=false
type OSRMClient struct {
	base string
	http *http.Client
}

func NewOSRMClient(base string, timeout time.Duration) *OSRMClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OSRMClient{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

type osrmRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

type osrmResponse struct {
	Code   string      `json:"code"`
	Routes []osrmRoute `json:"routes"`
}

func (c *OSRMClient) Route(ctx context.Context, pickup, dropoff types.Point) (Route, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		c.base, pickup.Lng, pickup.Lat, dropoff.Lng, dropoff.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Route{}, fmt.Errorf("routing: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("routing: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Route{}, fmt.Errorf("routing: unexpected status %d", resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Route{}, fmt.Errorf("routing: decode response: %w", err)
	}
	if len(body.Routes) == 0 {
		return Route{}, ErrNoRoute
	}

	r := body.Routes[0]
	return Route{
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
		Source:          "osrm",
	}, nil
}
