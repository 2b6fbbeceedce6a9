// README: Redis read-through ride cache invalidated by mutation events.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"chauffeur/internal/modules/ride"
	"chauffeur/internal/types"
)

const rideKeyPrefix = "ride:"

// Cached rides go stale only between a mutation and its invalidation event;
// the TTL caps how long a missed invalidation can linger.
const rideTTL = 5 * time.Minute

type RideCache struct {
	redis *redis.Client
	store ride.Store
}

func NewRideCache(r *redis.Client, store ride.Store) *RideCache {
	return &RideCache{redis: r, store: store}
}

// Get serves reads through the cache; misses fall back to the store and
// populate the cache. Redis trouble degrades to plain store reads.
func (c *RideCache) Get(ctx context.Context, id types.ID) (*ride.Ride, error) {
	val, err := c.redis.Get(ctx, rideKey(id)).Result()
	if err == nil {
		var r ride.Ride
		if jsonErr := json.Unmarshal([]byte(val), &r); jsonErr == nil {
			return &r, nil
		}
	}

	r, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if body, jsonErr := json.Marshal(r); jsonErr == nil {
		c.redis.Set(ctx, rideKey(id), body, rideTTL)
	}
	return r, nil
}

// HandleMutation drops the cached copy on every mutation event.
func (c *RideCache) HandleMutation(ctx context.Context, m ride.Mutation) error {
	return c.redis.Del(ctx, rideKey(m.Ride.ID)).Err()
}

func rideKey(id types.ID) string {
	return rideKeyPrefix + string(id)
}
