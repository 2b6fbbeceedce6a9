// README: Ride mutation events consumed by pricing recompute and cache invalidation.
package ride

import "context"

type MutationKind string

const (
	MutationCreated MutationKind = "created"
	MutationUpdated MutationKind = "updated"
)

// Mutation carries both the new and the previous snapshot so consumers can
// diff without re-reading the store.
type Mutation struct {
	Kind     MutationKind `json:"kind"`
	Ride     Ride         `json:"ride"`
	Previous *Ride        `json:"previous,omitempty"`
}

// Publisher emits mutation events. Publish failures are logged by the
// caller and never block the mutation itself.
type Publisher interface {
	PublishMutation(ctx context.Context, m Mutation) error
}
