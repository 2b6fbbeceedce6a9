// README: Append-only audit entry for dispatch and pricing events.
package audit

import (
	"context"
	"time"

	"chauffeur/internal/types"
)

type Entry struct {
	EventType string
	Service   string
	RideID    types.ID
	// Price is set only for events that carry a computed amount.
	Price     *float64
	Metadata  map[string]any
	CreatedAt time.Time
}

// Sink records entries for postmortem and metrics. Entries are never updated
// or deleted. A failing sink must not block the operation that emitted the
// entry; callers log and continue.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}
