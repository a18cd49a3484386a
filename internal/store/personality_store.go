package store

import (
	"context"

	"github.com/tzurot/tzurot/internal/personality"
)

// PersonalityStore persists personality definitions. The routing core
// reads them through the in-memory registry; writes come from operator
// tooling.
type PersonalityStore interface {
	List(ctx context.Context) ([]personality.Personality, error)
	Get(ctx context.Context, name string) (personality.Personality, bool, error)
	Upsert(ctx context.Context, p personality.Personality) error
	Delete(ctx context.Context, name string) error

	// Watch registers a callback invoked when the backing data changes
	// out-of-band (file edits in standalone mode). Backends without
	// change notification return a no-op stop function.
	Watch(onChange func()) (stop func(), err error)
}
