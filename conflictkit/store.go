package conflictkit

import (
	"context"
	"errors"
)

// ErrConflictNotFound is returned by stores when a lookup misses.
var ErrConflictNotFound = errors.New("conflict not found")

// ConflictStore is the durable collection of Conflict records. It is the only
// shared mutable state in the engine, so implementations carry the
// concurrency burden: FindOrCreate must be atomic end-to-end for a given key
// tuple, and Update must refuse to mutate a record that is already terminal.
//
// Records are never deleted; terminal conflicts remain as the audit trail.
type ConflictStore interface {
	// FindOrCreate returns the existing pending conflict for the candidate's
	// key tuple if one exists (created=false, candidate discarded), otherwise
	// persists the candidate and returns it (created=true). The
	// check-then-create is a single atomic step.
	FindOrCreate(ctx context.Context, candidate *Conflict) (got *Conflict, created bool, err error)

	// Get returns a conflict by domain and id, or ErrConflictNotFound.
	Get(ctx context.Context, domain, id string) (*Conflict, error)

	// ListPending returns the pending conflicts for a domain, oldest first.
	ListPending(ctx context.Context, domain string) ([]*Conflict, error)

	// Update persists a mutation of a pending conflict. Updating a conflict
	// that is already terminal fails with an ALREADY_FINALIZED error; updating
	// an unknown id fails with ErrConflictNotFound.
	Update(ctx context.Context, c *Conflict) error

	Close() error
}
