// Package memory provides an in-memory ConflictStore. It backs tests and
// single-process deployments; durability comes from the sqlite or postgres
// backends.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/c0deZ3R0/go-conflict-kit/conflictkit"
	conflictErrors "github.com/c0deZ3R0/go-conflict-kit/errors"
)

// Store keeps all conflicts in process memory. A single mutex serializes
// check-then-create for the pending key tuple, which is the whole concurrency
// contract of the ConflictStore interface.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*conflictkit.Conflict
	pending map[conflictkit.Key]string // key tuple -> conflict ID
}

var _ conflictkit.ConflictStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*conflictkit.Conflict),
		pending: make(map[conflictkit.Key]string),
	}
}

// FindOrCreate implements the atomic check-then-create. The stored record and
// the returned record are independent copies.
func (s *Store) FindOrCreate(ctx context.Context, candidate *conflictkit.Conflict) (*conflictkit.Conflict, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.pending[candidate.Key()]; ok {
		return s.byID[id].Clone(), false, nil
	}

	stored := candidate.Clone()
	s.byID[stored.ID] = stored
	if stored.Status == conflictkit.StatusPending {
		s.pending[stored.Key()] = stored.ID
	}
	return stored.Clone(), true, nil
}

// Get returns a copy of the conflict with the given domain and id.
func (s *Store) Get(ctx context.Context, domain, id string) (*conflictkit.Conflict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok || c.Domain != domain {
		return nil, conflictkit.ErrConflictNotFound
	}
	return c.Clone(), nil
}

// ListPending returns the domain's pending conflicts, oldest first.
func (s *Store) ListPending(ctx context.Context, domain string) ([]*conflictkit.Conflict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*conflictkit.Conflict
	for _, id := range s.pending {
		c := s.byID[id]
		if c.Domain == domain {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Update replaces the stored record. Mutating a record that is already
// terminal fails loudly: terminal conflicts are read-only history.
func (s *Store) Update(ctx context.Context, c *conflictkit.Conflict) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[c.ID]
	if !ok {
		return conflictkit.ErrConflictNotFound
	}
	if existing.Terminal() {
		return conflictErrors.NewAlreadyFinalized(conflictErrors.OpUpdate, existing.ID, string(existing.Status))
	}

	stored := c.Clone()
	s.byID[stored.ID] = stored
	if stored.Terminal() {
		delete(s.pending, stored.Key())
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// Len reports the total number of stored conflicts (tests and diagnostics).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
