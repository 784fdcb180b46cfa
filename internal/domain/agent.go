package domain

import (
	"context"
	"time"
)

// RegistryEntry maps an agent name to the callback address messages for that
// agent are forwarded to. At most one entry exists per name; re-registration
// overwrites the address (last write wins). Entries never expire on their own
// and are removed only by explicit deregistration.
type RegistryEntry struct {
	Name         string    `json:"name"`
	CallbackURL  string    `json:"url"`
	RegisteredAt time.Time `json:"registered_at"`
}

// RegistryStore persists registry entries. Implementations must provide
// last-writer-wins semantics on Upsert; no transactional coordination with
// the queue is required.
type RegistryStore interface {
	// Upsert inserts or replaces the entry for entry.Name.
	Upsert(ctx context.Context, entry RegistryEntry) error
	// Lookup returns the current entry for name, or ErrAgentNotRegistered.
	// Absence is a normal outcome the caller must handle.
	Lookup(ctx context.Context, name string) (*RegistryEntry, error)
	// List returns all entries sorted by name.
	List(ctx context.Context) ([]RegistryEntry, error)
	// Remove deletes the entry for name, or returns ErrAgentNotRegistered.
	Remove(ctx context.Context, name string) error
}
