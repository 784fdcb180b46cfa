package store

import (
	"context"
	"sort"
	"sync"

	"relayd/internal/domain"
)

// MemoryStore implements domain.RegistryStore and domain.QueueStore with
// process-local maps. Used for tests and single-process deployments where
// durability across restarts is not needed. The mutex is held across a
// drain's read and delete, which makes the drain atomic.
type MemoryStore struct {
	mu      sync.RWMutex
	agents  map[string]domain.RegistryEntry
	pending map[string][]domain.QueuedMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:  make(map[string]domain.RegistryEntry),
		pending: make(map[string][]domain.QueuedMessage),
	}
}

// --- domain.RegistryStore ---

func (s *MemoryStore) Upsert(_ context.Context, entry domain.RegistryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[entry.Name] = entry
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, name string) (*domain.RegistryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.agents[name]
	if !ok {
		return nil, domain.NewDomainError("store.Lookup", domain.ErrAgentNotRegistered, name)
	}
	return &entry, nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.RegistryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.RegistryEntry, 0, len(s.agents))
	for _, entry := range s.agents {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func (s *MemoryStore) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[name]; !ok {
		return domain.NewDomainError("store.Remove", domain.ErrAgentNotRegistered, name)
	}
	delete(s.agents, name)
	return nil
}

// --- domain.QueueStore ---

func (s *MemoryStore) Enqueue(_ context.Context, msg domain.QueuedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[msg.Recipient] = append(s.pending[msg.Recipient], msg)
	return nil
}

func (s *MemoryStore) Drain(_ context.Context, recipient string) ([]domain.QueuedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.pending[recipient]
	if len(msgs) == 0 {
		return nil, nil
	}
	delete(s.pending, recipient)
	return msgs, nil
}

func (s *MemoryStore) Pending(_ context.Context, recipient string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending[recipient]), nil
}

// Compile-time interface checks.
var (
	_ domain.RegistryStore = (*MemoryStore)(nil)
	_ domain.QueueStore    = (*MemoryStore)(nil)
)
