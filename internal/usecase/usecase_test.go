package usecase

import (
	"context"
	"sync"

	"relayd/internal/domain"
)

// --- Test fakes ---

type fakeRegistryStore struct {
	mu      sync.Mutex
	agents  map[string]domain.RegistryEntry
	failErr error // injected store failure
}

func newFakeRegistryStore() *fakeRegistryStore {
	return &fakeRegistryStore{agents: make(map[string]domain.RegistryEntry)}
}

func (s *fakeRegistryStore) Upsert(_ context.Context, entry domain.RegistryEntry) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[entry.Name] = entry
	return nil
}

func (s *fakeRegistryStore) Lookup(_ context.Context, name string) (*domain.RegistryEntry, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.agents[name]
	if !ok {
		return nil, domain.NewDomainError("store.Lookup", domain.ErrAgentNotRegistered, name)
	}
	return &entry, nil
}

func (s *fakeRegistryStore) List(_ context.Context) ([]domain.RegistryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]domain.RegistryEntry, 0, len(s.agents))
	for _, e := range s.agents {
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *fakeRegistryStore) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[name]; !ok {
		return domain.NewDomainError("store.Remove", domain.ErrAgentNotRegistered, name)
	}
	delete(s.agents, name)
	return nil
}

type fakeQueueStore struct {
	mu      sync.Mutex
	pending map[string][]domain.QueuedMessage
	failErr error
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{pending: make(map[string][]domain.QueuedMessage)}
}

func (s *fakeQueueStore) Enqueue(_ context.Context, msg domain.QueuedMessage) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[msg.Recipient] = append(s.pending[msg.Recipient], msg)
	return nil
}

func (s *fakeQueueStore) Drain(_ context.Context, recipient string) ([]domain.QueuedMessage, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.pending[recipient]
	delete(s.pending, recipient)
	return msgs, nil
}

func (s *fakeQueueStore) Pending(_ context.Context, recipient string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[recipient]), nil
}

type pushCall struct {
	URL string
	Env domain.PushEnvelope
}

type fakePusher struct {
	mu     sync.Mutex
	calls  []pushCall
	result *domain.PushResult
	err    error
}

func (p *fakePusher) Push(_ context.Context, url string, env domain.PushEnvelope) (*domain.PushResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, pushCall{URL: url, Env: env})
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.result != nil {
		return p.result, nil
	}
	return &domain.PushResult{StatusCode: 200}, nil
}

func (p *fakePusher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *fakeBus) Publish(_ context.Context, e domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}
func (b *fakeBus) Subscribe(_ domain.EventType, _ domain.EventHandler) func() { return func() {} }
func (b *fakeBus) SubscribeAll(_ domain.EventHandler) func()                  { return func() {} }
func (b *fakeBus) Close()                                                     {}

func (b *fakeBus) byType(t domain.EventType) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Event
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
