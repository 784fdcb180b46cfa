package usecase

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"relayd/internal/domain"
)

// Registry maps agent names to callback addresses. It wraps a
// domain.RegistryStore with validation, logging and event publication; the
// store itself only needs last-writer-wins upserts.
type Registry struct {
	store  domain.RegistryStore
	bus    domain.EventBus
	logger *slog.Logger
}

// NewRegistry creates a Registry backed by store.
func NewRegistry(store domain.RegistryStore, bus domain.EventBus, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		bus:    bus,
		logger: logger,
	}
}

// Register upserts the callback address for name. Idempotent: registering
// the same (name, url) twice is a no-op in observable effect; a new url
// overwrites the old one (last write wins). The url must parse as an
// absolute URL but is not checked for reachability.
func (r *Registry) Register(ctx context.Context, name, rawURL string) (*domain.RegistryEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewDomainError("Registry.Register", domain.ErrInvalidAgentName, "")
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, domain.NewDomainError("Registry.Register", domain.ErrInvalidCallback, rawURL)
	}

	entry := domain.RegistryEntry{
		Name:         name,
		CallbackURL:  rawURL,
		RegisteredAt: time.Now().UTC(),
	}
	if err := r.store.Upsert(ctx, entry); err != nil {
		return nil, domain.WrapOp("Registry.Register", err)
	}

	r.logger.Info("agent registered", "agent", name, "url", rawURL)
	r.publish(ctx, domain.EventAgentRegistered, name)
	return &entry, nil
}

// Lookup returns the current entry for name, or ErrAgentNotRegistered.
// A missing name is a normal outcome, not a server fault.
func (r *Registry) Lookup(ctx context.Context, name string) (*domain.RegistryEntry, error) {
	entry, err := r.store.Lookup(ctx, name)
	if err != nil {
		return nil, domain.WrapOp("Registry.Lookup", err)
	}
	return entry, nil
}

// List returns all registered agents sorted by name.
func (r *Registry) List(ctx context.Context) ([]domain.RegistryEntry, error) {
	entries, err := r.store.List(ctx)
	if err != nil {
		return nil, domain.WrapOp("Registry.List", err)
	}
	return entries, nil
}

// Deregister removes the entry for name. Returns ErrAgentNotRegistered if
// absent. Pending messages for the agent are kept; a later poll still
// drains them.
func (r *Registry) Deregister(ctx context.Context, name string) error {
	if err := r.store.Remove(ctx, name); err != nil {
		return domain.WrapOp("Registry.Deregister", err)
	}
	r.logger.Info("agent deregistered", "agent", name)
	r.publish(ctx, domain.EventAgentDeregistered, name)
	return nil
}

func (r *Registry) publish(ctx context.Context, t domain.EventType, agent string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(ctx, domain.Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		Agent:     agent,
	})
}
