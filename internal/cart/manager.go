package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/studykart/studykart/internal/discount"
	"github.com/studykart/studykart/internal/port"
)

// Manager hands out one Store per owner so every surface of a session
// reads and mutates the same cart, and syncs stores with the repository.
type Manager struct {
	mu     sync.Mutex
	policy *discount.Policy
	repo   port.CartRepository // nil disables persistence
	stores map[string]*storeEntry
}

// storeEntry gates the first-access snapshot load: no caller gets the
// store until the load has run, so a concurrent mutation can never be
// wiped by the restore.
type storeEntry struct {
	once  sync.Once
	store *Store
	err   error
}

func NewManager(policy *discount.Policy, repo port.CartRepository) *Manager {
	return &Manager{
		policy: policy,
		repo:   repo,
		stores: make(map[string]*storeEntry),
	}
}

// Get returns the owner's store, loading the persisted snapshot on first
// access. Concurrent first-access calls block until the one load
// finishes. A load failure is returned but still yields a usable empty
// store so the session can continue; the load is not retried.
func (m *Manager) Get(ctx context.Context, ownerID string) (*Store, error) {
	m.mu.Lock()
	e, ok := m.stores[ownerID]
	if !ok {
		e = &storeEntry{store: NewStore(ownerID, m.policy)}
		m.stores[ownerID] = e
	}
	m.mu.Unlock()

	e.once.Do(func() {
		if m.repo == nil {
			return
		}

		cart, err := m.repo.GetCart(ctx, ownerID)
		if err != nil {
			e.err = fmt.Errorf("repo.GetCart: %w", err)
			return
		}

		bundle, err := m.repo.GetBundle(ctx, ownerID)
		if err != nil {
			e.err = fmt.Errorf("repo.GetBundle: %w", err)
			return
		}

		e.store.Restore(cart, bundle)
	})

	return e.store, e.err
}

// Persist writes the owner's current snapshot through the repository.
func (m *Manager) Persist(ctx context.Context, ownerID string) error {
	if m.repo == nil {
		return nil
	}

	m.mu.Lock()
	e, ok := m.stores[ownerID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if err := m.repo.SaveSnapshot(ctx, e.store.Cart(), e.store.Bundle()); err != nil {
		return fmt.Errorf("repo.SaveSnapshot: %w", err)
	}

	return nil
}
