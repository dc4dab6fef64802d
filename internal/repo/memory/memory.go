package memory

import (
	"context"
	"fmt"
	"sync"

	"pricetracker/internal/domain"
	"pricetracker/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store keeps everything in process memory. Used by tests and as the
// fallback when no durable store is configured.
type Store struct {
	mu    sync.RWMutex
	items map[string]*domain.TrackedItem // keyed by URL
	shops map[string]*domain.ShopDef
}

func New() *Store {
	return &Store{
		items: make(map[string]*domain.TrackedItem),
		shops: make(map[string]*domain.ShopDef),
	}
}

func (m *Store) LoadItems(ctx context.Context) ([]*domain.TrackedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.TrackedItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it.Clone())
	}
	return out, nil
}

func (m *Store) SaveItem(ctx context.Context, it *domain.TrackedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.URL] = it.Clone()
	return nil
}

func (m *Store) DeleteItem(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[url]; !ok {
		return fmt.Errorf("delete item %s: %w", url, domain.ErrNotFound)
	}
	delete(m.items, url)
	return nil
}

func (m *Store) LoadShops(ctx context.Context) ([]*domain.ShopDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.ShopDef, 0, len(m.shops))
	for _, s := range m.shops {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Store) SaveShop(ctx context.Context, s *domain.ShopDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.shops[s.Name] = &cp
	return nil
}

func (m *Store) DeleteShop(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shops[name]; !ok {
		return fmt.Errorf("delete shop %s: %w", name, domain.ErrNotFound)
	}
	delete(m.shops, name)
	return nil
}

func (m *Store) RenameShop(ctx context.Context, oldName string, s *domain.ShopDef, items []*domain.TrackedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.shops, oldName)
	cp := *s
	m.shops[s.Name] = &cp
	for _, it := range items {
		m.items[it.URL] = it.Clone()
	}
	return nil
}
