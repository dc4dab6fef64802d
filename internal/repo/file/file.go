// Package file persists items and shops as JSON documents in a data
// directory. Writes go to a temp file first and are renamed into place,
// so a crash mid-save leaves the previous document intact.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pricetracker/internal/domain"
	"pricetracker/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const (
	itemsFile = "items.json"
	shopsFile = "shops.json"
)

type Store struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// shopsDoc mirrors the on-disk shape: {"shops": {name: selector}}.
type shopsDoc struct {
	Shops map[string]string `json:"shops"`
}

func (s *Store) LoadItems(ctx context.Context) ([]*domain.TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []*domain.TrackedItem
	if err := s.read(itemsFile, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveItem(ctx context.Context, it *domain.TrackedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []*domain.TrackedItem
	if err := s.read(itemsFile, &items); err != nil {
		return err
	}
	replaced := false
	for i, cur := range items {
		if cur.URL == it.URL {
			items[i] = it.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, it.Clone())
	}
	return s.write(itemsFile, items)
}

func (s *Store) DeleteItem(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []*domain.TrackedItem
	if err := s.read(itemsFile, &items); err != nil {
		return err
	}
	kept := items[:0]
	for _, cur := range items {
		if cur.URL != url {
			kept = append(kept, cur)
		}
	}
	if len(kept) == len(items) {
		return fmt.Errorf("delete item %s: %w", url, domain.ErrNotFound)
	}
	return s.write(itemsFile, kept)
}

func (s *Store) LoadShops(ctx context.Context) ([]*domain.ShopDef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readShops()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ShopDef, 0, len(doc.Shops))
	for name, sel := range doc.Shops {
		out = append(out, &domain.ShopDef{Name: name, Selector: sel})
	}
	return out, nil
}

func (s *Store) SaveShop(ctx context.Context, sh *domain.ShopDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readShops()
	if err != nil {
		return err
	}
	doc.Shops[sh.Name] = sh.Selector
	return s.write(shopsFile, doc)
}

func (s *Store) DeleteShop(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readShops()
	if err != nil {
		return err
	}
	if _, ok := doc.Shops[name]; !ok {
		return fmt.Errorf("delete shop %s: %w", name, domain.ErrNotFound)
	}
	delete(doc.Shops, name)
	return s.write(shopsFile, doc)
}

func (s *Store) RenameShop(ctx context.Context, oldName string, sh *domain.ShopDef, items []*domain.TrackedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readShops()
	if err != nil {
		return err
	}
	delete(doc.Shops, oldName)
	doc.Shops[sh.Name] = sh.Selector

	var all []*domain.TrackedItem
	if err := s.read(itemsFile, &all); err != nil {
		return err
	}
	byURL := make(map[string]*domain.TrackedItem, len(items))
	for _, it := range items {
		byURL[it.URL] = it
	}
	for i, cur := range all {
		if upd, ok := byURL[cur.URL]; ok {
			all[i] = upd.Clone()
		}
	}

	// Items first: an item pointing at the new name before shops.json
	// lands is repaired by the shops write; the reverse order could
	// strand items on the deleted name after a crash.
	if err := s.write(itemsFile, all); err != nil {
		return err
	}
	return s.write(shopsFile, doc)
}

func (s *Store) readShops() (*shopsDoc, error) {
	doc := &shopsDoc{Shops: map[string]string{}}
	if err := s.read(shopsFile, doc); err != nil {
		return nil, err
	}
	if doc.Shops == nil {
		doc.Shops = map[string]string{}
	}
	return doc, nil
}

func (s *Store) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *Store) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
