// Package tracker owns the poll cycle and the tracked item collection.
// The engine is an explicit instance with injected collaborators; there
// is no package-level state.
package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pricetracker/internal/domain"
	"pricetracker/internal/extract"
	"pricetracker/internal/fetch"
	"pricetracker/internal/notify"
	"pricetracker/internal/repo"
)

type Engine struct {
	log      *zap.Logger
	store    repo.Store
	fetcher  fetch.Fetcher
	notifier notify.Notifier

	timeout     time.Duration
	concurrency int

	paused atomic.Bool

	mu    sync.RWMutex
	items map[string]*domain.TrackedItem // keyed by URL
	shops map[string]*domain.ShopDef
}

func NewEngine(
	log *zap.Logger,
	store repo.Store,
	fetcher fetch.Fetcher,
	notifier notify.Notifier,
	timeout time.Duration,
	concurrency int,
) *Engine {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		log:         log,
		store:       store,
		fetcher:     fetcher,
		notifier:    notifier,
		timeout:     timeout,
		concurrency: concurrency,
		items:       make(map[string]*domain.TrackedItem),
		shops:       make(map[string]*domain.ShopDef),
	}
}

// Load pulls items and shops from the store into memory. Call once at
// startup, or again to resynchronize after a persistence failure.
func (e *Engine) Load(ctx context.Context) error {
	items, err := e.store.LoadItems(ctx)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	shops, err := e.store.LoadShops(ctx)
	if err != nil {
		return fmt.Errorf("load shops: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = make(map[string]*domain.TrackedItem, len(items))
	for _, it := range items {
		e.items[it.URL] = it
	}
	e.shops = make(map[string]*domain.ShopDef, len(shops))
	for _, s := range shops {
		e.shops[s.Name] = s
	}
	return nil
}

// ---- item administration ----

func (e *Engine) AddItem(ctx context.Context, name, url, shop, selector string, initialPrice float64) (*domain.TrackedItem, error) {
	if name == "" || url == "" {
		return nil, fmt.Errorf("add item: name and url are required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.items[url]; ok {
		return nil, fmt.Errorf("add item %s: %w", url, domain.ErrDuplicateURL)
	}
	it := &domain.TrackedItem{
		ID:        domain.ItemID(uuid.NewString()),
		Name:      name,
		URL:       url,
		Shop:      shop,
		Selector:  selector,
		CreatedAt: time.Now().UTC(),
	}
	if initialPrice > 0 {
		it.RecordPrice(initialPrice)
	}
	e.items[url] = it
	if err := e.store.SaveItem(ctx, it.Clone()); err != nil {
		return it.Clone(), fmt.Errorf("persist item: %w", err)
	}
	return it.Clone(), nil
}

func (e *Engine) RemoveItem(ctx context.Context, url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.items[url]; !ok {
		return fmt.Errorf("remove item %s: %w", url, domain.ErrNotFound)
	}
	delete(e.items, url)
	if err := e.store.DeleteItem(ctx, url); err != nil {
		return fmt.Errorf("persist removal: %w", err)
	}
	return nil
}

// Items returns clones sorted by creation time, oldest first.
func (e *Engine) Items() []*domain.TrackedItem {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.TrackedItem, 0, len(e.items))
	for _, it := range e.items {
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].URL < out[j].URL
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// SetPrice records a price without fetching. To later readers the
// update is indistinguishable from an extraction-derived one, drop
// notification included.
func (e *Engine) SetPrice(ctx context.Context, url string, price float64) error {
	e.mu.Lock()
	it, ok := e.items[url]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("set price %s: %w", url, domain.ErrNotFound)
	}
	previous := it.RecordPrice(price)
	cp := it.Clone()
	saveErr := e.store.SaveItem(ctx, cp)
	e.mu.Unlock()

	e.maybeNotify(ctx, cp, previous, price)
	if saveErr != nil {
		return fmt.Errorf("persist price: %w", saveErr)
	}
	return nil
}

// ---- shop administration ----

func (e *Engine) Shops() []*domain.ShopDef {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.ShopDef, 0, len(e.shops))
	for _, s := range e.shops {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (e *Engine) AddShop(ctx context.Context, name, selector string) error {
	if name == "" {
		return fmt.Errorf("add shop: name is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.shops[name]; ok {
		return fmt.Errorf("add shop %s: %w", name, domain.ErrAlreadyExists)
	}
	s := &domain.ShopDef{Name: name, Selector: selector}
	e.shops[name] = s
	if err := e.store.SaveShop(ctx, s); err != nil {
		return fmt.Errorf("persist shop: %w", err)
	}
	return nil
}

func (e *Engine) UpdateShop(ctx context.Context, name, selector string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.shops[name]
	if !ok {
		return fmt.Errorf("update shop %s: %w", name, domain.ErrNotFound)
	}
	s.Selector = selector
	cp := *s
	if err := e.store.SaveShop(ctx, &cp); err != nil {
		return fmt.Errorf("persist shop: %w", err)
	}
	return nil
}

func (e *Engine) RemoveShop(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.shops[name]; !ok {
		return fmt.Errorf("remove shop %s: %w", name, domain.ErrNotFound)
	}
	delete(e.shops, name)
	if err := e.store.DeleteShop(ctx, name); err != nil {
		return fmt.Errorf("persist shop removal: %w", err)
	}
	return nil
}

// RenameShop swaps oldKey for newKey and retargets every item that
// referenced the old key, as one operation. Validation failures leave
// all state untouched.
func (e *Engine) RenameShop(ctx context.Context, oldKey, newKey, newSelector string) error {
	if newKey == "" {
		return fmt.Errorf("rename shop: new name is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.shops[oldKey]; !ok {
		return fmt.Errorf("rename shop %s: %w", oldKey, domain.ErrNotFound)
	}
	if newKey != oldKey {
		if _, ok := e.shops[newKey]; ok {
			return fmt.Errorf("rename shop to %s: %w", newKey, domain.ErrAlreadyExists)
		}
	}

	def := &domain.ShopDef{Name: newKey, Selector: newSelector}
	delete(e.shops, oldKey)
	e.shops[newKey] = def

	var changed []*domain.TrackedItem
	for _, it := range e.items {
		if it.Shop == oldKey {
			it.Shop = newKey
			changed = append(changed, it.Clone())
		}
	}

	cp := *def
	if err := e.store.RenameShop(ctx, oldKey, &cp, changed); err != nil {
		return fmt.Errorf("persist rename: %w", err)
	}
	return nil
}

// ---- pause gate ----

// Pause stops the scheduling loop from invoking PollOnce. Item and shop
// mutations keep working, and a manual PollOnce still runs.
func (e *Engine) Pause()       { e.paused.Store(true) }
func (e *Engine) Resume()      { e.paused.Store(false) }
func (e *Engine) Paused() bool { return e.paused.Load() }

// ---- poll cycle ----

// pollTask is the consistent per-tick snapshot of one item: the cycle
// never touches live records outside applyUpdate.
type pollTask struct {
	url      string
	name     string
	selector string
	auto     bool
}

// PollOnce sweeps every tracked item: fetch, extract, record, and
// notify on a drop. Failures are isolated per item and never abort the
// cycle.
func (e *Engine) PollOnce(ctx context.Context) {
	tasks := e.snapshot()
	if len(tasks) == 0 {
		return
	}

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for _, task := range tasks {
		t := task
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			e.pollItem(ctx, t)
		}()
	}
	wg.Wait()
}

func (e *Engine) snapshot() []pollTask {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]pollTask, 0, len(e.items))
	for _, it := range e.items {
		sel := e.effectiveSelector(it)
		out = append(out, pollTask{
			url:      it.URL,
			name:     it.Name,
			selector: sel,
			auto:     sel == "",
		})
	}
	return out
}

// effectiveSelector resolves the extraction profile for an item: a
// named shop wins, an unknown shop key is treated as an inline
// selector, and an empty result means auto-detection. Callers hold mu.
func (e *Engine) effectiveSelector(it *domain.TrackedItem) string {
	if it.Shop != "" {
		if s, ok := e.shops[it.Shop]; ok {
			return s.Selector
		}
		if it.Selector == "" {
			return it.Shop
		}
	}
	return it.Selector
}

func (e *Engine) pollItem(ctx context.Context, t pollTask) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	content, err := e.fetcher.Fetch(cctx, t.url)
	if err != nil {
		e.log.Warn("poll_fetch_error",
			zap.String("url", t.url),
			zap.String("name", t.name),
			zap.Error(err),
		)
		return
	}

	var (
		price      float64
		discovered string
	)
	if t.auto {
		discovered, price, err = extract.AutoExtract(content)
	} else {
		price, err = extract.Extract(content, t.selector)
	}
	if err != nil {
		e.log.Warn("poll_extract_error",
			zap.String("url", t.url),
			zap.String("name", t.name),
			zap.String("selector", t.selector),
			zap.Error(err),
		)
		return
	}

	e.applyUpdate(ctx, t.url, price, discovered)
}

// applyUpdate is the only mutation path during a cycle: the history
// append and the lastPrice move happen under the lock and go to the
// store as one save point.
func (e *Engine) applyUpdate(ctx context.Context, url string, price float64, discovered string) {
	e.mu.Lock()
	it, ok := e.items[url]
	if !ok {
		// removed mid-cycle
		e.mu.Unlock()
		return
	}
	previous := it.RecordPrice(price)
	if discovered != "" && it.Selector == "" && it.Shop == "" {
		it.Selector = discovered
	}
	cp := it.Clone()
	saveErr := e.store.SaveItem(ctx, cp)
	e.mu.Unlock()

	if saveErr != nil {
		e.log.Warn("poll_save_error", zap.String("url", url), zap.Error(saveErr))
	}
	e.log.Debug("poll_updated",
		zap.String("url", url),
		zap.Float64("previous", previous),
		zap.Float64("price", price),
	)
	e.maybeNotify(ctx, cp, previous, price)
}

// maybeNotify fires iff the price dropped from a known previous value.
// A first observation never notifies. Delivery is best-effort.
func (e *Engine) maybeNotify(ctx context.Context, it *domain.TrackedItem, previous, price float64) {
	if e.notifier == nil || previous <= 0 || price >= previous {
		return
	}
	subject := fmt.Sprintf("Price drop for %s: %.2f -> %.2f", it.Name, previous, price)
	body := fmt.Sprintf("Price drop for %s: %.2f -> %.2f\n%s", it.Name, previous, price, it.URL)
	if err := e.notifier.Send(ctx, subject, body); err != nil {
		e.log.Warn("notify_error",
			zap.String("url", it.URL),
			zap.String("name", it.Name),
			zap.Error(err),
		)
	}
}
