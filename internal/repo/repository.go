package repo

import (
	"context"

	"pricetracker/internal/domain"
)

// Ports (interfaces) — swap in any persistence adapter. Every save is
// a complete small transaction: a call either fully reflects the new
// state or leaves the prior state untouched.

type ItemStore interface {
	LoadItems(ctx context.Context) ([]*domain.TrackedItem, error)
	SaveItem(ctx context.Context, it *domain.TrackedItem) error
	// DeleteItem returns domain.ErrNotFound when no item has that URL.
	DeleteItem(ctx context.Context, url string) error
}

type ShopStore interface {
	LoadShops(ctx context.Context) ([]*domain.ShopDef, error)
	SaveShop(ctx context.Context, s *domain.ShopDef) error
	// DeleteShop returns domain.ErrNotFound when the name is unknown.
	DeleteShop(ctx context.Context, name string) error
	// RenameShop writes the renamed definition plus every retargeted
	// item in one atomic operation, so no reader ever observes an item
	// pointing at a deleted name.
	RenameShop(ctx context.Context, oldName string, s *domain.ShopDef, items []*domain.TrackedItem) error
}

type Store interface {
	ItemStore
	ShopStore
}
