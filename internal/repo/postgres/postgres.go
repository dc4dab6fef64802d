package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricetracker/internal/domain"
	"pricetracker/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS items (
    url           TEXT PRIMARY KEY,
    id            TEXT NOT NULL,
    name          TEXT NOT NULL,
    shop          TEXT NOT NULL DEFAULT '',
    selector      TEXT NOT NULL DEFAULT '',
    price_history FLOAT8[] NOT NULL DEFAULT '{}',
    last_price    FLOAT8 NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS shops (
    name     TEXT PRIMARY KEY,
    selector TEXT NOT NULL
);`

func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Ping(ctxPing); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := p.Exec(ctx, schema); err != nil {
		p.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// ---- ItemStore ----

func (s *Store) LoadItems(ctx context.Context) ([]*domain.TrackedItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, id, name, shop, selector, price_history, last_price, created_at
		   FROM items
		  ORDER BY created_at, url`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var out []*domain.TrackedItem
	for rows.Next() {
		var it domain.TrackedItem
		var id string
		if err := rows.Scan(&it.URL, &id, &it.Name, &it.Shop, &it.Selector,
			&it.PriceHistory, &it.LastPrice, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.ID = domain.ItemID(id)
		out = append(out, &it)
	}
	return out, rows.Err()
}

// SaveItem upserts the whole record in one statement, so the history
// append and the last-price move are never separately observable.
func (s *Store) SaveItem(ctx context.Context, it *domain.TrackedItem) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO items (url, id, name, shop, selector, price_history, last_price, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (url) DO UPDATE SET
		   name = EXCLUDED.name,
		   shop = EXCLUDED.shop,
		   selector = EXCLUDED.selector,
		   price_history = EXCLUDED.price_history,
		   last_price = EXCLUDED.last_price`,
		it.URL, string(it.ID), it.Name, it.Shop, it.Selector,
		it.PriceHistory, it.LastPrice, it.CreatedAt)
	if err != nil {
		return fmt.Errorf("save item: %w", err)
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, url string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM items WHERE url = $1`, url)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete item %s: %w", url, domain.ErrNotFound)
	}
	return nil
}

// ---- ShopStore ----

func (s *Store) LoadShops(ctx context.Context) ([]*domain.ShopDef, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, selector FROM shops ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load shops: %w", err)
	}
	defer rows.Close()

	var out []*domain.ShopDef
	for rows.Next() {
		var sh domain.ShopDef
		if err := rows.Scan(&sh.Name, &sh.Selector); err != nil {
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		out = append(out, &sh)
	}
	return out, rows.Err()
}

func (s *Store) SaveShop(ctx context.Context, sh *domain.ShopDef) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO shops (name, selector) VALUES ($1,$2)
		 ON CONFLICT (name) DO UPDATE SET selector = EXCLUDED.selector`,
		sh.Name, sh.Selector)
	if err != nil {
		return fmt.Errorf("save shop: %w", err)
	}
	return nil
}

func (s *Store) DeleteShop(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM shops WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete shop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete shop %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

// RenameShop runs the definition swap and the item cascade inside one
// transaction.
func (s *Store) RenameShop(ctx context.Context, oldName string, sh *domain.ShopDef, items []*domain.TrackedItem) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM shops WHERE name = $1`, oldName); err != nil {
			return fmt.Errorf("drop old shop: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO shops (name, selector) VALUES ($1,$2)
			 ON CONFLICT (name) DO UPDATE SET selector = EXCLUDED.selector`,
			sh.Name, sh.Selector); err != nil {
			return fmt.Errorf("insert renamed shop: %w", err)
		}
		for _, it := range items {
			if _, err := tx.Exec(ctx,
				`UPDATE items SET shop = $1 WHERE url = $2`,
				it.Shop, it.URL); err != nil {
				return fmt.Errorf("retarget item %s: %w", it.URL, err)
			}
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
