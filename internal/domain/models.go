package domain

import "time"

type ItemID string

// TrackedItem is one product under observation. The URL is the natural
// key: exactly one item per URL. PriceHistory is append-only, oldest
// first, and LastPrice always equals the final history element whenever
// the history is non-empty.
type TrackedItem struct {
	ID           ItemID    `json:"id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Shop         string    `json:"shop,omitempty"`
	Selector     string    `json:"selector,omitempty"`
	PriceHistory []float64 `json:"price_history"`
	LastPrice    float64   `json:"last_price"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordPrice appends a price and moves LastPrice, returning the value
// that was current before the append. This is the only way price fields
// change.
func (t *TrackedItem) RecordPrice(price float64) (previous float64) {
	previous = t.LastPrice
	t.PriceHistory = append(t.PriceHistory, price)
	t.LastPrice = price
	return previous
}

// Clone returns a deep copy safe to hand outside the engine's lock.
func (t *TrackedItem) Clone() *TrackedItem {
	cp := *t
	cp.PriceHistory = append([]float64(nil), t.PriceHistory...)
	return &cp
}

// ShopDef is a named extraction profile: a selector under a unique name
// that items can reference instead of carrying their own.
type ShopDef struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
}

// SMTPConfig carries mail transport parameters. The engine never looks
// inside it; it is handed to the SMTP notifier as-is.
type SMTPConfig struct {
	Server   string `json:"server"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}
