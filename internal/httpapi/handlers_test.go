package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"pricetracker/internal/domain"
	apimw "pricetracker/internal/httpapi/middleware"
	"pricetracker/internal/repo/memory"
	"pricetracker/internal/tracker"
)

type stubFetcher struct {
	pages map[string]string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	page, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return page, nil
}

type stubNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *stubNotifier) Send(_ context.Context, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	return nil
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subjects)
}

const adminKey = "admin-secret"
const publicKey = "public-key"

func newTestServer(t *testing.T) (*httptest.Server, *tracker.Engine, *stubFetcher, *stubNotifier) {
	t.Helper()
	fetcher := &stubFetcher{pages: map[string]string{}}
	notifier := &stubNotifier{}
	engine := tracker.NewEngine(zap.NewNop(), memory.New(), fetcher, notifier, time.Second, 2)
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv := NewServer(zap.NewNop(), engine)
	keys := apimw.Keys{Public: []string{publicKey}, Admin: []string{adminKey}}
	ts := httptest.NewServer(srv.Router(keys, 0, 0))
	t.Cleanup(ts.Close)
	return ts, engine, fetcher, notifier
}

func doReq(t *testing.T, method, url, key string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	resp := doReq(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAddAndListItems(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, ts.URL+"/api/items", adminKey, addItemPayload{
		Name: "Widget", URL: "https://Shop.Example.com/w/", Shop: "demo", InitialPrice: 49.99,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add status = %d, want 200", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, ts.URL+"/api/items", publicKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	var items []*domain.TrackedItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].URL != "https://shop.example.com/w/" {
		t.Errorf("url not normalized: %q", items[0].URL)
	}
	if items[0].LastPrice != 49.99 {
		t.Errorf("last price = %v, want 49.99", items[0].LastPrice)
	}
}

func TestAddItemValidation(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, ts.URL+"/api/items", adminKey, addItemPayload{Name: "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing url status = %d, want 400", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, ts.URL+"/api/items", adminKey, addItemPayload{
		Name: "x", URL: "ftp://example.com/x",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad scheme status = %d, want 400", resp.StatusCode)
	}
}

func TestAddItemDuplicateConflict(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	payload := addItemPayload{Name: "Widget", URL: "https://example.com/w"}
	if resp := doReq(t, http.MethodPost, ts.URL+"/api/items", adminKey, payload); resp.StatusCode != http.StatusOK {
		t.Fatalf("first add status = %d", resp.StatusCode)
	}
	resp := doReq(t, http.MethodPost, ts.URL+"/api/items", adminKey, payload)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", resp.StatusCode)
	}
}

func TestRemoveItem(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	doReq(t, http.MethodPost, ts.URL+"/api/items", adminKey, addItemPayload{
		Name: "Widget", URL: "https://example.com/w",
	})
	resp := doReq(t, http.MethodDelete, ts.URL+"/api/items?url=https://example.com/w", adminKey, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("remove status = %d, want 204", resp.StatusCode)
	}
	resp = doReq(t, http.MethodDelete, ts.URL+"/api/items?url=https://example.com/w", adminKey, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second remove status = %d, want 404", resp.StatusCode)
	}
}

func TestSetPriceNotifiesOnDrop(t *testing.T) {
	ts, _, _, notifier := newTestServer(t)

	doReq(t, http.MethodPost, ts.URL+"/api/items", adminKey, addItemPayload{
		Name: "Widget", URL: "https://example.com/w", InitialPrice: 100,
	})
	resp := doReq(t, http.MethodPost, ts.URL+"/api/items/price", adminKey, setPricePayload{
		URL: "https://example.com/w", Price: 80,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("set price status = %d, want 204", resp.StatusCode)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}
}

func TestSetPriceValidation(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, ts.URL+"/api/items/price", adminKey, setPricePayload{
		URL: "https://example.com/w", Price: -5,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative price status = %d, want 400", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPost, ts.URL+"/api/items/price", adminKey, setPricePayload{
		URL: "https://example.com/missing", Price: 5,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown item status = %d, want 404", resp.StatusCode)
	}
}

func TestShopLifecycle(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, ts.URL+"/api/shops", adminKey, shopPayload{
		Name: "demo", Selector: "span.price",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add shop status = %d, want 201", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPost, ts.URL+"/api/shops", adminKey, shopPayload{Name: "demo"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate shop status = %d, want 409", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPut, ts.URL+"/api/shops/demo", adminKey, shopPayload{Selector: "div.cost"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("update status = %d, want 204", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, ts.URL+"/api/shops/demo/rename", adminKey, shopPayload{Name: "demo2"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("rename status = %d, want 204", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, ts.URL+"/api/shops", publicKey, nil)
	var shops []*domain.ShopDef
	if err := json.NewDecoder(resp.Body).Decode(&shops); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(shops) != 1 || shops[0].Name != "demo2" {
		t.Fatalf("shops after rename = %+v", shops)
	}

	resp = doReq(t, http.MethodDelete, ts.URL+"/api/shops/demo2", adminKey, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
	resp = doReq(t, http.MethodDelete, ts.URL+"/api/shops/demo2", adminKey, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestPauseResumeStatus(t *testing.T) {
	ts, engine, _, _ := newTestServer(t)

	if resp := doReq(t, http.MethodPost, ts.URL+"/api/pause", adminKey, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("pause status = %d", resp.StatusCode)
	}
	if !engine.Paused() {
		t.Fatal("engine should be paused")
	}

	resp := doReq(t, http.MethodGet, ts.URL+"/api/status", publicKey, nil)
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["paused"] != true {
		t.Errorf("status paused = %v, want true", status["paused"])
	}

	if resp := doReq(t, http.MethodPost, ts.URL+"/api/resume", adminKey, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("resume status = %d", resp.StatusCode)
	}
	if engine.Paused() {
		t.Fatal("engine should be resumed")
	}
}

func TestPollNowAccepted(t *testing.T) {
	ts, engine, fetcher, notifier := newTestServer(t)

	url := "https://example.com/w"
	fetcher.pages[url] = `<html><body><span class="price">90,00 zł</span></body></html>`
	doReq(t, http.MethodPost, ts.URL+"/api/items", adminKey, addItemPayload{
		Name: "Widget", URL: url, Selector: "span.price", InitialPrice: 100,
	})

	resp := doReq(t, http.MethodPost, ts.URL+"/api/poll", adminKey, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("poll status = %d, want 202", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		items := engine.Items()
		if len(items) == 1 && items[0].LastPrice == 90 {
			if notifier.count() != 1 {
				t.Fatalf("notifications = %d, want 1", notifier.count())
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("poll did not update item in time")
}

func TestAuthBoundaries(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	if resp := doReq(t, http.MethodGet, ts.URL+"/api/items", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no key read status = %d, want 401", resp.StatusCode)
	}
	if resp := doReq(t, http.MethodPost, ts.URL+"/api/items", publicKey, addItemPayload{
		Name: "x", URL: "https://example.com/x",
	}); resp.StatusCode != http.StatusForbidden {
		t.Errorf("public key write status = %d, want 403", resp.StatusCode)
	}
}
