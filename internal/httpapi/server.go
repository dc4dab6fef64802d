package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"pricetracker/internal/domain"
	apimw "pricetracker/internal/httpapi/middleware"
	"pricetracker/internal/tracker"
)

// Server is the administrative surface over the tracking engine.
// Extraction failures never show up here as fatal errors: an item that
// fails a poll is still tracked, just unchanged.
type Server struct {
	Logger *zap.Logger
	Engine *tracker.Engine
}

func NewServer(l *zap.Logger, e *tracker.Engine) *Server {
	return &Server{Logger: l, Engine: e}
}

func (s *Server) Router(keys apimw.Keys, rpm, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(apimw.RateLimit(rpm, burst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// read routes
	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAny(keys))
		r.Get("/api/items", s.handleListItems)
		r.Get("/api/shops", s.handleListShops)
		r.Get("/api/status", s.handleStatus)
	})

	// mutating routes
	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAdmin(keys))
		r.Post("/api/items", s.handleAddItem)
		r.Delete("/api/items", s.handleRemoveItem)
		r.Post("/api/items/price", s.handleSetPrice)
		r.Post("/api/shops", s.handleAddShop)
		r.Put("/api/shops/{name}", s.handleUpdateShop)
		r.Delete("/api/shops/{name}", s.handleRemoveShop)
		r.Post("/api/shops/{name}/rename", s.handleRenameShop)
		r.Post("/api/poll", s.handlePollNow)
		r.Post("/api/pause", s.handlePause)
		r.Post("/api/resume", s.handleResume)
	})

	return r
}

// ---- items ----

type addItemPayload struct {
	Name         string  `json:"name"`
	URL          string  `json:"url"`
	Shop         string  `json:"shop"`
	Selector     string  `json:"selector"`
	InitialPrice float64 `json:"initial_price"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var p addItemPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Name == "" || p.URL == "" {
		http.Error(w, "name and url are required", http.StatusBadRequest)
		return
	}
	if !isValidHTTPURL(p.URL) {
		http.Error(w, "url must be http(s)", http.StatusBadRequest)
		return
	}
	p.URL = normalizeHTTPURL(p.URL)

	it, err := s.Engine.AddItem(r.Context(), p.Name, p.URL, p.Shop, p.Selector, p.InitialPrice)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("item_added",
		zap.String("url", it.URL),
		zap.String("name", it.Name),
		zap.String("shop", it.Shop),
	)
	writeJSON(w, map[string]any{"item": it})
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("url")
	if u == "" {
		http.Error(w, "url query parameter required", http.StatusBadRequest)
		return
	}
	if err := s.Engine.RemoveItem(r.Context(), normalizeHTTPURL(u)); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("item_removed", zap.String("url", u))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Engine.Items())
}

type setPricePayload struct {
	URL   string  `json:"url"`
	Price float64 `json:"price"`
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	var p setPricePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.URL == "" || p.Price <= 0 {
		http.Error(w, "url and positive price required", http.StatusBadRequest)
		return
	}
	if err := s.Engine.SetPrice(r.Context(), normalizeHTTPURL(p.URL), p.Price); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("price_set_manually",
		zap.String("url", p.URL),
		zap.Float64("price", p.Price),
	)
	w.WriteHeader(http.StatusNoContent)
}

// ---- shops ----

type shopPayload struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
}

func (s *Server) handleListShops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Engine.Shops())
}

func (s *Server) handleAddShop(w http.ResponseWriter, r *http.Request) {
	var p shopPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	if err := s.Engine.AddShop(r.Context(), p.Name, p.Selector); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUpdateShop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var p shopPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if err := s.Engine.UpdateShop(r.Context(), name, p.Selector); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveShop(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.RemoveShop(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenameShop(w http.ResponseWriter, r *http.Request) {
	oldName := chi.URLParam(r, "name")
	var p shopPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Name == "" {
		http.Error(w, "new name required", http.StatusBadRequest)
		return
	}
	if err := s.Engine.RenameShop(r.Context(), oldName, p.Name, p.Selector); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("shop_renamed",
		zap.String("old", oldName),
		zap.String("new", p.Name),
	)
	w.WriteHeader(http.StatusNoContent)
}

// ---- engine control ----

func (s *Server) handlePollNow(w http.ResponseWriter, r *http.Request) {
	// detached from the request context so the sweep survives the response
	go s.Engine.PollOnce(context.Background())
	s.Logger.Info("manual_poll_triggered")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.Engine.Pause()
	s.Logger.Info("engine_paused")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.Engine.Resume()
	s.Logger.Info("engine_resumed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"paused": s.Engine.Paused(),
		"items":  len(s.Engine.Items()),
		"shops":  len(s.Engine.Shops()),
	})
}

// ---- helpers ----

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrDuplicateURL), errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.Logger.Error("api_error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}

// normalizeHTTPURL lowercases the host, drops default ports, and trims
// a bare trailing slash so the same page always maps to the same key.
func normalizeHTTPURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Hostname()
	}
	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	}
	return u.String()
}
