// Package server exposes the clipboard history over a local HTTP and
// websocket API for frontends (tray menus, popup windows, editor plugins)
// that run out of process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"clipvault/internal/service"
	"clipvault/internal/storage"
	"clipvault/pkg/types"
)

const defaultListLimit = 50

type Server struct {
	svc    *service.ClipboardService
	hub    *Hub
	srv    *http.Server
	config Config
}

type Config struct {
	Port int
}

func New(svc *service.ClipboardService, config Config) *Server {
	s := &Server{
		svc:    svc,
		hub:    newHub(),
		config: config,
	}
	// Persisted items fan out to connected websocket clients.
	svc.RegisterHandler(s.hub)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/status", s.handleStatus)
	r.Get("/ws", s.serveWs)
	r.Route("/api", func(r chi.Router) {
		r.Get("/items", s.handleListItems)
		r.Delete("/items", s.handleClearItems)
		r.Get("/items/count", s.handleCount)
		r.Get("/items/{id}", s.handleGetItem)
		r.Delete("/items/{id}", s.handleDeleteItem)
		r.Post("/items/{id}/copy", s.handleCopyItem)
		r.Post("/cleanup", s.handleCleanup)
		r.Put("/settings", s.handleUpdateSettings)
	})
	return r
}

func (s *Server) Start() error {
	go s.hub.run()

	handler := s.routes()

	// Bind loopback only; the API is a local IPC surface, not a network one.
	addresses := []string{
		fmt.Sprintf("localhost:%d", s.config.Port),
		fmt.Sprintf("127.0.0.1:%d", s.config.Port),
	}

	var lastErr error
	for _, addr := range addresses {
		s.srv = &http.Server{
			Addr:    addr,
			Handler: handler,
		}

		serverErr := make(chan error, 1)
		go func() {
			if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
				serverErr <- fmt.Errorf("http server error on %s: %w", addr, err)
			}
		}()

		select {
		case err := <-serverErr:
			lastErr = err
			slog.Warn("failed to bind API server", "addr", addr, "err", err)
			continue
		case <-time.After(100 * time.Millisecond):
			slog.Info("API server listening", "addr", addr)
			return nil
		}
	}

	return fmt.Errorf("failed to start server on any address: %w", lastErr)
}

func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	addr := ""
	if s.srv != nil {
		addr = s.srv.Addr
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"monitoring": s.svc.IsMonitoring(),
		"time":       time.Now().Format(time.RFC3339),
		"addr":       addr,
	})
}

// handleListItems serves GET /api/items?limit=N&q=query.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var (
		items []*types.Item
		err   error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		items, err = s.svc.SearchItems(q, limit)
	} else {
		items, err = s.svc.GetItems(limit)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*types.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.Count()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	item, err := s.svc.GetItem(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "item not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.svc.DeleteItem(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "item not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCopyItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.svc.CopyItem(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "item not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleClearItems(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearAll(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.svc.CleanupOrphans()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// settingsUpdate is the PUT /api/settings body. Absent fields are unchanged.
type settingsUpdate struct {
	MaxItems      *int  `json:"max_items"`
	CaptureText   *bool `json:"capture_text"`
	CaptureImages *bool `json:"capture_images"`
	CaptureLinks  *bool `json:"capture_links"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update settingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid settings body", http.StatusBadRequest)
		return
	}

	if update.MaxItems != nil {
		if err := s.svc.SetMaxItems(*update.MaxItems); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	s.svc.SetCaptureSettings(update.CaptureText, update.CaptureImages, update.CaptureLinks)

	w.WriteHeader(http.StatusOK)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "err", err)
	}
}
