// Package http exposes a read-only admin API over a coherence engine.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/coherence"
	"github.com/aretw0/coherence/internal/logging"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of a node the admin API inspects.
type Engine interface {
	Pages() []domain.PageInfo
	Page(addr uint64) (domain.PageInfo, error)
	PageSize() int
	Initialized() bool
}

// Server serves the admin endpoints.
type Server struct {
	Engine   Engine
	NodeID   string
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithNodeID sets the node id reported by /info.
func WithNodeID(id string) Option {
	return func(s *Server) {
		s.NodeID = id
	}
}

// WithGatherer serves g on /metrics. Without it /metrics is not mounted.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// NewHandler creates the admin HTTP handler for engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine: engine,
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/pages", s.ListPages)
	r.Get("/pages/{addr}", s.GetPage)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// GetHealth handles GET /health. It reports 503 until a region is registered.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if !s.Engine.Initialized() {
		status, code = "uninitialized", http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]string{"status": status})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":       "coherence",
		"version":   strings.TrimSpace(coherence.Version),
		"node_id":   s.NodeID,
		"page_size": s.Engine.PageSize(),
		"pages":     len(s.Engine.Pages()),
	})
}

// ListPages handles GET /pages. The optional tag query parameter filters by tag.
func (s *Server) ListPages(w http.ResponseWriter, r *http.Request) {
	pages := s.Engine.Pages()

	if q := r.URL.Query().Get("tag"); q != "" {
		tag, err := domain.ParseTag(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filtered := pages[:0]
		for _, p := range pages {
			if p.Tag == tag {
				filtered = append(filtered, p)
			}
		}
		pages = filtered
	}

	s.writeJSON(w, http.StatusOK, pages)
}

// GetPage handles GET /pages/{addr}. addr may be decimal or 0x-prefixed hex and may
// point anywhere inside the page.
func (s *Server) GetPage(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "addr")
	addr, err := strconv.ParseUint(raw, 0, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid address %q", raw), http.StatusBadRequest)
		return
	}

	info, err := s.Engine.Page(addr)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		s.Logger.Error("Page lookup failed", logging.Addr(addr), "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "err", err)
	}
}
