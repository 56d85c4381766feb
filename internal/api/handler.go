package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/cardclusters/internal/card"
	"github.com/nidhogg/cardclusters/internal/kv"
	"github.com/nidhogg/cardclusters/internal/rank"
	"github.com/nidhogg/cardclusters/internal/store"
	"go.uber.org/zap"
)

const defaultSearchLimit = 20

// Reader is the neighbour store the API serves from. *kv.Store satisfies it.
type Reader interface {
	Card(ctx context.Context, id int) (*card.Card, error)
	Similar(ctx context.Context, id, limit int) (rank.List, error)
	SearchNames(ctx context.Context, query string, limit int) ([]kv.NameMatch, error)
	Ping(ctx context.Context) error
}

// Archive exposes archived runs. *store.Store satisfies it.
type Archive interface {
	LatestRun(ctx context.Context, selection string) (*store.Run, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	reader  Reader
	archive Archive
	logger  *zap.Logger
}

// NewHandler creates a new API handler. archive may be nil.
func NewHandler(reader Reader, archive Archive, logger *zap.Logger) *Handler {
	return &Handler{reader: reader, archive: archive, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/cards", h.searchCards)
		r.Get("/cards/{id}", h.getCard)
		r.Get("/cards/{id}/similar", h.similarCards)
		r.Get("/runs/{selection}/latest", h.latestRun)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.reader.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getCard(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	c, err := h.reader.Card(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type similarResponse struct {
	MultiverseID int       `json:"multiverse_id"`
	Neighbors    rank.List `json:"neighbors"`
}

func (h *Handler) similarCards(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r, rank.DefaultK)
	if !ok {
		return
	}
	list, err := h.reader.Similar(r.Context(), id, limit)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, similarResponse{MultiverseID: id, Neighbors: list})
}

func (h *Handler) searchCards(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	limit, ok := queryLimit(w, r, defaultSearchLimit)
	if !ok {
		return
	}
	matches, err := h.reader.SearchNames(r.Context(), name, limit)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if matches == nil {
		matches = []kv.NameMatch{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *Handler) latestRun(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "run archive not configured"})
		return
	}
	run, err := h.archive.LatestRun(r.Context(), strings.ToLower(chi.URLParam(r, "selection")))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run for selection"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, kv.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "card not found"})
		return
	}
	h.logger.Error("store read failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func cardID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multiverse id"})
		return 0, false
	}
	return id, true
}

func queryLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
