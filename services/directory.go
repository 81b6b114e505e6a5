package services

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/NeutronStarPRO/Proton/feed"
)

// DirectoryConfig configures the root directory service.
type DirectoryConfig struct {
	// AdminToken gates shard registration and removal.
	AdminToken string
	Store      DirectoryStore
	Log        *slog.Logger
}

// Directory is the root directory: the registry of storage shards that
// feed actors consult when resolving where new content goes. Registration
// is admin-gated; lookups are public.
type Directory struct {
	config *DirectoryConfig
	log    *slog.Logger

	mu     sync.RWMutex
	shards map[string]*ShardInfo
	// order holds shard ids sorted ascending; nextIdx walks it round
	// robin for /shards/available.
	order   []string
	nextIdx int
}

// NewDirectory creates a directory, loading persisted registrations from
// the store.
func NewDirectory(config *DirectoryConfig) (*Directory, error) {
	if config == nil || config.Store == nil {
		return nil, errors.New("store is required")
	}
	if config.AdminToken == "" {
		return nil, errors.New("admin token is required")
	}
	log := config.Log
	if log == nil {
		log = slog.Default()
	}

	d := &Directory{
		config: config,
		log:    log,
		shards: make(map[string]*ShardInfo),
	}

	persisted, err := config.Store.LoadAllShards()
	if err != nil {
		return nil, fmt.Errorf("loading persisted shards: %w", err)
	}
	for _, info := range persisted {
		d.shards[info.ID] = info
		d.order = append(d.order, info.ID)
	}
	log.Info("directory loaded", "shards", len(d.order))

	return d, nil
}

// RegisterRoutes registers the directory's HTTP routes.
func (d *Directory) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet},
		}))
		r.Get("/shards", d.handleListShards)
		r.Get("/shards/available", d.handleAvailableShard)
		r.Get("/shards/{id}", d.handleGetShard)
	})

	r.Group(func(r chi.Router) {
		r.Use(d.requireAdmin)
		r.Post("/shards", d.handleRegisterShard)
		r.Delete("/shards/{id}", d.handleUnregisterShard)
	})
}

func (d *Directory) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(d.config.AdminToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (d *Directory) handleRegisterShard(w http.ResponseWriter, r *http.Request) {
	var req RegisterShardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := feed.ParseIdentity(req.ID); err != nil {
		http.Error(w, fmt.Sprintf("shard id: %v", err), http.StatusBadRequest)
		return
	}
	if req.Endpoint == "" {
		http.Error(w, "endpoint is required", http.StatusBadRequest)
		return
	}

	info := &ShardInfo{ID: req.ID, Endpoint: req.Endpoint}
	if err := d.config.Store.SaveShard(info); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	d.mu.Lock()
	if _, known := d.shards[info.ID]; !known {
		d.order = insertSorted(d.order, info.ID)
	}
	d.shards[info.ID] = info
	d.mu.Unlock()

	d.log.Info("shard registered", "id", info.ID, "endpoint", info.Endpoint)
	writeJSON(w, http.StatusOK, &RegisterShardResponse{Success: true, ID: info.ID})
}

func (d *Directory) handleUnregisterShard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := d.config.Store.DeleteShard(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	d.mu.Lock()
	if _, known := d.shards[id]; known {
		delete(d.shards, id)
		for i, existing := range d.order {
			if existing == id {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
	d.mu.Unlock()

	d.log.Info("shard unregistered", "id", id)
	w.WriteHeader(http.StatusOK)
}

func (d *Directory) handleListShards(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	shards := make([]*ShardInfo, 0, len(d.order))
	for _, id := range d.order {
		shards = append(shards, d.shards[id])
	}
	d.mu.RUnlock()

	writeJSON(w, http.StatusOK, &ShardListResponse{Shards: shards})
}

// handleAvailableShard hands out registered shards round robin. With no
// capacity signal from shards yet this spreads new content evenly.
func (d *Directory) handleAvailableShard(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	if len(d.order) == 0 {
		d.mu.Unlock()
		http.Error(w, "no shard available", http.StatusNotFound)
		return
	}
	info := d.shards[d.order[d.nextIdx%len(d.order)]]
	d.nextIdx = (d.nextIdx + 1) % len(d.order)
	d.mu.Unlock()

	writeJSON(w, http.StatusOK, info)
}

func (d *Directory) handleGetShard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d.mu.RLock()
	info, ok := d.shards[id]
	d.mu.RUnlock()

	if !ok {
		http.Error(w, "shard not registered", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func insertSorted(ids []string, id string) []string {
	for i, existing := range ids {
		if id < existing {
			ids = append(ids[:i], append([]string{id}, ids[i:]...)...)
			return ids
		}
	}
	return append(ids, id)
}
