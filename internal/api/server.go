// Package api serves the world to observers over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/critterlife/internal/engine"
	"github.com/talgya/critterlife/internal/llm"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/persistence"
	"github.com/talgya/critterlife/internal/world"
)

// Server serves the world state over HTTP.
type Server struct {
	Store    *world.Store
	Engine   *engine.Engine  // optional; enables pause control
	DB       *persistence.DB // optional; enables history and save
	Slot     string          // save slot used with DB
	Port     int
	AdminKey string      // Bearer token for POST endpoints. Empty = POST disabled.
	StreamHz float64     // snapshot rate on /api/v1/stream
	LLM      *llm.Client // optional; enables stories and a written chronicle

	upgrader websocket.Upgrader
	streams  streamCounter
	stories  storyCache
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	messageLimiter := NewRateLimiter(30, time.Minute)
	storyLimiter := NewRateLimiter(10, time.Hour)
	chronicleLimiter := NewRateLimiter(30, time.Hour)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/v1/entities", s.handleEntities)
	mux.HandleFunc("GET /api/v1/entity/{id}", s.handleEntity)
	mux.HandleFunc("GET /api/v1/environment", s.handleEnvironment)
	mux.HandleFunc("GET /api/v1/log", s.handleLog)
	mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/entity/{id}/story", RateLimitMiddleware(storyLimiter, s.handleStory))
	mux.HandleFunc("GET /api/v1/chronicle", RateLimitMiddleware(chronicleLimiter, s.handleChronicle))
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/entity/{id}/position", s.adminOnly(s.handlePosition))
	mux.HandleFunc("POST /api/v1/weather", s.adminOnly(s.handleWeather))
	mux.HandleFunc("POST /api/v1/message", s.adminOnly(RateLimitMiddleware(messageLimiter, s.handleMessage)))
	mux.HandleFunc("POST /api/v1/camera", s.adminOnly(s.handleCamera))
	mux.HandleFunc("POST /api/v1/building", s.adminOnly(s.handleBuilding))
	mux.HandleFunc("POST /api/v1/pause", s.adminOnly(s.handlePause))
	mux.HandleFunc("POST /api/v1/save", s.adminOnly(s.handleSave))

	return corsMiddleware(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires the bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no CRITTERLIFE_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{}
	s.Store.View(func(wd *world.World) {
		env := wd.Environment
		status = map[string]any{
			"clock":       wd.Clock(),
			"day":         env.Day,
			"time":        env.Time,
			"season":      env.Season,
			"weather":     env.Weather,
			"temperature": env.Temperature,
			"critters":    wd.AliveCritters(),
			"animals":     len(wd.LivingOf(world.KindAnimal)),
			"scores":      wd.Scores,
			"pending":     s.Store.Pending(),
		}
	})
	if s.Engine != nil {
		status["frames"] = s.Engine.Frames()
		status["paused"] = s.Engine.Paused()
	}
	writeJSON(w, status)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Store.Snapshot())
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	snap := s.Store.Snapshot()
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		writeJSON(w, snap.Entities)
		return
	}
	out := make([]world.EntityView, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		if e.Record.Kind.String() == kind {
			out = append(out, e)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var (
		view world.EntityView
		mems []memory.Memory
		ok   bool
	)
	s.Store.View(func(wd *world.World) {
		if view, ok = wd.View(id); ok {
			mems = wd.MemoriesOf(id)
		}
	})
	if !ok {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"entity":   view,
		"memories": mems,
	})
}

func (s *Server) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	snap := s.Store.Snapshot()
	writeJSON(w, map[string]any{
		"environment": snap.Environment,
		"buildings":   snap.Buildings,
		"resources":   snap.Resources,
	})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", world.SnapshotLogSize)
	since := int64(queryInt(r, "since", -1))
	var entries []world.LogEntry
	s.Store.View(func(wd *world.World) {
		if since >= 0 {
			entries = wd.LogSince(since)
			if len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			return
		}
		entries = wd.RecentLog(limit)
	})
	if entries == nil {
		entries = []world.LogEntry{}
	}
	writeJSON(w, entries)
}

// handleHistory reads the long-term event history from the database.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	var (
		entries []world.LogEntry
		err     error
	)
	if id := r.URL.Query().Get("entity"); id != "" {
		entries, err = s.DB.EntityEvents(s.Slot, id)
	} else {
		entries, err = s.DB.RecentEvents(s.Slot, queryInt(r, "limit", 100))
	}
	if err != nil {
		slog.Error("history query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []world.LogEntry{}
	}
	writeJSON(w, entries)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
