package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/talgya/critterlife/internal/environment"
	"github.com/talgya/critterlife/internal/spatial"
	"github.com/talgya/critterlife/internal/world"
)

// maxBody bounds admin request bodies.
const maxBody = 16 << 10

// defaultSender names messages posted without a sender.
const defaultSender = "visitor"

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeEntityError maps store errors onto status codes.
func writeEntityError(w http.ResponseWriter, err error) {
	if errors.Is(err, world.ErrUnknownEntity) {
		http.Error(w, "entity not found or dead", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func accepted(w http.ResponseWriter, msg string) {
	writeJSONStatus(w, http.StatusAccepted, map[string]any{"message": msg})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var pos spatial.Vec3
	if !decode(w, r, &pos) {
		return
	}
	id := r.PathValue("id")
	if err := s.Store.MoveEntity(id, pos); err != nil {
		writeEntityError(w, err)
		return
	}
	slog.Info("admin moved entity", "id", id, "x", pos.X, "z", pos.Z)
	accepted(w, "position queued")
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Weather string `json:"weather"`
	}
	if !decode(w, r, &req) {
		return
	}
	target, err := environment.ParseWeather(req.Weather)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Store.RequestWeather(target)
	slog.Info("admin weather request", "target", target)
	accepted(w, "weather target queued")
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Text == "" || req.To == "" {
		http.Error(w, "to and text are required", http.StatusBadRequest)
		return
	}
	if req.From == "" {
		req.From = defaultSender
	}
	if err := s.Store.SendMessage(req.From, req.To, req.Text); err != nil {
		writeEntityError(w, err)
		return
	}
	accepted(w, "message delivered")
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.Store.FocusCamera(req.ID); err != nil {
		writeEntityError(w, err)
		return
	}
	accepted(w, "camera target queued")
}

func (s *Server) handleBuilding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind     environment.BuildingKind `json:"kind"`
		Position spatial.Vec3             `json:"position"`
	}
	if !decode(w, r, &req) {
		return
	}
	b, err := environment.NewBuilding(req.Kind, req.Position)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Store.PlaceBuilding(b)
	slog.Info("admin placed building", "kind", b.Kind, "id", b.ID)
	writeJSONStatus(w, http.StatusAccepted, b)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if s.Engine == nil {
		http.Error(w, "no engine attached", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Paused bool `json:"paused"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.Engine.SetPaused(req.Paused)
	slog.Info("admin pause", "paused", req.Paused)
	writeJSON(w, map[string]any{"paused": s.Engine.Paused()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	stats, err := s.DB.SaveWorld(s.Store, s.Slot)
	if err != nil {
		slog.Error("manual save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"slot":    s.Slot,
		"bytes":   stats.CompressedBytes,
		"events":  stats.Events,
		"clock":   stats.Clock,
		"message": "world saved",
	})
}
