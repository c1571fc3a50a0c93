package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/critterlife/internal/world"
)

const (
	maxStreamConns  = 8
	defaultStreamHz = 2
	writeWait       = 5 * time.Second
	pongWait        = 60 * time.Second
)

// streamCounter tracks open websocket streams.
type streamCounter struct {
	n atomic.Int32
}

func (c *streamCounter) acquire() bool {
	if c.n.Add(1) > maxStreamConns {
		c.n.Add(-1)
		return false
	}
	return true
}

func (c *streamCounter) release() { c.n.Add(-1) }

// StreamFrame is one message on /api/v1/stream.
type StreamFrame struct {
	Type     string           `json:"type"` // "snapshot"
	Snapshot world.Snapshot   `json:"snapshot"`
	NewLog   []world.LogEntry `json:"newLog,omitempty"`
}

// handleStream pushes snapshots to a websocket client at StreamHz. Each
// frame also carries the log entries added since the previous one.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.streams.acquire() {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streams.release()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	slog.Info("stream client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Client messages are ignored; reading surfaces close frames and pongs.
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	hz := s.StreamHz
	if hz <= 0 {
		hz = defaultStreamHz
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / hz))
	defer ticker.Stop()
	ping := time.NewTicker(pongWait / 2)
	defer ping.Stop()

	var lastSeq int64
	send := func() error {
		var frame StreamFrame
		s.Store.View(func(wd *world.World) {
			frame = StreamFrame{Type: "snapshot", Snapshot: world.TakeSnapshot(wd), NewLog: wd.LogSince(lastSeq)}
		})
		if n := len(frame.NewLog); n > 0 {
			lastSeq = frame.NewLog[n-1].Seq
		}
		data, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			slog.Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			if err := send(); err != nil {
				slog.Debug("stream write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
