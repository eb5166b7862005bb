package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/infinitybuddha29/caller/internal/metrics"
	"github.com/infinitybuddha29/caller/internal/signaling"
)

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /ws", s.ServeWs)

	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("caller signaling server is up\n"))
	})

	s.mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ready": true})
	})

	s.mux.Handle("GET /metrics", metrics.PrometheusHandler(s.metrics,
		metrics.Gauge{
			Name:  "caller_rooms",
			Help:  "Rooms currently held by the registry, including rooms awaiting deletion.",
			Value: func() float64 { return float64(s.coord.Registry().Len()) },
		},
		metrics.Gauge{
			Name:  "caller_connections",
			Help:  "Open websocket connections.",
			Value: func() float64 { return float64(s.Connections()) },
		},
	))

	if s.opts.DebugEndpoints {
		s.mux.HandleFunc("GET /debug/rooms", func(w http.ResponseWriter, r *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]any{"rooms": s.coord.Registry().Rooms()})
		})
	}
}

func (s *Server) newUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  64 * 1024, // 64 KB
		WriteBufferSize: 64 * 1024, // 64 KB
		Subprotocols:    signaling.Subprotocols,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin accepts every origin when no allow-list is configured.
// Non-browser clients send no Origin header and are always accepted.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	got := normalizeOrigin(origin)
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || normalizeOrigin(allowed) == got {
			return true
		}
	}
	s.log.Warn("websocket origin rejected", "origin", origin)
	return false
}

func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// ServeWs upgrades the request to a websocket and starts the participant's
// read and write pumps.
func (s *Server) ServeWs(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	// Upgrade the HTTP connection to a WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "remote_addr", r.RemoteAddr, "err", err)
		return
	}

	client := newClient(uuid.NewString(), conn, s.coord, s.opts.Client, s.log, s.metrics)
	client.onClose = s.untrack
	if !s.track(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	s.metrics.Inc(metrics.EventConnectionOpened)
	s.log.Debug("client connected", "participant", client.ID(), "remote_addr", r.RemoteAddr, "codec", client.codec.Name())

	// These methods handle the client's lifecycle.
	go client.WritePump()
	go client.ReadPump()
}
