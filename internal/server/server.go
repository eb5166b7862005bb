// Package server exposes the signaling coordinator over websockets and
// serves the operational HTTP endpoints next to it.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/infinitybuddha29/caller/internal/config"
	"github.com/infinitybuddha29/caller/internal/metrics"
	"github.com/infinitybuddha29/caller/internal/signaling"
)

var ErrServerClosed = http.ErrServerClosed

// Options configures a Server.
type Options struct {
	ListenAddr     string
	AllowedOrigins []string
	DebugEndpoints bool
	Client         ClientOptions

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// OptionsFromConfig maps the loaded configuration onto server options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) Options {
	return Options{
		ListenAddr:     cfg.Server.ListenAddr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DebugEndpoints: cfg.Server.DebugEndpoints,
		Client: ClientOptions{
			WriteWait:       cfg.Signaling.WriteWait,
			PongWait:        cfg.Signaling.PongWait,
			PingPeriod:      cfg.Signaling.PingPeriod(),
			MaxMessageBytes: cfg.Signaling.MaxMessageBytes,
			SendBuffer:      cfg.Signaling.SendBuffer,
		},
		Logger:  logger,
		Metrics: m,
	}
}

type Server struct {
	log     *slog.Logger
	opts    Options
	coord   *signaling.Coordinator
	metrics *metrics.Metrics

	ready atomic.Bool

	mux      *http.ServeMux
	srv      *http.Server
	upgrader *websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

func New(coord *signaling.Coordinator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	opts.Client = opts.Client.withDefaults()

	s := &Server{
		log:     opts.Logger,
		opts:    opts,
		coord:   coord,
		metrics: opts.Metrics,
		mux:     http.NewServeMux(),
		clients: make(map[*Client]struct{}),
	}
	s.upgrader = s.newUpgrader()
	s.registerRoutes()

	handler := chain(s.mux,
		recoverMiddleware(s.log),
		requestLoggerMiddleware(s.log),
	)

	s.srv = &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Ready until Shutdown; Serve is not required when the handler is
	// mounted elsewhere.
	s.ready.Store(true)
	return s
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Serve(l net.Listener) error {
	s.log.Info("signaling server serving", "addr", l.Addr().String())
	return s.srv.Serve(l)
}

// Shutdown stops accepting connections, closes every websocket and waits for
// in-flight HTTP requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)

	// Hijacked websocket connections are invisible to http.Server.Shutdown.
	s.mu.Lock()
	s.closed = true
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}

	err := s.srv.Shutdown(ctx)
	s.coord.Close()
	return err
}

// Connections returns the number of open websocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) track(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.WriteWait <= 0 {
		o.WriteWait = config.DefaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = config.DefaultPongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = config.DefaultMaxMessageBytes
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = config.DefaultSendBuffer
	}
	return o
}

// WriteJSON writes a JSON response body and sets the Content-Type header.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}
