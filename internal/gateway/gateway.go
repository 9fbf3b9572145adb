// Package gateway bridges WebSocket peers onto the TCP relay. Every
// WebSocket session owns one relay connection: text frames from the peer
// become chat lines, and each envelope from the relay becomes one frame.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gobwas/ws"
	log "github.com/sirupsen/logrus"
)

// Format selects how envelopes are framed towards the WebSocket peer.
type Format int

const (
	// FormatText sends the envelope bytes unchanged in a text frame.
	FormatText Format = iota
	// FormatProto sends a protobuf-encoded protocol.Message in a binary frame.
	FormatProto
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatProto:
		return "proto"
	default:
		return "unknown"
	}
}

// ParseFormat maps a query value to a Format. Empty selects FormatText.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text":
		return FormatText, nil
	case "proto":
		return FormatProto, nil
	default:
		return FormatText, fmt.Errorf("unknown format %q", s)
	}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway's logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithDialTimeout bounds each relay dial.
func WithDialTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.dialTimeout = d
	}
}

// Gateway serves WebSocket sessions backed by relay connections.
type Gateway struct {
	relayAddr   string
	dialTimeout time.Duration
	logger      log.FieldLogger

	listener net.Listener
	server   *http.Server

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// New creates a Gateway that dials relayAddr for every session.
func New(relayAddr string, opts ...Option) *Gateway {
	g := &Gateway{
		relayAddr:   relayAddr,
		dialTimeout: 5 * time.Second,
		logger:      log.StandardLogger(),
		sessions:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handler returns the gateway's routes: /ws upgrades, /healthz reports.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", g.handleWebSocket)
	r.Get("/healthz", g.handleHealth)
	return r
}

// Start listens on address and serves until Stop.
func (g *Gateway) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	srv := &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.mu.Lock()
	g.listener = listener
	g.server = srv
	g.mu.Unlock()

	g.logger.Infof("WebSocket gateway on %s relaying to %s", listener.Addr(), g.relayAddr)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops accepting sessions, closes the open ones and waits for them
// to end.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	srv := g.server
	g.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	g.mu.Lock()
	for _, s := range g.sessions {
		s.closeWith(ws.StatusGoingAway, "gateway shutting down")
	}
	g.mu.Unlock()

	g.wg.Wait()
	return err
}

// Addr returns the listening address.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener != nil {
		return g.listener.Addr().String()
	}
	return ""
}

// Sessions returns the number of open WebSocket sessions.
func (g *Gateway) Sessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		g.logger.Warnf("Failed to upgrade WebSocket connection: %v", err)
		return
	}

	s := newSession(conn, format, g.logger.WithField("remote", r.RemoteAddr))
	if err := s.dial(g.relayAddr, g.dialTimeout); err != nil {
		s.logger.Errorf("Failed to reach relay: %v", err)
		s.closeWith(ws.StatusInternalServerError, "relay unavailable")
		return
	}

	g.mu.Lock()
	g.sessions[s.id] = s
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		s.run()
		g.mu.Lock()
		delete(g.sessions, s.id)
		g.mu.Unlock()
	}()
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Relay    string `json:"relay"`
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:   "ok",
		Sessions: g.Sessions(),
		Relay:    g.relayAddr,
	})
}
