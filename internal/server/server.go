package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/omochice/chat-relay/internal/chat"
	"github.com/omochice/chat-relay/internal/poller"
)

var (
	// ErrServerStopped is returned by Serve after Stop.
	ErrServerStopped = errors.New("server stopped")
	// ErrNotListening is returned by Serve before a successful Listen.
	ErrNotListening = errors.New("server: not listening")
)

// Conn is an accepted transport the reactor can register for readiness.
type Conn interface {
	chat.Conn
	Fd() int
}

// Listener produces accepted connections. Accept returns nil, nil when no
// connection is pending.
type Listener interface {
	Fd() int
	Accept() (Conn, error)
	Addr() net.Addr
	Close() error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithListener replaces the TCP listener Listen would create.
func WithListener(l Listener) Option {
	return func(s *Server) {
		s.listener = l
	}
}

// WithPoller replaces the platform readiness backend.
func WithPoller(p poller.Poller) Option {
	return func(s *Server) {
		s.poller = p
	}
}

// WithMetricsRegistry registers metrics with reg instead of a private
// registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// Server is the relay's reactor. One goroutine, the one running Serve,
// owns the registry and every connection; it blocks only in the poller's
// Wait.
type Server struct {
	cfg      Config
	logger   log.FieldLogger
	listener Listener
	poller   poller.Poller
	hub      *chat.Hub
	metrics  *Metrics
	registry *prometheus.Registry
	handles  map[int]*chat.Connection
	events   []poller.Event
	token    string
	http     *http.Server

	clients  atomic.Int64
	stopping atomic.Bool

	mu      sync.Mutex
	serving bool
	stopped bool
	done    chan struct{}
}

// New creates a Server. cfg is copied; a nil cfg selects defaults.
func New(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	s := &Server{
		cfg:     *cfg,
		logger:  log.StandardLogger(),
		handles: make(map[int]*chat.Connection),
		token:   uuid.NewString(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxEvents <= 0 {
		s.cfg.MaxEvents = DefaultMaxEvents
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = NewMetrics(s.registry)
	s.hub = chat.NewHub(s.cfg.MaxClients, chat.WithLogger(s.logger), chat.WithObserver(s.metrics))
	s.events = make([]poller.Event, s.cfg.MaxEvents)
	return s
}

// Listen binds the listener and registers it with the poller. Any error is
// fatal: the reactor must not run without a working listener.
func (s *Server) Listen() error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if s.listener == nil {
		l, err := listen(&s.cfg)
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		s.listener = l
	}

	if s.poller == nil {
		p, err := poller.New(s.cfg.MaxEvents)
		if err != nil {
			s.abortListen()
			return fmt.Errorf("failed to create poller: %w", err)
		}
		s.poller = p
	}

	if err := s.poller.Add(s.listener.Fd(), poller.Readable); err != nil {
		s.abortListen()
		return fmt.Errorf("failed to register listener: %w", err)
	}

	s.logger.WithField("token", s.token).Infof("Server init on %s", s.listener.Addr())

	if s.cfg.MetricsAddr != "" {
		if err := s.startHTTP(); err != nil {
			s.abortListen()
			return err
		}
	}
	return nil
}

// abortListen releases whatever a failed Listen acquired, leaving the
// server as if Listen had never been called.
func (s *Server) abortListen() {
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	if s.poller != nil {
		_ = s.poller.Close()
		s.poller = nil
	}
}

// Start listens and then serves until Stop or a fatal error.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve runs the reactor loop. It returns ErrServerStopped after Stop, or
// the poller's error if waiting for readiness fails.
func (s *Server) Serve() error {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrServerStopped
	case s.listener == nil || s.poller == nil:
		s.mu.Unlock()
		return ErrNotListening
	}
	s.serving = true
	s.mu.Unlock()
	defer close(s.done)

	listenFd := s.listener.Fd()
	for {
		n, err := s.poller.Wait(s.events, -1)
		if s.stopping.Load() {
			s.shutdown()
			return ErrServerStopped
		}
		if err != nil {
			s.shutdown()
			return fmt.Errorf("readiness wait failed: %w", err)
		}

		for _, ev := range s.events[:n] {
			if ev.Fd == listenFd {
				s.acceptPending()
				continue
			}
			s.service(ev)
		}
	}
}

// Stop makes the reactor close every connection, the listener and the
// poller, then waits for Serve to return.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.stopping.Store(true)
	serving := s.serving
	s.mu.Unlock()

	switch {
	case serving:
		if err := s.poller.Wake(); err != nil && !errors.Is(err, poller.ErrClosed) {
			s.logger.Errorf("Failed to wake reactor: %v", err)
		}
		<-s.done
	case s.listener != nil || s.poller != nil:
		s.shutdown()
	}
	s.stopHTTP()
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of connected clients. Safe for concurrent use.
func (s *Server) ClientCount() int {
	return int(s.clients.Load())
}

// Token returns the random session token generated at construction.
func (s *Server) Token() string {
	return s.token
}

// MetricsRegistry returns the registry holding the server's metrics.
func (s *Server) MetricsRegistry() *prometheus.Registry {
	return s.registry
}

// acceptPending drains the listener: one readiness event may stand for
// several pending connections.
func (s *Server) acceptPending() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.metrics.AcceptFailed()
			s.logger.Errorf("Failed to accept connection: %v", err)
			return
		}
		if conn == nil {
			return
		}
		s.admit(conn)
	}
}

func (s *Server) admit(conn Conn) {
	fd := conn.Fd()
	c, err := s.hub.Admit(chat.ID(fd), conn)
	if err != nil {
		s.logger.WithField("remote", conn.RemoteAddr()).Warnf("Rejecting connection: %v", err)
		_ = conn.Close()
		return
	}

	if err := s.poller.Add(fd, poller.Readable); err != nil {
		s.logger.WithField("remote", conn.RemoteAddr()).Errorf("Failed to register connection: %v", err)
		s.hub.Discard(c)
		return
	}
	s.handles[fd] = c
	s.clients.Store(int64(s.hub.ClientCount()))

	s.hub.Greet(c)
}

func (s *Server) service(ev poller.Event) {
	c, ok := s.handles[ev.Fd]
	if !ok {
		s.logger.WithField("fd", ev.Fd).Warn("Readiness reported for unknown descriptor")
		_ = s.poller.Remove(ev.Fd)
		return
	}

	chunk, err := c.Receive()
	switch {
	case errors.Is(err, chat.ErrWouldBlock):
		return
	case errors.Is(err, io.EOF):
		s.teardown(ev.Fd, c)
		return
	case err != nil:
		s.logger.WithFields(log.Fields{"conn_id": c.ID(), "nick": c.Nickname()}).Warnf("Read failed: %v", err)
		s.teardown(ev.Fd, c)
		return
	}

	if s.hub.Handle(c, chunk) == chat.ActionClose {
		s.teardown(ev.Fd, c)
	}
}

func (s *Server) teardown(fd int, c *chat.Connection) {
	if err := s.poller.Remove(fd); err != nil {
		s.logger.WithField("conn_id", c.ID()).Warnf("Failed to deregister connection: %v", err)
	}
	delete(s.handles, fd)
	s.hub.Drop(c)
	s.clients.Store(int64(s.hub.ClientCount()))
}

func (s *Server) shutdown() {
	closed := s.hub.Shutdown()
	s.handles = make(map[int]*chat.Connection)
	s.clients.Store(0)

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Warnf("Failed to close listener: %v", err)
		}
	}
	if s.poller != nil {
		if err := s.poller.Close(); err != nil {
			s.logger.Warnf("Failed to close poller: %v", err)
		}
	}
	s.logger.Infof("Server stopped, closed %d connections", closed)
}
