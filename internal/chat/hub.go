package chat

import (
	log "github.com/sirupsen/logrus"

	"github.com/omochice/chat-relay/pkg/protocol"
)

// Action tells the caller what to do with a connection after Handle.
type Action int

const (
	ActionNone Action = iota
	ActionClose
)

// Hub ties the registry, the decoder and the dispatcher together. It
// implements every protocol effect; the caller only moves bytes and
// manages readiness registration.
type Hub struct {
	registry   *Registry
	dispatcher *Dispatcher
	logger     log.FieldLogger
	observer   Observer
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(logger log.FieldLogger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithObserver attaches an activity observer.
func WithObserver(observer Observer) HubOption {
	return func(h *Hub) {
		h.observer = observer
	}
}

// NewHub creates a Hub holding at most capacity connections.
func NewHub(capacity int, opts ...HubOption) *Hub {
	h := &Hub{
		registry: NewRegistry(capacity),
		logger:   log.StandardLogger(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.dispatcher = NewDispatcher(h.registry, h.logger, h.observer)
	return h
}

// Registry exposes the hub's registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Dispatcher exposes the hub's dispatcher.
func (h *Hub) Dispatcher() *Dispatcher { return h.dispatcher }

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int { return h.registry.Len() }

// Admit registers a newly accepted transport. On error the registry is
// unchanged and the caller still owns conn.
func (h *Hub) Admit(id ID, conn Conn) (*Connection, error) {
	c := NewConnection(id, conn)
	if err := h.registry.Insert(c); err != nil {
		h.observer.ConnectionRejected()
		return nil, err
	}
	h.observer.ConnectionAdmitted()
	h.connLogger(c).WithField("remote", conn.RemoteAddr()).Info("New user connected")
	return c, nil
}

// Greet sends the welcome envelope to c and announces it to everyone else.
func (h *Hub) Greet(c *Connection) {
	if err := h.dispatcher.Send(c, protocol.System(protocol.WelcomeBody(c.nick))); err != nil {
		h.connLogger(c).Warnf("Failed to send welcome: %v", err)
	}
	h.dispatcher.Broadcast(protocol.System(protocol.JoinedBody(c.nick)), c.id)
}

// Handle decodes one chunk read from c and applies its effect.
func (h *Hub) Handle(c *Connection, chunk []byte) Action {
	cmd := Decode(chunk)
	h.observer.CommandDecoded(cmd.Kind)

	switch cmd.Kind {
	case CommandQuit:
		h.connLogger(c).Info("User quit")
		c.state = StateClosing
		return ActionClose

	case CommandNick:
		if cmd.Nick == "" {
			h.connLogger(c).Warn("Ignoring /nick without a name")
			return ActionNone
		}
		h.connLogger(c).Infof("User updating nick to %s", cmd.Nick)
		c.nick = cmd.Nick

	default:
		h.connLogger(c).WithField("len", len(cmd.Payload)).Debug("Chat message")
		h.dispatcher.Broadcast(protocol.Envelope{Label: c.nick, Body: string(cmd.Payload)}, c.id)
	}
	return ActionNone
}

// Drop removes c, announces its departure under its current nickname, and
// closes its transport. Dropping a connection twice is a no-op.
func (h *Hub) Drop(c *Connection) {
	if _, ok := h.registry.Remove(c.id); !ok {
		return
	}
	h.dispatcher.Broadcast(protocol.System(protocol.LeftBody(c.nick)), c.id)
	if err := c.close(); err != nil {
		h.connLogger(c).Warnf("Failed to close connection: %v", err)
	}
	h.observer.ConnectionClosed()
	h.connLogger(c).Info("User disconnected")
}

// Discard removes and closes c without any announcement. It is used when
// a connection never became visible to other peers.
func (h *Hub) Discard(c *Connection) {
	if _, ok := h.registry.Remove(c.id); !ok {
		return
	}
	_ = c.close()
	h.observer.ConnectionClosed()
}

// Shutdown closes every connection without announcements.
func (h *Hub) Shutdown() int {
	conns := h.registry.Drain()
	for _, c := range conns {
		if err := c.close(); err != nil {
			h.connLogger(c).Warnf("Failed to close connection: %v", err)
		}
		h.observer.ConnectionClosed()
	}
	return len(conns)
}

func (h *Hub) connLogger(c *Connection) log.FieldLogger {
	return h.logger.WithFields(log.Fields{"conn_id": c.id, "nick": c.nick})
}
