package chat

import (
	"io"

	"github.com/omochice/chat-relay/pkg/protocol"
)

// State is a connection's lifecycle stage.
type State int

const (
	StateActive State = iota
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Connection is one accepted peer.
type Connection struct {
	id      ID
	conn    Conn
	nick    string
	inbound []byte
	state   State
}

// NewConnection returns an active connection with the default nickname.
func NewConnection(id ID, conn Conn) *Connection {
	return &Connection{
		id:      id,
		conn:    conn,
		nick:    DefaultNick(id),
		inbound: make([]byte, protocol.MaxMessageSize),
		state:   StateActive,
	}
}

// DefaultNick is the nickname assigned at accept time.
func DefaultNick(id ID) string {
	return "anon:" + id.String()
}

func (c *Connection) ID() ID { return c.id }
func (c *Connection) Nickname() string { return c.nick }
func (c *Connection) State() State { return c.state }
func (c *Connection) RemoteAddr() string { return c.conn.RemoteAddr() }

// Receive reads the most recent chunk from the peer into the connection's
// scratch buffer. The returned slice is only valid until the next Receive.
// A zero-length read is reported as io.EOF.
func (c *Connection) Receive() ([]byte, error) {
	n, err := c.conn.Read(c.inbound)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	return c.inbound[:n], nil
}

func (c *Connection) close() error {
	c.state = StateClosing
	return c.conn.Close()
}
