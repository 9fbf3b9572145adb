// Package tcp provides a TCP client for the chat relay. It speaks the
// relay's wire contract: lines go out terminated by "\r\n" and every read
// from the relay is parsed as one envelope.
package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/omochice/chat-relay/pkg/protocol"
)

// ErrConnectionLost reports that the relay closed the connection or a read
// from it failed.
var ErrConnectionLost = errors.New("connection lost")

// ErrNotConnected is returned when sending without a connection.
var ErrNotConnected = errors.New("not connected to server")

// ErrMessageTooLong is returned when a line, with its terminator, would not
// fit in one relay read. Nothing is sent and the connection stays usable.
var ErrMessageTooLong = errors.New("message too long")

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDialTimeout bounds Connect.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// Client represents a TCP chat client
type Client struct {
	address     string
	dialTimeout time.Duration
	logger      log.FieldLogger

	conn      net.Conn
	envelopes chan protocol.Envelope
	mu        sync.RWMutex
	err       error
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a new Client instance
func New(address string, opts ...Option) *Client {
	c := &Client{
		address:     address,
		dialTimeout: 5 * time.Second,
		logger:      log.StandardLogger(),
		envelopes:   make(chan protocol.Envelope, 16),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes a connection to the server
func (c *Client) Connect() error {
	conn, err := net.DialTimeout("tcp", c.address, c.dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receive(conn)

	return nil
}

// Disconnect closes the connection to the server. It is safe to call more
// than once.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	})
	c.wg.Wait()
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Envelopes returns the channel of envelopes read from the relay. It is
// closed when the connection ends; Err then reports why.
func (c *Client) Envelopes() <-chan protocol.Envelope {
	return c.envelopes
}

// Err returns ErrConnectionLost, wrapping the read error, once the relay
// connection has failed. It returns nil after a clean Disconnect.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Send sends one line of chat. A terminating "\r\n" is appended.
func (c *Client) Send(line string) error {
	return c.write(line + "\r\n")
}

// SetNick asks the relay to rename this connection.
func (c *Client) SetNick(nick string) error {
	return c.Send("/nick " + nick)
}

// Quit asks the relay to close this connection.
func (c *Client) Quit() error {
	return c.Send("/quit")
}

func (c *Client) write(data string) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	if len(data) > protocol.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrMessageTooLong, len(data), protocol.MaxMessageSize)
	}
	if _, err := io.WriteString(conn, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// receive treats every read as one envelope.
func (c *Client) receive(conn net.Conn) {
	defer c.wg.Done()
	defer close(c.envelopes)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-c.done:
			default:
				c.lost(err)
			}
			return
		}

		env, err := protocol.ParseEnvelope(buf[:n])
		if err != nil {
			c.logger.Warnf("Dropping unparseable data from server: %v", err)
			continue
		}

		select {
		case c.envelopes <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Client) lost(err error) {
	if !errors.Is(err, io.EOF) {
		c.logger.Errorf("Error reading from server: %v", err)
	}
	c.mu.Lock()
	c.err = fmt.Errorf("%w: %v", ErrConnectionLost, err)
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}
