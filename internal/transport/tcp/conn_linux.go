//go:build linux

package tcp

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/omochice/chat-relay/internal/chat"
)

// Conn adapts a non-blocking socket descriptor to chat.Conn.
type Conn struct {
	fd     int
	remote string
	closed bool
}

func newConn(fd int, remote string) *Conn {
	return &Conn{fd: fd, remote: remote}
}

// Fd returns the descriptor for readiness registration.
func (c *Conn) Fd() int { return c.fd }

// Read implements chat.Conn.
func (c *Conn) Read(buf []byte) (int, error) {
	n, err := unix.Read(c.fd, buf)
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return 0, chat.ErrWouldBlock
	case err != nil:
		return 0, fmt.Errorf("read fd=%d: %w", c.fd, err)
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

// Write implements chat.Conn. MSG_NOSIGNAL keeps a vanished peer from
// raising SIGPIPE; the failure surfaces as EPIPE instead.
func (c *Conn) Write(data []byte) (int, error) {
	n, err := unix.SendmsgN(c.fd, data, nil, nil, unix.MSG_NOSIGNAL)
	switch {
	case errors.Is(err, unix.EAGAIN):
		return 0, chat.ErrWouldBlock
	case err != nil:
		return 0, fmt.Errorf("write fd=%d: %w", c.fd, err)
	}
	return n, nil
}

// Close implements chat.Conn. Closing twice is a no-op.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return unix.Close(c.fd)
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remote
}
