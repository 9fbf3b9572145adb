package server_test

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/omochice/chat-relay/internal/chat"
	"github.com/omochice/chat-relay/internal/poller"
	"github.com/omochice/chat-relay/internal/server"
)

// fakeConn is an in-memory server.Conn. Reads come from a queue filled by
// push; an empty queue reports chat.ErrWouldBlock.
type fakeConn struct {
	fd     int
	remote string

	mu      sync.Mutex
	reads   [][]byte
	eof     bool
	readErr error
	written []string
	closed  bool
}

func newFakeConn(fd int) *fakeConn {
	return &fakeConn{fd: fd, remote: "10.0.0.1:" + chat.ID(fd).String()}
}

func (c *fakeConn) Fd() int { return c.fd }

func (c *fakeConn) push(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = append(c.reads, []byte(s))
}

// hangup makes the next Read report end of stream.
func (c *fakeConn) hangup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eof = true
}

// failReads makes every later Read return err.
func (c *fakeConn) failReads(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

func (c *fakeConn) Read(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return 0, c.readErr
	}
	if len(c.reads) > 0 {
		n := copy(buf, c.reads[0])
		c.reads = c.reads[1:]
		return n, nil
	}
	if c.eof {
		return 0, io.EOF
	}
	return 0, chat.ErrWouldBlock
}

func (c *fakeConn) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errors.New("write on closed conn")
	}
	c.written = append(c.written, string(data))
	return len(data), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() string { return c.remote }

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeListener hands out queued connections.
type fakeListener struct {
	fd int

	mu        sync.Mutex
	pending   []server.Conn
	acceptErr error
	closes    int
}

func newFakeListener(fd int) *fakeListener {
	return &fakeListener{fd: fd}
}

func (l *fakeListener) Fd() int { return l.fd }

func (l *fakeListener) enqueue(conns ...*fakeConn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range conns {
		l.pending = append(l.pending, c)
	}
}

// failNext makes the next Accept return err.
func (l *fakeListener) failNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acceptErr = err
}

func (l *fakeListener) Accept() (server.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.acceptErr; err != nil {
		l.acceptErr = nil
		return nil, err
	}
	if len(l.pending) == 0 {
		return nil, nil
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c, nil
}

func (l *fakeListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6699}
}

func (l *fakeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closes++
	return nil
}

func (l *fakeListener) IsClosed() bool {
	return l.Closes() > 0
}

func (l *fakeListener) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// brokenPoller is a Sim whose Wait always fails and whose Add can be made
// to fail.
type brokenPoller struct {
	*poller.Sim
	addErr error
}

func (p *brokenPoller) Add(fd int, interest poller.Interest) error {
	if p.addErr != nil {
		return p.addErr
	}
	return p.Sim.Add(fd, interest)
}

func (p *brokenPoller) Wait([]poller.Event, time.Duration) (int, error) {
	return 0, errors.New("epoll_wait: bad file descriptor")
}

func (p *brokenPoller) Wake() error {
	return poller.ErrClosed
}

// eventually polls cond until it holds or the timeout elapses.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
