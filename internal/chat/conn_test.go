package chat_test

import (
	"io"
	"sync"

	"github.com/omochice/chat-relay/internal/chat"
)

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	mu         sync.Mutex
	reads      [][]byte
	readErr    error
	written    [][]byte
	writeErr   error
	shortWrite bool
	closed     bool
	remoteAddr string
}

func newMockConn(addr string) *mockConn {
	return &mockConn{remoteAddr: addr}
}

// push queues a chunk for the next Read.
func (m *mockConn) push(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, []byte(s))
}

func (m *mockConn) Read(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	if m.closed {
		return 0, io.EOF
	}
	if len(m.reads) == 0 {
		return 0, chat.ErrWouldBlock
	}
	n := copy(buf, m.reads[0])
	m.reads = m.reads[1:]
	return n, nil
}

func (m *mockConn) Write(data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	n := len(data)
	if m.shortWrite {
		n /= 2
	}
	copied := make([]byte, n)
	copy(copied, data)
	m.written = append(m.written, copied)
	return n, nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

func (m *mockConn) GetWritten() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.written))
	for i, w := range m.written {
		out[i] = string(w)
	}
	return out
}

func (m *mockConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// countingObserver records observer callbacks.
type countingObserver struct {
	admitted, rejected, closed int
	commands                   map[chat.CommandKind]int
	delivered, failed          int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{commands: make(map[chat.CommandKind]int)}
}

func (o *countingObserver) ConnectionAdmitted() { o.admitted++ }
func (o *countingObserver) ConnectionRejected() { o.rejected++ }
func (o *countingObserver) ConnectionClosed() { o.closed++ }
func (o *countingObserver) CommandDecoded(k chat.CommandKind) { o.commands[k]++ }
func (o *countingObserver) Delivered(n int) { o.delivered += n }
func (o *countingObserver) WriteFailed() { o.failed++ }

// Compile-time checks
var (
	_ chat.Conn     = (*mockConn)(nil)
	_ chat.Observer = (*countingObserver)(nil)
)
