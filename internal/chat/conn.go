// Package chat provides the relay's domain: live connections, the registry
// that owns them, command decoding, and broadcast fan-out.
//
// Nothing in this package locks. Every type is owned by the single reactor
// goroutine that drives it.
package chat

import (
	"errors"
	"math"
	"strconv"
)

// ErrWouldBlock is returned by a Conn when the operation cannot make
// progress without blocking. It is a steady-state condition, not a failure.
var ErrWouldBlock = errors.New("chat: operation would block")

// Conn abstracts a non-blocking byte stream to one peer.
// This interface isolates transport details from chat logic.
type Conn interface {
	// Read reads whatever is pending into buf.
	// Returns ErrWouldBlock when nothing is pending and io.EOF when the peer
	// closed the stream.
	Read(buf []byte) (int, error)

	// Write performs a single non-blocking write. It may write fewer bytes
	// than given.
	Write(data []byte) (int, error)

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// ID identifies a connection for the lifetime of the process. Values are
// opaque; they are neither small nor dense.
type ID uint64

// NoID never identifies a live connection. Broadcasting with NoID as the
// exclusion reaches every connection.
const NoID ID = math.MaxUint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
