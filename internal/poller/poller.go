// Package poller reports which registered descriptors are ready for I/O
// without dedicating a goroutine to each of them.
//
// Backends: epoll on Linux, and Sim, a userspace simulation used by tests.
package poller

import (
	"errors"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed poller.
	ErrClosed = errors.New("poller: closed")
	// ErrUnsupported is returned by New on platforms without a backend.
	ErrUnsupported = errors.New("poller: no readiness backend for this platform")
)

// Interest selects the readiness conditions a descriptor is watched for.
type Interest uint32

const (
	Readable Interest = 1 << iota
	Writable
)

// Event reports one ready descriptor.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
	// Hangup is set when the peer closed or the descriptor errored. A read
	// will observe the condition.
	Hangup bool
}

// Poller is the readiness capability the reactor is written against.
type Poller interface {
	// Add starts watching fd.
	Add(fd int, interest Interest) error
	// Remove stops watching fd.
	Remove(fd int) error
	// Wait fills events with ready descriptors and returns how many it
	// wrote. A negative timeout blocks until at least one descriptor is
	// ready or Wake is called; Wake makes Wait return zero events.
	Wait(events []Event, timeout time.Duration) (int, error)
	// Wake interrupts a blocked Wait. It is safe to call from any goroutine.
	Wake() error
	// Close releases the poller.
	Close() error
}

// DefaultMaxEvents is the event batch size used when none is configured.
const DefaultMaxEvents = 64
