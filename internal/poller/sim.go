package poller

import (
	"fmt"
	"sync"
	"time"
)

// Sim is a userspace Poller. Readiness is injected with Ready; Wait
// reports each injection once, in injection order, for descriptors that
// are still registered. It lets the reactor run against fake transports.
type Sim struct {
	mu         sync.Mutex
	registered map[int]Interest
	pending    []Event
	signal     chan struct{}
	closed     bool
}

// NewSim creates an empty simulated poller.
func NewSim() *Sim {
	return &Sim{
		registered: make(map[int]Interest),
		signal:     make(chan struct{}, 1),
	}
}

// Ready marks fd readable. It may be called from any goroutine.
func (s *Sim) Ready(fd int) {
	s.inject(Event{Fd: fd, Readable: true})
}

// Hangup marks fd as closed by its peer.
func (s *Sim) Hangup(fd int) {
	s.inject(Event{Fd: fd, Readable: true, Hangup: true})
}

// Registered reports whether fd is currently watched.
func (s *Sim) Registered(fd int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.registered[fd]
	return ok
}

// Add implements Poller.
func (s *Sim) Add(fd int, interest Interest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.registered[fd]; ok {
		return fmt.Errorf("sim add fd=%d: already registered", fd)
	}
	s.registered[fd] = interest
	return nil
}

// Remove implements Poller.
func (s *Sim) Remove(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.registered[fd]; !ok {
		return fmt.Errorf("sim del fd=%d: not registered", fd)
	}
	delete(s.registered, fd)
	return nil
}

// Wait implements Poller.
func (s *Sim) Wait(events []Event, timeout time.Duration) (int, error) {
	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		n, woken, err := s.collect(events)
		if err != nil || n > 0 || woken {
			return n, err
		}
		select {
		case <-s.signal:
		case <-deadline:
			return 0, nil
		}
	}
}

// Wake implements Poller.
func (s *Sim) Wake() error {
	s.inject(Event{Fd: -1})
	return nil
}

// Close implements Poller.
func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Sim) inject(ev Event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	s.notify()
}

func (s *Sim) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// collect moves pending events for registered descriptors into events.
// Events for descriptors that are not registered are dropped.
func (s *Sim) collect(events []Event) (n int, woken bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false, ErrClosed
	}

	consumed := 0
	for _, ev := range s.pending {
		if n == len(events) {
			break
		}
		consumed++
		if ev.Fd < 0 {
			woken = true
			continue
		}
		if _, ok := s.registered[ev.Fd]; !ok {
			continue
		}
		events[n] = ev
		n++
	}
	s.pending = s.pending[consumed:]
	if len(s.pending) > 0 {
		s.notify()
	}
	return n, woken, nil
}
