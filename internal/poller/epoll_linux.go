//go:build linux

package poller

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Epoll is the Linux backend. Descriptors are watched level-triggered, so
// a descriptor with unread data is reported again by the next Wait.
type Epoll struct {
	fd     int
	wakeFd int
	raw    []unix.EpollEvent
	closed atomic.Bool
}

// New returns the platform's readiness backend, reporting at most
// maxEvents descriptors per Wait.
func New(maxEvents int) (Poller, error) {
	return NewEpoll(maxEvents)
}

// NewEpoll creates an epoll instance with an eventfd registered for Wake.
func NewEpoll(maxEvents int) (*Epoll, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(fd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		_ = unix.Close(wakeFd)
		_ = unix.Close(fd)
		return nil, fmt.Errorf("epoll_ctl: wake fd: %w", err)
	}

	return &Epoll{
		fd:     fd,
		wakeFd: wakeFd,
		raw:    make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Add implements Poller.
func (p *Epoll) Add(fd int, interest Interest) error {
	if p.closed.Load() {
		return ErrClosed
	}
	ev := unix.EpollEvent{Events: epollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add fd=%d: %w", fd, err)
	}
	return nil
}

// Remove implements Poller.
func (p *Epoll) Remove(fd int) error {
	if p.closed.Load() {
		return ErrClosed
	}
	var ev unix.EpollEvent
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl del fd=%d: %w", fd, err)
	}
	return nil
}

// Wait implements Poller.
func (p *Epoll) Wait(events []Event, timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	raw := p.raw
	if len(events) < len(raw) {
		raw = raw[:len(events)]
	}
	if len(raw) == 0 {
		return 0, nil
	}

	msec := -1
	if timeout >= 0 {
		msec = int(timeout.Milliseconds())
	}

	for {
		n, err := unix.EpollWait(p.fd, raw, msec)
		if errors.Is(err, unix.EINTR) {
			if msec < 0 {
				continue
			}
			return 0, nil
		}
		if err != nil {
			if p.closed.Load() {
				return 0, ErrClosed
			}
			return 0, fmt.Errorf("epoll_wait: %w", err)
		}

		out := 0
		for _, e := range raw[:n] {
			if int(e.Fd) == p.wakeFd {
				p.drainWake()
				continue
			}
			events[out] = Event{
				Fd:       int(e.Fd),
				Readable: e.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0,
				Writable: e.Events&unix.EPOLLOUT != 0,
				Hangup:   e.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0,
			}
			out++
		}
		return out, nil
	}
}

// Wake implements Poller.
func (p *Epoll) Wake() error {
	if p.closed.Load() {
		return ErrClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(p.wakeFd, buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close implements Poller.
func (p *Epoll) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	err := unix.Close(p.wakeFd)
	if cerr := unix.Close(p.fd); err == nil {
		err = cerr
	}
	return err
}

func (p *Epoll) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakeFd, buf[:])
}

func epollEvents(interest Interest) uint32 {
	events := uint32(unix.EPOLLRDHUP)
	if interest&Readable != 0 {
		events |= unix.EPOLLIN
	}
	if interest&Writable != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}
