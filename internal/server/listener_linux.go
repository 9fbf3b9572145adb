//go:build linux

package server

import (
	"github.com/omochice/chat-relay/internal/transport/tcp"
)

// tcpListener adapts tcp.Listener to Listener.
type tcpListener struct {
	*tcp.Listener
}

func (l tcpListener) Accept() (Conn, error) {
	c, err := l.Listener.Accept()
	if c == nil || err != nil {
		return nil, err
	}
	return c, nil
}

func listen(cfg *Config) (Listener, error) {
	l, err := tcp.Listen(cfg.Address, cfg.Port, cfg.Backlog)
	if err != nil {
		return nil, err
	}
	return tcpListener{l}, nil
}
