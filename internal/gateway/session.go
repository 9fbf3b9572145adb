package gateway

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/omochice/chat-relay/internal/client/tcp"
	"github.com/omochice/chat-relay/pkg/protocol"
)

// session pairs one WebSocket peer with one relay connection.
type session struct {
	id     string
	conn   net.Conn
	format Format
	logger log.FieldLogger
	relay  *tcp.Client

	// writes to conn come from both the relay pump and close paths
	mu        sync.Mutex
	closeOnce sync.Once
}

func newSession(conn net.Conn, format Format, logger log.FieldLogger) *session {
	id := uuid.NewString()
	return &session{
		id:     id,
		conn:   conn,
		format: format,
		logger: logger.WithFields(log.Fields{"session": id, "format": format}),
	}
}

func (s *session) dial(addr string, timeout time.Duration) error {
	s.relay = tcp.New(addr, tcp.WithLogger(s.logger), tcp.WithDialTimeout(timeout))
	return s.relay.Connect()
}

// run forwards in both directions until either side goes away.
func (s *session) run() {
	s.logger.Info("WebSocket session opened")

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.pump()
	}()

	s.readPeer()
	s.relay.Disconnect()
	<-pumpDone
	s.closeWith(ws.StatusNormalClosure, "")
	s.logger.Info("WebSocket session closed")
}

// controlWriter serialises the reader's control-frame replies with data
// frames written by pump.
type controlWriter struct {
	s *session
}

func (w controlWriter) Write(p []byte) (int, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.s.conn.Write(p)
}

// readPeer relays every data frame from the peer as one chat line.
func (s *session) readPeer() {
	rw := struct {
		io.Reader
		io.Writer
	}{s.conn, controlWriter{s}}

	for {
		data, op, err := wsutil.ReadClientData(rw)
		if err != nil {
			s.logger.Debugf("WebSocket read ended: %v", err)
			return
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}

		line := strings.TrimRight(string(data), "\r\n")
		err = s.relay.Send(line)
		switch {
		case errors.Is(err, tcp.ErrMessageTooLong):
			s.logger.Warnf("Dropping frame from peer: %v", err)
		case err != nil:
			s.logger.Warnf("Failed to forward to relay: %v", err)
			return
		}
	}
}

// pump writes relay envelopes to the peer until the relay channel closes.
func (s *session) pump() {
	for env := range s.relay.Envelopes() {
		if err := s.send(env); err != nil {
			s.logger.Warnf("Failed to write to WebSocket peer: %v", err)
			s.closeWith(ws.StatusGoingAway, "write failed")
			return
		}
	}
	if err := s.relay.Err(); err != nil {
		s.logger.Warnf("Relay %v", err)
		s.closeWith(ws.StatusGoingAway, "connection lost")
	}
}

func (s *session) send(env protocol.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case FormatProto:
		msg := protocol.FromEnvelope(env)
		data, err := msg.Encode()
		if err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}
		return wsutil.WriteServerBinary(s.conn, data)
	default:
		return wsutil.WriteServerText(s.conn, env.Encode())
	}
}

// closeWith sends a close frame and closes the socket once.
func (s *session) closeWith(code ws.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		body := ws.NewCloseFrameBody(code, reason)
		_ = ws.WriteFrame(s.conn, ws.NewCloseFrame(body))
		_ = s.conn.Close()
	})
}
