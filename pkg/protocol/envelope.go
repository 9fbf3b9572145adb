// Package protocol defines the text wire format spoken between the relay and
// its clients.
//
// Every server write is one envelope:
//
//	<label>\r\n<body>
//
// There is no length prefix and no trailing terminator beyond what the body
// itself carries, so a consumer treats one transport read as one envelope.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	// SystemLabel is the label of envelopes generated by the relay itself.
	SystemLabel = "Server"

	// NickCapacity is the nickname storage size including the terminator
	// the reference client reserves for it.
	NickCapacity = 32

	// MaxNickLen is the longest nickname, in bytes, the relay will store.
	MaxNickLen = NickCapacity - 1

	// MaxMessageSize bounds a single read from a client.
	MaxMessageSize = 256
)

// Separator splits the label from the body.
var Separator = []byte("\r\n")

// ErrMalformedEnvelope is returned when a payload carries no separator.
var ErrMalformedEnvelope = errors.New("protocol: envelope has no label separator")

// Envelope is one server-to-client message.
type Envelope struct {
	Label string
	Body  string
}

// System builds an envelope carrying the relay's own label.
func System(body string) Envelope {
	return Envelope{Label: SystemLabel, Body: body}
}

// Encode renders the envelope in wire form.
func (e Envelope) Encode() []byte {
	buf := make([]byte, 0, len(e.Label)+len(Separator)+len(e.Body))
	buf = append(buf, e.Label...)
	buf = append(buf, Separator...)
	buf = append(buf, e.Body...)
	return buf
}

// IsSystem reports whether the envelope was generated by the relay.
func (e Envelope) IsSystem() bool {
	return e.Label == SystemLabel
}

// ParseEnvelope splits data on the first separator.
func ParseEnvelope(data []byte) (Envelope, error) {
	label, body, ok := bytes.Cut(data, Separator)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrMalformedEnvelope, truncate(data, 32))
	}
	return Envelope{Label: string(label), Body: string(body)}, nil
}

// WelcomeBody is sent only to a freshly accepted connection.
func WelcomeBody(nick string) string {
	return "Welcome " + nick + "! Use /nick to set a nickname\n\n"
}

// JoinedBody announces a new connection to everybody else.
func JoinedBody(nick string) string {
	return nick + " joined\n"
}

// LeftBody announces a departed connection to everybody else.
func LeftBody(nick string) string {
	return nick + " left\n"
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
