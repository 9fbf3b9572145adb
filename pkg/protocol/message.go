package protocol

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// MessageType represents the type of message
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypeJoin
	MessageTypeLeave
	MessageTypeWelcome
	MessageTypeSystem
)

// String returns the string representation of MessageType
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeText:
		return "TEXT"
	case MessageTypeJoin:
		return "JOIN"
	case MessageTypeLeave:
		return "LEAVE"
	case MessageTypeWelcome:
		return "WELCOME"
	case MessageTypeSystem:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// Field numbers of the binary encoding. They match
//
//	message Message { int32 type = 1; string sender = 2; string content = 3; }
const (
	fieldType    protowire.Number = 1
	fieldSender  protowire.Number = 2
	fieldContent protowire.Number = 3
)

// Message is a structured view of an Envelope for consumers that want
// typed events instead of raw text.
type Message struct {
	Type    MessageType
	Sender  string
	Content string
}

const welcomeSuffix = "! Use /nick to set a nickname\n\n"

// FromEnvelope classifies a wire envelope.
// Relay-generated bodies that match no known announcement become
// MessageTypeSystem with the body as content.
func FromEnvelope(env Envelope) Message {
	if !env.IsSystem() {
		return Message{Type: MessageTypeText, Sender: env.Label, Content: env.Body}
	}

	body := env.Body
	switch {
	case strings.HasPrefix(body, "Welcome ") && strings.HasSuffix(body, welcomeSuffix):
		nick := strings.TrimSuffix(strings.TrimPrefix(body, "Welcome "), welcomeSuffix)
		return Message{Type: MessageTypeWelcome, Sender: nick}
	case strings.HasSuffix(body, " joined\n"):
		return Message{Type: MessageTypeJoin, Sender: strings.TrimSuffix(body, " joined\n")}
	case strings.HasSuffix(body, " left\n"):
		return Message{Type: MessageTypeLeave, Sender: strings.TrimSuffix(body, " left\n")}
	default:
		return Message{Type: MessageTypeSystem, Sender: SystemLabel, Content: body}
	}
}

// Encode encodes the message into protobuf wire format
func (m *Message) Encode() ([]byte, error) {
	if m.Type < MessageTypeText || m.Type > MessageTypeSystem {
		return nil, fmt.Errorf("failed to encode message: unknown type %d", m.Type)
	}

	var b []byte
	if m.Type != MessageTypeText {
		b = protowire.AppendTag(b, fieldType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Type))
	}
	if m.Sender != "" {
		b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
		b = protowire.AppendString(b, m.Sender)
	}
	if m.Content != "" {
		b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
		b = protowire.AppendString(b, m.Content)
	}
	return b, nil
}

// Decode decodes protobuf wire bytes into a message.
// Unknown fields are skipped; unknown type values degrade to TEXT.
func (m *Message) Decode(data []byte) error {
	*m = Message{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("failed to decode message: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("failed to decode message type: %w", protowire.ParseError(n))
			}
			m.Type = messageTypeFromWire(v)
			data = data[n:]
		case num == fieldSender && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fmt.Errorf("failed to decode message sender: %w", protowire.ParseError(n))
			}
			m.Sender = v
			data = data[n:]
		case num == fieldContent && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fmt.Errorf("failed to decode message content: %w", protowire.ParseError(n))
			}
			m.Content = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("failed to decode message: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// messageTypeFromWire returns MessageTypeText for values it does not know
// so that newer senders degrade to plain chat lines.
func messageTypeFromWire(v uint64) MessageType {
	if v > uint64(MessageTypeSystem) {
		return MessageTypeText
	}
	return MessageType(v)
}
