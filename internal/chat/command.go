package chat

import (
	"bytes"

	"github.com/omochice/chat-relay/pkg/protocol"
)

// CommandKind classifies one chunk read from a connection.
type CommandKind int

const (
	CommandChat CommandKind = iota
	CommandNick
	CommandQuit
)

func (k CommandKind) String() string {
	switch k {
	case CommandChat:
		return "chat"
	case CommandNick:
		return "nick"
	case CommandQuit:
		return "quit"
	default:
		return "unknown"
	}
}

var (
	quitPrefix = []byte("/quit")
	nickPrefix = []byte("/nick")
)

// Command is a decoded chunk.
type Command struct {
	Kind CommandKind
	// Nick is the sanitised argument of a nick command. It may be empty.
	Nick string
	// Payload is the chunk of a chat command, verbatim. It aliases the
	// chunk passed to Decode.
	Payload []byte
}

// Decode classifies a chunk as one logical message. Chunks are never
// reassembled across reads or split within one: a chunk holding two lines
// is a single chat message.
func Decode(chunk []byte) Command {
	switch {
	case bytes.HasPrefix(chunk, quitPrefix):
		return Command{Kind: CommandQuit}
	case bytes.HasPrefix(chunk, nickPrefix):
		return Command{Kind: CommandNick, Nick: parseNick(chunk[len(nickPrefix):])}
	default:
		return Command{Kind: CommandChat, Payload: chunk}
	}
}

// parseNick trims the argument, keeps only its first line, and truncates
// it to protocol.MaxNickLen bytes.
func parseNick(arg []byte) string {
	nick := bytes.TrimSpace(arg)
	if i := bytes.IndexAny(nick, "\r\n"); i >= 0 {
		nick = bytes.TrimSpace(nick[:i])
	}
	if len(nick) > protocol.MaxNickLen {
		nick = nick[:protocol.MaxNickLen]
	}
	return string(nick)
}
