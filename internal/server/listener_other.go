//go:build !linux

package server

import (
	"github.com/omochice/chat-relay/internal/poller"
)

func listen(*Config) (Listener, error) {
	return nil, poller.ErrUnsupported
}
