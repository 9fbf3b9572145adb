// Package server provides configuration helpers that define runtime defaults
// and validation for the relay.
package server

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/omochice/chat-relay/internal/chat"
	"github.com/omochice/chat-relay/internal/poller"
)

const (
	DefaultAddress    = "127.0.0.1"
	DefaultPort       = 6699
	DefaultBacklog    = 128
	DefaultMaxClients = chat.DefaultCapacity
	DefaultMaxEvents  = poller.DefaultMaxEvents
)

// Config holds the relay's runtime settings.
type Config struct {
	// Address is the host or IP to bind.
	Address string
	// Port is the TCP port to bind; 0 lets the kernel choose.
	Port int
	// Backlog is the listen queue length.
	Backlog int
	// MaxClients bounds the number of live connections.
	MaxClients int
	// MaxEvents bounds the readiness events handled per wait.
	MaxEvents int
	// MetricsAddr, when set, serves /metrics and /healthz over HTTP.
	MetricsAddr string
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		Address:    DefaultAddress,
		Port:       DefaultPort,
		Backlog:    DefaultBacklog,
		MaxClients: DefaultMaxClients,
		MaxEvents:  DefaultMaxEvents,
	}
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are unset or invalid.
func NewConfigFromEnv() *Config {
	cfg := NewConfig()

	if addr := os.Getenv("CHATRELAY_ADDR"); addr != "" {
		cfg.Address = addr
	}
	if port := os.Getenv("CHATRELAY_PORT"); port != "" {
		cfg.Port = parsePort(port, cfg.Port)
	}
	if backlog := os.Getenv("CHATRELAY_BACKLOG"); backlog != "" {
		cfg.Backlog = parseIntValue(backlog, cfg.Backlog)
	}
	if maxClients := os.Getenv("CHATRELAY_MAX_CLIENTS"); maxClients != "" {
		cfg.MaxClients = parseIntValue(maxClients, cfg.MaxClients)
	}
	if maxEvents := os.Getenv("CHATRELAY_MAX_EVENTS"); maxEvents != "" {
		cfg.MaxEvents = parseIntValue(maxEvents, cfg.MaxEvents)
	}
	if metrics := os.Getenv("CHATRELAY_METRICS_ADDR"); metrics != "" {
		cfg.MetricsAddr = metrics
	}

	return cfg
}

// Validate reports the first setting the relay cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.Backlog <= 0:
		return fmt.Errorf("invalid backlog %d", c.Backlog)
	case c.MaxClients <= 0:
		return fmt.Errorf("invalid max clients %d", c.MaxClients)
	case c.MaxEvents <= 0:
		return fmt.Errorf("invalid max events %d", c.MaxEvents)
	}
	return nil
}

// ListenAddr returns the configured host:port.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parsePort(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 && parsed <= 65535 {
		return parsed
	}
	return defaultValue
}
