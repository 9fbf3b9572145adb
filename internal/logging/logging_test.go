package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/omochice/chat-relay/internal/logging"
)

func TestConfigure(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel log.Level
		wantErr   bool
	}{
		{"text info", "info", "text", log.InfoLevel, false},
		{"default format", "debug", "", log.DebugLevel, false},
		{"json warn", "warn", "json", log.WarnLevel, false},
		{"bad level", "loud", "text", log.InfoLevel, true},
		{"bad format", "info", "xml", log.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := log.New()
			err := logging.Configure(logger, tt.level, tt.format, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Configure() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestConfigure_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	if err := logging.Configure(logger, "info", "json", &buf); err != nil {
		t.Fatal(err)
	}

	logger.WithField("conn_id", 7).Info("New user connected")

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	if entry["msg"] != "New user connected" || entry["conn_id"] != float64(7) {
		t.Errorf("entry = %v", entry)
	}
}
