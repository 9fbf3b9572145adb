// Package logging configures the process-wide logrus logger from command
// line settings.
package logging

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// Configure sets level and output format ("text" or "json") on logger.
func Configure(logger *log.Logger, level, format string, out io.Writer) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	switch format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	if out != nil {
		logger.SetOutput(out)
	}
	return nil
}
