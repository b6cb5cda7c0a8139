package cli

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// newLogger returns a logger writing to w. Format is one of "json", "text"
// or "color"; level is any level accepted by logrus.ParseLevel.
func newLogger(w io.Writer, level, format string) (*log.Logger, error) {
	logger := log.New()
	logger.SetOutput(w)

	switch format {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "text":
		logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	case "color":
		logger.SetFormatter(&log.TextFormatter{ForceColors: true, DisableTimestamp: true})
	default:
		return nil, fmt.Errorf("unrecognized log format %q", format)
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unrecognized log level: %w", err)
	}

	logger.SetLevel(lvl)

	return logger, nil
}
