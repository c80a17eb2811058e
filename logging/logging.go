// Package logging builds the logrus logger shared by the server and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a logger writing to stderr at the given level and format.
// An unknown level falls back to info and is reported as an error.
func New(level, format string) (*logrus.Logger, error) {
	return NewWithOutput(level, format, os.Stderr)
}

// NewWithOutput is New with an explicit destination.
func NewWithOutput(level, format string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	switch strings.ToLower(format) {
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return logger, fmt.Errorf("unknown log format %q", format)
	}

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		return logger, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)
	return logger, nil
}
