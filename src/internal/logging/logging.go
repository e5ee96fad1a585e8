// Package logging configures the shared logrus logger used across the
// sort, consolidate, and cleanup binaries.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options controls the logger returned by New.
type Options struct {
	Debug   bool
	LogFile string
}

// New builds a logrus.FieldLogger writing to stderr, or to stderr plus
// LogFile (tee'd) when LogFile is set. Debug raises the level to Debug;
// otherwise the level is Info.
func New(opts Options) (logrus.FieldLogger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if opts.Debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	out := io.Writer(os.Stderr)
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", opts.LogFile, err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}
	logger.SetOutput(out)

	return logger, nil
}
