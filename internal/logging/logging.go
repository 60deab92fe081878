package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds the reporter logger. debug switches to debug level; format is
// "json" or "text" (default).
func New(debug bool, format string) *logrus.Logger {
	return NewWithOutput(os.Stderr, debug, format)
}

// NewWithOutput is New with an explicit writer.
func NewWithOutput(out io.Writer, debug bool, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	return log
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
