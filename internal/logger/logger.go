package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls how a run logger is built.
type Options struct {
	Debug bool
	// File enables a rotated copy of the log stream when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the logger for one process. Debug switches to a human readable
// text formatter, otherwise entries are emitted as JSON.
func New(opts Options, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10), // megabytes
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28), // days
			Compress:   true,
		}
		out = io.MultiWriter(out, rotator)
	}

	log := logrus.New()
	log.SetOutput(out)
	if opts.Debug {
		log.SetLevel(logrus.DebugLevel)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// For returns an entry tagged with the component name. A nil logger yields a
// discarding entry so components can be constructed without one in tests.
func For(log *logrus.Logger, component string) *logrus.Entry {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return log.WithField("component", component)
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
