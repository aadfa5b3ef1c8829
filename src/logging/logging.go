// Package logging builds the logrus logger used by every command. Entries go
// to stderr and, when available, to the local syslog daemon.
package logging

import (
	"io"
	"log/syslog"
	"os"

	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
)

// Options controls logger construction.
type Options struct {
	// Tag is the syslog program name.
	Tag      string
	Facility syslog.Priority
	Verbose  bool
	// Output defaults to os.Stderr.
	Output io.Writer
	// NoSyslog skips the syslog hook (tests, containers without /dev/log).
	NoSyslog bool
}

// syslogDial is swapped in tests.
var syslogDial = func(priority syslog.Priority, tag string) (logrus.Hook, error) {
	h, err := lsyslog.NewSyslogHook("", "", priority, tag)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// New returns a configured logger. A missing syslog daemon is reported as a
// warning on the logger itself and is otherwise ignored.
func New(opts Options) *logrus.Logger {
	log := logrus.New()
	if opts.Output != nil {
		log.SetOutput(opts.Output)
	} else {
		log.SetOutput(os.Stderr)
	}
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(logrus.InfoLevel)
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if !opts.NoSyslog {
		facility := opts.Facility &^ 0x07
		hook, err := syslogDial(facility|syslog.LOG_INFO, opts.Tag)
		if err != nil {
			log.WithError(err).Warn("syslog unavailable, logging to stderr only")
		} else {
			log.AddHook(hook)
		}
	}
	return log
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
