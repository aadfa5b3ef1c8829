// Package mediasync mirrors the audio store with rsync.
package mediasync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"rdbackup/src/runner"
)

// Error reports a failed mirror.
type Error struct {
	Source      string
	Destination string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mirror %s -> %s: %v", e.Source, e.Destination, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Syncer runs rsync.
type Syncer struct {
	Runner  runner.Runner
	Log     logrus.FieldLogger
	Verbose bool
}

// Mirror makes destination identical to source, deleting destination
// entries that do not exist in source. The source directory must exist.
func (s *Syncer) Mirror(ctx context.Context, source, destination string) error {
	fi, err := os.Stat(source)
	if err != nil {
		return &Error{Source: source, Destination: destination, Err: err}
	}
	if !fi.IsDir() {
		return &Error{Source: source, Destination: destination, Err: fmt.Errorf("not a directory")}
	}

	args := []string{"-a", "--delete"}
	var out io.Writer
	if s.Verbose {
		args = append(args, "-v")
		if s.Log != nil {
			lw := &lineLogger{log: s.Log}
			defer lw.Flush()
			out = lw
		}
	}
	args = append(args, withSlash(source), withSlash(destination))
	if _, err := s.Runner.Run(ctx, runner.Command{Name: "rsync", Args: args, Stdout: out}); err != nil {
		return &Error{Source: source, Destination: destination, Err: err}
	}
	return nil
}

func withSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// lineLogger forwards rsync output to the debug log one line at a time.
type lineLogger struct {
	log logrus.FieldLogger
	buf []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		l.emit(l.buf[:i])
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}

func (l *lineLogger) Flush() {
	if len(l.buf) > 0 {
		l.emit(l.buf)
		l.buf = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	if t := strings.TrimSpace(string(line)); t != "" {
		l.log.Debugf("rsync: %s", t)
	}
}
