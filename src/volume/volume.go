// Package volume mounts and releases removable backup volumes through the
// host mount table.
package volume

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"rdbackup/src/runner"
)

// ExitAlreadyMounted is the mount(8) status treated as "already mounted".
const ExitAlreadyMounted = 32

// State describes how a lease obtained its mount.
type State int

const (
	Unmounted State = iota
	Mounted
	AlreadyMounted
)

func (s State) String() string {
	switch s {
	case Mounted:
		return "mounted"
	case AlreadyMounted:
		return "already mounted"
	default:
		return "unmounted"
	}
}

// NotFoundError means the volume could not be mounted.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: volume not found: %v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ResidualError reports a mount point directory left behind.
type ResidualError struct {
	Path string
	Err  error
}

func (e *ResidualError) Error() string {
	return fmt.Sprintf("%s: mount point left behind: %v", e.Path, e.Err)
}

func (e *ResidualError) Unwrap() error { return e.Err }

// Mounter acquires mount points.
type Mounter struct {
	Runner      runner.Runner
	SettleDelay time.Duration
	Log         logrus.FieldLogger
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Lease is a mounted volume. Release must be called on every path.
type Lease struct {
	Path  string
	State State

	m        *Mounter
	released bool
}

// Acquire creates the mount point, mounts it and waits for the settle
// delay. Mount failures are returned as *NotFoundError after the mount
// point directory has been removed again.
func (m *Mounter) Acquire(ctx context.Context, path string) (*Lease, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create mount point %s: %w", path, err)
	}

	state := Mounted
	_, err := m.Runner.Run(ctx, runner.Command{Name: "mount", Args: []string{path}})
	if err != nil {
		code, ok := runner.ExitCode(err)
		if !ok || code != ExitAlreadyMounted {
			if rmErr := removeMountPoint(path); rmErr != nil {
				m.logger().WithError(rmErr).Warnf("%s: mount point left behind", path)
			}
			return nil, &NotFoundError{Path: path, Err: err}
		}
		state = AlreadyMounted
	}
	m.logger().Debugf("%s: %s", path, state)

	if m.SettleDelay > 0 {
		if err := m.sleep(ctx, m.SettleDelay); err != nil {
			l := &Lease{Path: path, State: state, m: m}
			if relErr := l.Release(context.WithoutCancel(ctx)); relErr != nil {
				m.logger().WithError(relErr).Warn("release after interrupted settle failed")
			}
			return nil, err
		}
	}
	return &Lease{Path: path, State: state, m: m}, nil
}

// Release unmounts the volume and removes the mount point directory. It is
// safe to call more than once. A failed unmount leaves the directory in
// place and is returned as *ResidualError.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.released {
		return nil
	}
	l.released = true
	if _, err := l.m.Runner.Run(ctx, runner.Command{Name: "umount", Args: []string{l.Path}}); err != nil {
		return &ResidualError{Path: l.Path, Err: err}
	}
	l.State = Unmounted
	if err := removeMountPoint(l.Path); err != nil {
		return &ResidualError{Path: l.Path, Err: err}
	}
	return nil
}

func removeMountPoint(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (m *Mounter) sleep(ctx context.Context, d time.Duration) error {
	if m.Sleep != nil {
		return m.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Mounter) logger() logrus.FieldLogger {
	if m.Log != nil {
		return m.Log
	}
	return logrus.StandardLogger()
}
