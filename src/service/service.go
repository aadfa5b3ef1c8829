// Package service stops and restarts the live Rivendell service around a
// restore.
package service

import (
	"context"
	"fmt"

	"rdbackup/src/config"
	"rdbackup/src/runner"
)

// Controller manages a service unit.
type Controller interface {
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
}

// Error reports a failed service action.
type Error struct {
	Action string
	Unit   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Unit, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Systemctl controls units through the systemctl tool.
type Systemctl struct {
	Runner runner.Runner
}

func (s *Systemctl) Stop(ctx context.Context, unit string) error {
	return s.run(ctx, "stop", unit)
}

func (s *Systemctl) Restart(ctx context.Context, unit string) error {
	return s.run(ctx, "restart", unit)
}

func (s *Systemctl) run(ctx context.Context, action, unit string) error {
	if _, err := s.Runner.Run(ctx, runner.Command{Name: "systemctl", Args: []string{action, unit}}); err != nil {
		return &Error{Action: action, Unit: unit, Err: err}
	}
	return nil
}

// New returns the controller selected by kind.
func New(kind string, r runner.Runner) (Controller, error) {
	switch kind {
	case config.ServiceControlSystemctl, "":
		return &Systemctl{Runner: r}, nil
	case config.ServiceControlDBus:
		return &DBus{}, nil
	default:
		return nil, fmt.Errorf("unsupported service control %q", kind)
	}
}
