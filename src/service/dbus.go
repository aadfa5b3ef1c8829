package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	systemdDest     = "org.freedesktop.systemd1"
	systemdPath     = dbus.ObjectPath("/org/freedesktop/systemd1")
	managerIface    = "org.freedesktop.systemd1.Manager"
	jobRemovedField = managerIface + ".JobRemoved"
)

// DBus controls units by talking to systemd on the system bus and waits
// for the queued job to finish.
type DBus struct {
	// Connect defaults to dbus.ConnectSystemBus.
	Connect func() (*dbus.Conn, error)
}

func (d *DBus) Stop(ctx context.Context, unit string) error {
	return d.job(ctx, "StopUnit", "stop", unit)
}

func (d *DBus) Restart(ctx context.Context, unit string) error {
	return d.job(ctx, "RestartUnit", "restart", unit)
}

func (d *DBus) job(ctx context.Context, method, action, unit string) error {
	connect := d.Connect
	if connect == nil {
		connect = func() (*dbus.Conn, error) { return dbus.ConnectSystemBus() }
	}
	conn, err := connect()
	if err != nil {
		return &Error{Action: action, Unit: unit, Err: fmt.Errorf("system bus: %w", err)}
	}
	defer conn.Close()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(systemdPath),
		dbus.WithMatchInterface(managerIface),
		dbus.WithMatchMember("JobRemoved"),
	); err != nil {
		return &Error{Action: action, Unit: unit, Err: err}
	}
	sigCh := make(chan *dbus.Signal, 64)
	conn.Signal(sigCh)
	defer conn.RemoveSignal(sigCh)

	obj := conn.Object(systemdDest, systemdPath)
	if call := obj.CallWithContext(ctx, managerIface+".Subscribe", 0); call.Err != nil {
		return &Error{Action: action, Unit: unit, Err: call.Err}
	}

	var job dbus.ObjectPath
	if err := obj.CallWithContext(ctx, managerIface+"."+method, 0, unitName(unit), "replace").Store(&job); err != nil {
		return &Error{Action: action, Unit: unit, Err: err}
	}
	if err := waitJob(ctx, sigCh, job); err != nil {
		return &Error{Action: action, Unit: unit, Err: err}
	}
	return nil
}

// waitJob blocks until systemd reports job as removed and returns an error
// unless its result is "done".
func waitJob(ctx context.Context, sigCh <-chan *dbus.Signal, job dbus.ObjectPath) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-sigCh:
			if !ok {
				return errors.New("system bus connection closed")
			}
			if sig == nil || sig.Name != jobRemovedField || len(sig.Body) < 4 {
				continue
			}
			path, _ := sig.Body[1].(dbus.ObjectPath)
			if path != job {
				continue
			}
			result, _ := sig.Body[3].(string)
			if result != "done" {
				return fmt.Errorf("job %s finished with result %q", job, result)
			}
			return nil
		}
	}
}

// unitName adds the .service suffix systemctl would assume.
func unitName(unit string) string {
	if strings.Contains(unit, ".") {
		return unit
	}
	return unit + ".service"
}
