// Package backupset creates, inspects and restores Rivendell backup sets on
// removable volumes. Every volume is processed on its own: it is mounted,
// worked on and released before the next one starts, and a failure on one
// volume never stops the rest of a batch.
package backupset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"rdbackup/src/config"
	"rdbackup/src/database"
	"rdbackup/src/manifest"
	"rdbackup/src/service"
	"rdbackup/src/volume"
)

// Layout of a backup volume.
const (
	DumpFile = "db.sql.gz"
	AudioDir = "snd"
)

// ErrDeclined is returned when the user does not confirm a restore.
var ErrDeclined = errors.New("restore declined")

// Releaser gives a mounted volume back.
type Releaser interface {
	Release(ctx context.Context) error
}

// Mounter acquires volumes by mount point.
type Mounter interface {
	Acquire(ctx context.Context, path string) (Releaser, error)
}

// Database moves the control database to and from dump files.
type Database interface {
	Dump(ctx context.Context, dest string) error
	Load(ctx context.Context, src string) error
}

// Facts reads what the manifest records about the live database.
type Facts interface {
	RealmName(ctx context.Context) (string, error)
	SchemaVersion(ctx context.Context) (int, error)
}

// Mirrorer makes one directory tree identical to another.
type Mirrorer interface {
	Mirror(ctx context.Context, source, destination string) error
}

// Orchestrator runs the backup set operations.
type Orchestrator struct {
	Mounter  Mounter
	Database Database
	Facts    Facts
	Media    Mirrorer
	Service  service.Controller
	Settings config.Settings
	Log      logrus.FieldLogger

	// Out receives the user-facing report, In the confirmation answer.
	Out io.Writer
	In  io.Reader

	Now     func() time.Time
	Measure func(dir string) (manifest.Usage, error)
}

// VolumeMounter adapts *volume.Mounter to Mounter.
type VolumeMounter struct {
	M *volume.Mounter
}

func (v VolumeMounter) Acquire(ctx context.Context, path string) (Releaser, error) {
	lease, err := v.M.Acquire(ctx, path)
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// Status is the outcome of one volume.
type Status string

const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not-found"
	StatusFailed   Status = "failed"
	StatusDeclined Status = "declined"
)

// Outcome records what happened to one volume.
type Outcome struct {
	Volume string
	Status Status
	Err    error
}

// Report lists the outcome of every volume in a batch, in order.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) add(volume string, err error) Outcome {
	o := Outcome{Volume: volume, Status: classify(err), Err: err}
	r.Outcomes = append(r.Outcomes, o)
	return o
}

// Count returns the number of outcomes with status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Err summarises unsuccessful volumes. Declined restores are not errors;
// not-found volumes count only when strict is set.
func (r Report) Err(strict bool) error {
	var errs []error
	for _, o := range r.Outcomes {
		switch {
		case o.Status == StatusFailed:
			errs = append(errs, fmt.Errorf("%s: %w", o.Volume, o.Err))
		case o.Status == StatusNotFound && strict:
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

func classify(err error) Status {
	var nf *volume.NotFoundError
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &nf):
		return StatusNotFound
	case errors.Is(err, ErrDeclined):
		return StatusDeclined
	default:
		return StatusFailed
	}
}

// mount acquires path and reports a missing volume the way every operation
// does: an error log entry and a "[not found]" line.
func (o *Orchestrator) mount(ctx context.Context, path string) (Releaser, error) {
	lease, err := o.Mounter.Acquire(ctx, path)
	if err != nil {
		var nf *volume.NotFoundError
		if errors.As(err, &nf) {
			o.Log.WithError(err).Errorf("unable to mount backup drive %q", path)
			fmt.Fprintf(o.Out, "%s: [not found]\n\n", path)
		}
		return nil, err
	}
	return lease, nil
}

// release unmounts a volume; it runs even after cancellation and only
// warns on failure.
func (o *Orchestrator) release(ctx context.Context, path string, lease Releaser) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		var re *volume.ResidualError
		if errors.As(err, &re) {
			o.Log.WithError(err).Warnf("mount point %s left behind", path)
			return
		}
		o.Log.WithError(err).Warnf("release of %s failed", path)
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) measure(dir string) (manifest.Usage, error) {
	if o.Measure != nil {
		return o.Measure(dir)
	}
	return manifest.MeasureAudio(dir)
}

func audioPath(mountpoint string) string {
	return filepath.Join(mountpoint, AudioDir)
}

func dumpPath(mountpoint string) string {
	return filepath.Join(mountpoint, DumpFile)
}

// checkPayload verifies that a volume holds a backup set to restore from.
func checkPayload(mountpoint string) error {
	fi, err := os.Stat(dumpPath(mountpoint))
	if err != nil {
		return fmt.Errorf("database dump: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("database dump %s is not a regular file", dumpPath(mountpoint))
	}
	if err := database.CheckDump(dumpPath(mountpoint)); err != nil {
		return fmt.Errorf("database dump: %w", err)
	}
	fi, err = os.Stat(audioPath(mountpoint))
	if err != nil {
		return fmt.Errorf("audio store: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("audio store %s is not a directory", audioPath(mountpoint))
	}
	return nil
}
