package backupset

import (
	"context"
	"errors"
	"fmt"

	"rdbackup/src/manifest"
	"rdbackup/src/safety"
)

const warningHeader = `WARNING!
This operation will COMPLETELY OVERWRITE the existing
Rivendell data on this system, replacing it with the
`

// Restore replaces the live database and audio store with the backup set on
// volume. Unless confirmed is set the manifest is shown and the user must
// answer yes; any other answer releases the volume and returns a report with
// a declined outcome.
func (o *Orchestrator) Restore(ctx context.Context, volume string, confirmed bool) Report {
	var r Report
	out := r.add(volume, o.restoreOne(ctx, volume, confirmed))
	switch out.Status {
	case StatusOK:
		o.Log.Infof("Completed Rivendell restore from %q", volume)
	case StatusDeclined:
		o.Log.Infof("Rivendell restore from %q declined", volume)
	case StatusFailed:
		o.Log.WithError(out.Err).Errorf("Rivendell restore from %q failed", volume)
		fmt.Fprintf(o.Out, "%s: [restore failed: %v]\n\n", volume, out.Err)
	}
	return r
}

func (o *Orchestrator) restoreOne(ctx context.Context, v string, confirmed bool) error {
	lease, err := o.mount(ctx, v)
	if err != nil {
		return err
	}
	defer o.release(ctx, v, lease)

	if !confirmed {
		o.printWarning(v)
		ok, err := safety.Confirm(safety.Options{}, o.In, o.Out, "Are you sure you want to proceed?")
		if err != nil {
			return fmt.Errorf("read confirmation: %w", err)
		}
		if !ok {
			return ErrDeclined
		}
	}
	if err := checkPayload(v); err != nil {
		return err
	}

	o.Log.Infof("Starting Rivendell restore from %q", v)
	unit := o.Settings.ServiceUnit
	if err := o.Service.Stop(ctx, unit); err != nil {
		return err
	}

	var errs []error
	if err := o.Database.Load(ctx, dumpPath(v)); err != nil {
		errs = append(errs, err)
	} else if err := o.Media.Mirror(ctx, audioPath(v), o.Settings.AudioRoot); err != nil {
		errs = append(errs, err)
	}
	// The service comes back whatever happened to the data.
	if err := o.Service.Restart(context.WithoutCancel(ctx), unit); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) printWarning(v string) {
	_, raw, err := manifest.Read(v)
	if err != nil {
		if !errors.Is(err, manifest.ErrNotFound) {
			o.Log.WithError(err).Warnf("%s: ignoring unusable manifest", v)
		}
		fmt.Fprint(o.Out, warningHeader)
		fmt.Fprint(o.Out, "contents of the specified data backup. This operation\ncannot be undone!\n\n")
		return
	}
	fmt.Fprint(o.Out, warningHeader)
	fmt.Fprint(o.Out, "contents of the following data backup:\n\n")
	writeRaw(o.Out, raw)
	fmt.Fprint(o.Out, "This operation cannot be undone!\n\n")
}
