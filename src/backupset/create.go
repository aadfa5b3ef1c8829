package backupset

import (
	"context"
	"fmt"
	"time"

	"rdbackup/src/manifest"
)

// Create writes a fresh backup set to every volume: database dump, audio
// mirror and finally the manifest. A manifest is only written once both
// transfers succeeded.
func (o *Orchestrator) Create(ctx context.Context, volumes []string) Report {
	var r Report
	for _, v := range volumes {
		if err := ctx.Err(); err != nil {
			r.add(v, err)
			continue
		}
		o.Log.Infof("Starting Rivendell backup to %q", v)
		out := r.add(v, o.createOne(ctx, v))
		switch out.Status {
		case StatusOK:
			o.Log.Infof("Completed Rivendell backup to %q", v)
		case StatusFailed:
			o.Log.WithError(out.Err).Errorf("Rivendell backup to %q failed", v)
			fmt.Fprintf(o.Out, "%s: [backup failed: %v]\n\n", v, out.Err)
		}
	}
	return r
}

func (o *Orchestrator) createOne(ctx context.Context, v string) error {
	lease, err := o.mount(ctx, v)
	if err != nil {
		return err
	}
	defer o.release(ctx, v, lease)

	// The volume stops describing a complete set as soon as it is modified.
	if err := manifest.Remove(v); err != nil {
		return fmt.Errorf("remove old manifest: %w", err)
	}
	// Query the live database first so an unreachable server fails the
	// volume before anything is transferred.
	m, err := o.facts(ctx, v)
	if err != nil {
		return err
	}
	if err := o.Database.Dump(ctx, dumpPath(v)); err != nil {
		return err
	}
	if err := o.Media.Mirror(ctx, o.Settings.AudioRoot, audioPath(v)); err != nil {
		return err
	}
	usage, err := o.measure(audioPath(v))
	if err != nil {
		return err
	}
	m.DateTime = o.now().Truncate(time.Second)
	m.AudioStorage = usage.Human()
	m.AudioFiles = usage.Entries
	if err := manifest.Write(v, m); err != nil {
		return err
	}
	o.Log.Debugf("%s: manifest written (realm %s, schema %d, %s in %d files)", v, m.RealmName, m.DatabaseSchema, m.AudioStorage, m.AudioFiles)
	return nil
}

// facts fills the manifest fields read from the live database.
func (o *Orchestrator) facts(ctx context.Context, v string) (manifest.Manifest, error) {
	realm, err := o.Facts.RealmName(ctx)
	if err != nil {
		return manifest.Manifest{}, err
	}
	schema, err := o.Facts.SchemaVersion(ctx)
	if err != nil {
		return manifest.Manifest{}, err
	}
	return manifest.Manifest{Name: v, RealmName: realm, DatabaseSchema: schema}, nil
}
