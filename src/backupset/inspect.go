package backupset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"rdbackup/src/manifest"
	"rdbackup/src/volume"
)

// Inspect prints the manifest of every volume. It never touches the live
// database, the audio store or the service.
func (o *Orchestrator) Inspect(ctx context.Context, volumes []string) Report {
	var r Report
	for _, v := range volumes {
		if err := ctx.Err(); err != nil {
			r.add(v, err)
			continue
		}
		r.add(v, o.inspectOne(ctx, v))
	}
	return r
}

func (o *Orchestrator) inspectOne(ctx context.Context, v string) error {
	lease, err := o.mount(ctx, v)
	if err != nil {
		var nf *volume.NotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(o.Out, "%s: [error: %v]\n\n", v, err)
		}
		return err
	}
	defer o.release(ctx, v, lease)

	_, raw, err := manifest.Read(v)
	var ie *manifest.IncompleteError
	switch {
	case err == nil:
		fmt.Fprintf(o.Out, "%s:\n", v)
		writeRaw(o.Out, raw)
		fmt.Fprintln(o.Out)
	case errors.Is(err, manifest.ErrNotFound):
		fmt.Fprintf(o.Out, "%s:\n[no metadata found]\n\n", v)
	case errors.As(err, &ie):
		o.Log.WithError(err).Warnf("%s: manifest is incomplete", v)
		fmt.Fprintf(o.Out, "%s:\n", v)
		writeRaw(o.Out, raw)
		fmt.Fprint(o.Out, "[incomplete metadata]\n\n")
	default:
		fmt.Fprintf(o.Out, "%s:\n[unreadable metadata: %v]\n\n", v, err)
		return err
	}
	return nil
}

// writeRaw prints manifest content verbatim, terminating the last line.
func writeRaw(w io.Writer, raw []byte) {
	w.Write(raw)
	if len(raw) > 0 && !bytes.HasSuffix(raw, []byte("\n")) {
		io.WriteString(w, "\n")
	}
}
