package backupset_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"rdbackup/src/backupset"
	"rdbackup/src/config"
	"rdbackup/src/logging"
	"rdbackup/src/manifest"
	"rdbackup/src/volume"
)

// events records every collaborator call in order.
type events struct{ list []string }

func (e *events) add(format string, args ...interface{}) {
	e.list = append(e.list, fmt.Sprintf(format, args...))
}

func (e *events) has(prefix string) bool {
	for _, s := range e.list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

type fakeMounter struct {
	ev      *events
	missing map[string]bool
	// releaseErr is returned by every release.
	releaseErr error
}

type fakeLease struct {
	m    *fakeMounter
	path string
}

func (l *fakeLease) Release(ctx context.Context) error {
	l.m.ev.add("release %s", l.path)
	return l.m.releaseErr
}

func (m *fakeMounter) Acquire(ctx context.Context, path string) (backupset.Releaser, error) {
	if m.missing[path] {
		m.ev.add("mount-failed %s", path)
		return nil, &volume.NotFoundError{Path: path, Err: errors.New("exit status 1")}
	}
	m.ev.add("acquire %s", path)
	return &fakeLease{m: m, path: path}, nil
}

type fakeDB struct {
	ev      *events
	dumpErr error
	loadErr error
}

func (d *fakeDB) Dump(ctx context.Context, dest string) error {
	d.ev.add("dump %s", dest)
	if d.dumpErr != nil {
		return d.dumpErr
	}
	return os.WriteFile(dest, []byte("gz"), 0o600)
}

func (d *fakeDB) Load(ctx context.Context, src string) error {
	d.ev.add("load %s", src)
	return d.loadErr
}

type fakeFacts struct {
	realm  string
	schema int
	err    error
}

func (f fakeFacts) RealmName(context.Context) (string, error) { return f.realm, f.err }
func (f fakeFacts) SchemaVersion(context.Context) (int, error) { return f.schema, f.err }

type fakeMedia struct {
	ev  *events
	err error
}

func (m *fakeMedia) Mirror(ctx context.Context, src, dst string) error {
	m.ev.add("mirror %s -> %s", src, dst)
	if m.err != nil {
		return m.err
	}
	return os.MkdirAll(dst, 0o755)
}

type fakeService struct {
	ev         *events
	stopErr    error
	restartErr error
}

func (s *fakeService) Stop(ctx context.Context, unit string) error {
	s.ev.add("stop %s", unit)
	return s.stopErr
}

func (s *fakeService) Restart(ctx context.Context, unit string) error {
	s.ev.add("restart %s", unit)
	return s.restartErr
}

type harness struct {
	ev      *events
	mounter *fakeMounter
	db      *fakeDB
	media   *fakeMedia
	svc     *fakeService
	out     *bytes.Buffer
	orch    *backupset.Orchestrator
	root    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ev := &events{}
	h := &harness{
		ev:      ev,
		mounter: &fakeMounter{ev: ev, missing: map[string]bool{}},
		db:      &fakeDB{ev: ev},
		media:   &fakeMedia{ev: ev},
		svc:     &fakeService{ev: ev},
		out:     &bytes.Buffer{},
		root:    t.TempDir(),
	}
	settings := config.DefaultSettings()
	settings.AudioRoot = filepath.Join(h.root, "var", "snd")
	h.orch = &backupset.Orchestrator{
		Mounter:  h.mounter,
		Database: h.db,
		Facts:    fakeFacts{realm: "StudioA", schema: 301},
		Media:    h.media,
		Service:  h.svc,
		Settings: settings,
		Log:      logging.Discard(),
		Out:      h.out,
		In:       strings.NewReader(""),
		Now: func() time.Time {
			return time.Date(2026, 10, 18, 9, 15, 2, 500, time.FixedZone("", -4*3600))
		},
		Measure: func(dir string) (manifest.Usage, error) {
			return manifest.Usage{Bytes: 1288490188, Entries: 42}, nil
		},
	}
	return h
}

// volume returns a mount point path inside the test root, created as if the
// volume were mounted there.
func (h *harness) volume(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(h.root, name)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

// seed writes a complete backup set onto a volume.
func (h *harness) seed(t *testing.T, v string) manifest.Manifest {
	t.Helper()
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte("INSERT INTO `SYSTEM` VALUES (1);\n"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(v, backupset.DumpFile), gz.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(v, backupset.AudioDir), 0o755); err != nil {
		t.Fatal(err)
	}
	m := manifest.Manifest{
		Name:           v,
		DateTime:       time.Date(2026, 10, 1, 2, 0, 0, 0, time.UTC),
		RealmName:      "StudioA",
		DatabaseSchema: 301,
		AudioStorage:   "1.2G",
		AudioFiles:     42,
	}
	if err := manifest.Write(v, m); err != nil {
		t.Fatal(err)
	}
	return m
}
