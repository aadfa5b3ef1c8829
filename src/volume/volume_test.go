package volume_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rdbackup/src/logging"
	"rdbackup/src/runner/runnertest"
	"rdbackup/src/volume"
)

func newMounter(f *runnertest.Fake, slept *[]time.Duration) *volume.Mounter {
	return &volume.Mounter{
		Runner:      f,
		SettleDelay: 5 * time.Second,
		Log:         logging.Discard(),
		Sleep: func(ctx context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestAcquire_FreshMount(t *testing.T) {
	mnt := filepath.Join(t.TempDir(), "media", "backup1")
	f := runnertest.New()
	var slept []time.Duration
	m := newMounter(f, &slept)

	lease, err := m.Acquire(context.Background(), mnt)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if lease.State != volume.Mounted {
		t.Fatalf("state = %v, want mounted", lease.State)
	}
	if fi, err := os.Stat(mnt); err != nil || !fi.IsDir() {
		t.Fatalf("mount point not created: %v", err)
	}
	if len(slept) != 1 || slept[0] != 5*time.Second {
		t.Fatalf("settle delay not applied: %v", slept)
	}

	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(mnt); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("mount point not removed: %v", err)
	}
	want := []string{"mount " + mnt, "umount " + mnt}
	got := f.Lines()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	// Second release is a no-op.
	if err := lease.Release(context.Background()); err != nil || len(f.Lines()) != 2 {
		t.Fatalf("second release should do nothing: %v %v", err, f.Lines())
	}
}

func TestAcquire_AlreadyMounted(t *testing.T) {
	mnt := filepath.Join(t.TempDir(), "backup1")
	f := runnertest.New().On("mount ", runnertest.Response{ExitCode: volume.ExitAlreadyMounted})
	var slept []time.Duration
	lease, err := newMounter(f, &slept).Acquire(context.Background(), mnt)
	if err != nil {
		t.Fatalf("exit 32 must be success: %v", err)
	}
	if lease.State != volume.AlreadyMounted {
		t.Fatalf("state = %v", lease.State)
	}
	if len(slept) != 1 {
		t.Fatalf("settle delay not applied")
	}
}

func TestAcquire_NotFound(t *testing.T) {
	for _, code := range []int{1, 2, 64} {
		mnt := filepath.Join(t.TempDir(), "backup2")
		f := runnertest.New().On("mount ", runnertest.Response{ExitCode: code, Stderr: "can't find in /etc/fstab"})
		var slept []time.Duration
		lease, err := newMounter(f, &slept).Acquire(context.Background(), mnt)
		if lease != nil {
			t.Fatalf("code %d: expected no lease", code)
		}
		var nf *volume.NotFoundError
		if !errors.As(err, &nf) || nf.Path != mnt {
			t.Fatalf("code %d: expected NotFoundError, got %v", code, err)
		}
		if len(slept) != 0 {
			t.Fatalf("code %d: settle must not run after failure", code)
		}
		if _, err := os.Stat(mnt); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("code %d: mount point should be removed after failure", code)
		}
		if f.Called("umount") {
			t.Fatalf("code %d: umount must not run for a failed mount", code)
		}
	}
}

func TestAcquire_StartFailureIsNotFound(t *testing.T) {
	mnt := filepath.Join(t.TempDir(), "backup3")
	f := runnertest.New().On("mount ", runnertest.Response{Err: errors.New("exec: mount: not found")})
	var slept []time.Duration
	_, err := newMounter(f, &slept).Acquire(context.Background(), mnt)
	var nf *volume.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRelease_UnmountFailureLeavesDirectory(t *testing.T) {
	mnt := filepath.Join(t.TempDir(), "backup1")
	f := runnertest.New().On("umount ", runnertest.Response{ExitCode: 32, Stderr: "target is busy"})
	var slept []time.Duration
	lease, err := newMounter(f, &slept).Acquire(context.Background(), mnt)
	if err != nil {
		t.Fatal(err)
	}
	err = lease.Release(context.Background())
	var re *volume.ResidualError
	if !errors.As(err, &re) || re.Path != mnt {
		t.Fatalf("expected ResidualError, got %v", err)
	}
	if _, err := os.Stat(mnt); err != nil {
		t.Fatalf("directory should remain after failed unmount: %v", err)
	}
}

func TestAcquire_InterruptedSettleReleases(t *testing.T) {
	mnt := filepath.Join(t.TempDir(), "backup1")
	f := runnertest.New()
	m := &volume.Mounter{
		Runner:      f,
		SettleDelay: time.Second,
		Log:         logging.Discard(),
		Sleep:       func(ctx context.Context, d time.Duration) error { return context.Canceled },
	}
	if _, err := m.Acquire(context.Background(), mnt); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !f.Called("umount") {
		t.Fatal("volume must be released when settle is interrupted")
	}
}

func TestMounter_DefaultSleepHonoursContext(t *testing.T) {
	mnt := filepath.Join(t.TempDir(), "backup1")
	m := &volume.Mounter{Runner: runnertest.New(), SettleDelay: time.Hour, Log: logging.Discard()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Acquire(ctx, mnt); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
