package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"rdbackup/src/manifest"
)

func TestHumanSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{5, "5"},
		{1023, "1023"},
		{1024, "1.0K"},
		{1536, "1.5K"},
		{1537, "1.6K"},
		{10 * 1024, "10K"},
		{10*1024 - 1, "10K"},
		{1023*1024 + 1, "1.0M"},
		{1288490188, "1.2G"},
		{5 << 40, "5.0T"},
	}
	for _, c := range cases {
		if got := manifest.HumanSize(c.in); got != c.want {
			t.Errorf("HumanSize(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMeasureAudio(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, size int) {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("000001_001.wav", 1000)
	write("000002_001.wav", 2000)
	write(".hidden", 500)
	write("sub/nested.wav", 100)

	u, err := manifest.MeasureAudio(dir)
	if err != nil {
		t.Fatal(err)
	}
	if u.Entries != 3 {
		t.Fatalf("entries = %d, want 3 (hidden files excluded)", u.Entries)
	}
	if u.Bytes != 3600 {
		t.Fatalf("bytes = %d, want 3600", u.Bytes)
	}
	if u.Human() != "3.6K" {
		t.Fatalf("human = %q", u.Human())
	}
}

func TestMeasureAudio_MissingDir(t *testing.T) {
	if _, err := manifest.MeasureAudio(filepath.Join(t.TempDir(), "snd")); err == nil {
		t.Fatal("expected error")
	}
}
