package target

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Target is a backup volume named by its mount point.
type Target struct {
	// Raw is the original argument.
	Raw string
	// Path is the cleaned absolute mount point.
	Path string
}

// Parse validates a mount point argument. The path must be absolute and
// must not be the filesystem root, since the mount point directory is
// removed after use.
func Parse(raw string) (Target, error) {
	t := Target{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return t, fmt.Errorf("mount point must not be empty")
	}
	clean := filepath.Clean(s)
	if !filepath.IsAbs(clean) {
		return t, fmt.Errorf("mount point must be an absolute path: %q", raw)
	}
	if clean == "/" {
		return t, fmt.Errorf("mount point must not be the filesystem root")
	}
	t.Path = clean
	return t, nil
}

// ParseAll parses a batch of mount points, rejecting duplicates.
func ParseAll(raws []string) ([]Target, error) {
	seen := make(map[string]struct{}, len(raws))
	out := make([]Target, 0, len(raws))
	for _, r := range raws {
		t, err := Parse(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t.Path]; dup {
			return nil, fmt.Errorf("mount point given more than once: %s", t.Path)
		}
		seen[t.Path] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// Paths returns the cleaned paths of ts.
func Paths(ts []Target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Path
	}
	return out
}

func (t Target) String() string {
	if t.Path != "" {
		return t.Path
	}
	return t.Raw
}
