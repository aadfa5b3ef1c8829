package manifest

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Usage summarises an audio tree for the manifest.
type Usage struct {
	Bytes   int64
	Entries int
}

// Human formats Bytes the way du -h does.
func (u Usage) Human() string {
	return HumanSize(u.Bytes)
}

// MeasureAudio sums the apparent size of every regular file under dir and
// counts its visible top-level entries (the equivalent of ls -1 | wc -l).
func MeasureAudio(dir string) (Usage, error) {
	var u Usage
	entries, err := os.ReadDir(dir)
	if err != nil {
		return u, fmt.Errorf("measure audio: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			u.Entries++
		}
	}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		u.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return u, fmt.Errorf("measure audio: %w", err)
	}
	return u, nil
}

const sizeUnits = "KMGTPE"

// HumanSize renders n bytes with a 1024 base and a single-letter suffix,
// rounding up: one decimal below 10, whole numbers above.
func HumanSize(n int64) string {
	if n < 1024 {
		return strconv.FormatInt(n, 10)
	}
	v := float64(n)
	i := -1
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	if v < 10 {
		c := math.Ceil(v*10) / 10
		if c < 10 {
			return fmt.Sprintf("%.1f%c", c, sizeUnits[i])
		}
		v = c
	}
	c := math.Ceil(v)
	if c >= 1024 && i < len(sizeUnits)-1 {
		return fmt.Sprintf("1.0%c", sizeUnits[i+1])
	}
	return fmt.Sprintf("%.0f%c", c, sizeUnits[i])
}
