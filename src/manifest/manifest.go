// Package manifest reads and writes the INFO.txt descriptor stored at the
// root of every backup volume.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-ini/ini"
)

const (
	// FileName is the manifest file at the volume root.
	FileName = "INFO.txt"
	// Section is the single INI section header.
	Section = "Backup"
	// TimeLayout is ISO-8601 with a numeric UTC offset, as date --iso-8601=seconds.
	TimeLayout = "2006-01-02T15:04:05-07:00"
)

// Manifest describes one backup set.
type Manifest struct {
	Name           string
	DateTime       time.Time
	RealmName      string
	DatabaseSchema int
	AudioStorage   string
	AudioFiles     int
}

// ErrNotFound means the volume carries no manifest.
var ErrNotFound = errors.New("no metadata found")

// IncompleteError means a manifest file exists but is not fully populated.
type IncompleteError struct {
	Key string
	Err error
}

func (e *IncompleteError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("incomplete manifest: %v", e.Err)
	}
	return fmt.Sprintf("incomplete manifest: %s: %v", e.Key, e.Err)
}

func (e *IncompleteError) Unwrap() error { return e.Err }

var (
	errEmpty       = errors.New("missing or empty")
	errNotVerbatim = errors.New("value cannot be stored verbatim")
)

// Validate checks that every field is populated and can be written on a
// single line.
func (m Manifest) Validate() error {
	strs := []struct{ key, val string }{
		{"Name", m.Name},
		{"RealmName", m.RealmName},
		{"AudioStorage", m.AudioStorage},
	}
	for _, s := range strs {
		if strings.TrimSpace(s.val) == "" {
			return &IncompleteError{Key: s.key, Err: errEmpty}
		}
		if strings.ContainsAny(s.val, "\r\n") {
			return &IncompleteError{Key: s.key, Err: errors.New("contains a line break")}
		}
	}
	if m.DateTime.IsZero() {
		return &IncompleteError{Key: "DateTime", Err: errEmpty}
	}
	if m.DatabaseSchema < 0 {
		return &IncompleteError{Key: "DatabaseSchema", Err: errors.New("negative")}
	}
	if m.AudioFiles < 0 {
		return &IncompleteError{Key: "AudioFiles", Err: errors.New("negative")}
	}
	return m.checkVerbatim(strs)
}

// checkVerbatim makes sure every text field reads back unchanged, so a
// manifest that was written is never reported incomplete later.
func (m Manifest) checkVerbatim(strs []struct{ key, val string }) error {
	back, err := decode(Encode(m))
	if err != nil {
		var ie *IncompleteError
		if errors.As(err, &ie) && ie.Key != "" {
			return &IncompleteError{Key: ie.Key, Err: errNotVerbatim}
		}
		return err
	}
	got := map[string]string{
		"Name":         back.Name,
		"RealmName":    back.RealmName,
		"AudioStorage": back.AudioStorage,
	}
	for _, s := range strs {
		if got[s.key] != s.val {
			return &IncompleteError{Key: s.key, Err: errNotVerbatim}
		}
	}
	return nil
}

// Encode renders m in the fixed key order.
func Encode(m Manifest) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s]\n", Section)
	fmt.Fprintf(&b, "Name=%s\n", m.Name)
	fmt.Fprintf(&b, "DateTime=%s\n", m.DateTime.Format(TimeLayout))
	fmt.Fprintf(&b, "RealmName=%s\n", m.RealmName)
	fmt.Fprintf(&b, "DatabaseSchema=%d\n", m.DatabaseSchema)
	fmt.Fprintf(&b, "AudioStorage=%s\n", m.AudioStorage)
	fmt.Fprintf(&b, "AudioFiles=%d\n", m.AudioFiles)
	return b.Bytes()
}

// loadOptions keep values verbatim: no quote stripping, no line
// continuation, no inline comments.
var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:     true,
	IgnoreContinuation:      true,
	PreserveSurroundedQuote: true,
}

// Decode parses manifest content. Any missing or malformed key yields an
// *IncompleteError.
func Decode(data []byte) (Manifest, error) {
	m, err := decode(data)
	if err != nil {
		return Manifest{}, err
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func decode(data []byte) (Manifest, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return Manifest{}, &IncompleteError{Err: err}
	}
	sec, err := f.GetSection(Section)
	if err != nil {
		return Manifest{}, &IncompleteError{Key: "[" + Section + "]", Err: errEmpty}
	}
	get := func(key string) (string, error) {
		if !sec.HasKey(key) {
			return "", &IncompleteError{Key: key, Err: errEmpty}
		}
		v := sec.Key(key).String()
		if v == "" {
			return "", &IncompleteError{Key: key, Err: errEmpty}
		}
		return v, nil
	}
	getInt := func(key string) (int, error) {
		v, err := get(key)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, &IncompleteError{Key: key, Err: err}
		}
		return n, nil
	}

	var m Manifest
	if m.Name, err = get("Name"); err != nil {
		return Manifest{}, err
	}
	ts, err := get("DateTime")
	if err != nil {
		return Manifest{}, err
	}
	if m.DateTime, err = time.Parse(time.RFC3339, ts); err != nil {
		return Manifest{}, &IncompleteError{Key: "DateTime", Err: err}
	}
	if m.RealmName, err = get("RealmName"); err != nil {
		return Manifest{}, err
	}
	if m.DatabaseSchema, err = getInt("DatabaseSchema"); err != nil {
		return Manifest{}, err
	}
	if m.AudioStorage, err = get("AudioStorage"); err != nil {
		return Manifest{}, err
	}
	if m.AudioFiles, err = getInt("AudioFiles"); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Path returns the manifest location on a volume.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Write replaces the manifest in dir. The file is written next to its final
// name and renamed so readers never see a partial manifest.
func Write(dir string, m Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	final := Path(dir)
	tmp := final + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if _, err := f.Write(Encode(m)); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("install manifest: %w", err)
	}
	return nil
}

// Read loads the manifest in dir. It returns ErrNotFound when there is none.
// The raw file content is returned for valid and incomplete manifests alike
// so callers can display it verbatim.
func Read(dir string) (Manifest, []byte, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, nil, ErrNotFound
		}
		return Manifest{}, nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Decode(data)
	if err != nil {
		return Manifest{}, data, err
	}
	return m, data, nil
}

// Remove deletes the manifest in dir, if any.
func Remove(dir string) error {
	if err := os.Remove(Path(dir)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
