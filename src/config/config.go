// Package config loads the host-wide Rivendell configuration (rd.conf) and
// the runtime settings of the backup tool.
package config

import (
	"errors"
	"fmt"
	"log/syslog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-ini/ini"
)

// DefaultPath is where Rivendell keeps its configuration.
const DefaultPath = "/etc/rd.conf"

// MySQL holds the control database connection parameters.
type MySQL struct {
	Hostname  string
	Loginname string
	Password  string
	Database  string
}

// Config is the subset of rd.conf the backup tool needs.
type Config struct {
	Path           string
	MySQL          MySQL
	SyslogFacility syslog.Priority
}

// Error reports a missing or unusable configuration file or key.
type Error struct {
	Path    string
	Section string
	Key     string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("config %s: [%s] %s: %v", e.Path, e.Section, e.Key, e.Err)
	case e.Section != "":
		return fmt.Sprintf("config %s: [%s]: %v", e.Path, e.Section, e.Err)
	default:
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ErrMissing marks a required key that is absent or empty.
var ErrMissing = errors.New("required value missing")

var requiredMySQLKeys = []string{"Hostname", "Loginname", "Password", "Database"}

// Load reads and validates rd.conf at path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	f, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:     true,
		IgnoreInlineComment: true,
		AllowBooleanKeys:    true,
	}, path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return parse(path, f)
}

// Parse reads rd.conf content from memory; path is only used in errors.
func Parse(path string, data []byte) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:     true,
		IgnoreInlineComment: true,
		AllowBooleanKeys:    true,
	}, data)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return parse(path, f)
}

func parse(path string, f *ini.File) (*Config, error) {
	sec, err := f.GetSection("mySQL")
	if err != nil {
		return nil, &Error{Path: path, Section: "mySQL", Err: ErrMissing}
	}
	values := make(map[string]string, len(requiredMySQLKeys))
	for _, k := range requiredMySQLKeys {
		if !sec.HasKey(k) || strings.TrimSpace(sec.Key(k).String()) == "" {
			return nil, &Error{Path: path, Section: "mySQL", Key: k, Err: ErrMissing}
		}
		values[k] = strings.TrimSpace(sec.Key(k).String())
	}
	cfg := &Config{
		Path: path,
		MySQL: MySQL{
			Hostname:  values["Hostname"],
			Loginname: values["Loginname"],
			Password:  values["Password"],
			Database:  values["Database"],
		},
		SyslogFacility: syslog.LOG_USER,
	}

	if id, err := f.GetSection("Identity"); err == nil && id.HasKey("SyslogFacility") {
		raw := strings.TrimSpace(id.Key("SyslogFacility").String())
		if raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return nil, &Error{Path: path, Section: "Identity", Key: "SyslogFacility", Err: fmt.Errorf("not a facility number: %q", raw)}
			}
			cfg.SyslogFacility = syslog.Priority(n)
		}
	}
	return cfg, nil
}

// Service control backends.
const (
	ServiceControlSystemctl = "systemctl"
	ServiceControlDBus      = "dbus"
)

// Settings are the runtime knobs supplied on the command line.
type Settings struct {
	AudioRoot      string
	SettleDelay    time.Duration
	ServiceUnit    string
	ServiceControl string
	LockFile       string
	Verbose        bool
}

// DefaultSettings mirrors a stock Rivendell host.
func DefaultSettings() Settings {
	return Settings{
		AudioRoot:      "/var/snd",
		SettleDelay:    5 * time.Second,
		ServiceUnit:    "rivendell",
		ServiceControl: ServiceControlSystemctl,
		LockFile:       "/run/lock/rdbackup.lock",
	}
}

// Validate checks settings that cannot be caught by flag parsing.
func (s Settings) Validate() error {
	if s.AudioRoot == "" || !strings.HasPrefix(s.AudioRoot, "/") {
		return fmt.Errorf("audio root must be an absolute path: %q", s.AudioRoot)
	}
	if s.SettleDelay < 0 {
		return fmt.Errorf("settle delay must not be negative: %s", s.SettleDelay)
	}
	if s.ServiceUnit == "" {
		return errors.New("service unit must not be empty")
	}
	switch s.ServiceControl {
	case ServiceControlSystemctl, ServiceControlDBus:
	default:
		return fmt.Errorf("unsupported service control %q (want %s or %s)", s.ServiceControl, ServiceControlSystemctl, ServiceControlDBus)
	}
	return nil
}
