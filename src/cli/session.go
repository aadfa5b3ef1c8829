package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rdbackup/src/backupset"
	"rdbackup/src/config"
	"rdbackup/src/database"
	"rdbackup/src/lock"
	"rdbackup/src/logging"
	"rdbackup/src/mediasync"
	"rdbackup/src/runner"
	"rdbackup/src/service"
	"rdbackup/src/volume"
)

// Swapped in tests.
var (
	newRunner     = func() runner.Runner { return runner.Exec{} }
	requireTools  = runner.Require
	syslogEnabled = true
)

// session holds everything one command invocation needs.
type session struct {
	cfg      *config.Config
	settings config.Settings
	log      *logrus.Logger
	orch     *backupset.Orchestrator

	closers []func()
}

// newSession loads rd.conf and wires the orchestrator. Nothing on the
// system is touched until every check here has passed.
func newSession(cmd *cobra.Command, stdout, stderr io.Writer, tools ...string) (*session, error) {
	settings, path := getSettings(cmd)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log := logging.New(logging.Options{
		Tag:      "rdbackup",
		Facility: cfg.SyslogFacility,
		Verbose:  settings.Verbose,
		Output:   stderr,
		NoSyslog: !syslogEnabled,
	})
	if err := requireTools(tools...); err != nil {
		return nil, err
	}

	r := newRunner()
	ctrl, err := service.New(settings.ServiceControl, r)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, settings: settings, log: log}
	s.orch = &backupset.Orchestrator{
		Mounter: backupset.VolumeMounter{M: &volume.Mounter{
			Runner:      r,
			SettleDelay: settings.SettleDelay,
			Log:         log,
		}},
		Database: &database.Transfer{Runner: r, MySQL: cfg.MySQL, Log: log},
		Media:    &mediasync.Syncer{Runner: r, Log: log, Verbose: settings.Verbose},
		Service:  ctrl,
		Settings: settings,
		Log:      log,
		Out:      stdout,
		In:       cmd.InOrStdin(),
	}
	return s, nil
}

// openFacts connects the realm and schema queries used by create.
func (s *session) openFacts() error {
	in, err := database.Open(s.cfg.MySQL)
	if err != nil {
		return err
	}
	s.orch.Facts = in
	s.closers = append(s.closers, func() { _ = in.Close() })
	return nil
}

// lock takes the run lock for commands that modify volumes or the live
// system.
func (s *session) lock() error {
	l, err := lock.Acquire(s.settings.LockFile)
	if err != nil {
		return err
	}
	s.log.Debugf("holding run lock %s", s.settings.LockFile)
	s.closers = append(s.closers, func() {
		if err := l.Release(); err != nil {
			s.log.WithError(err).Warn("release run lock")
		}
	})
	return nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// finish turns a report into the command result.
func finish(r backupset.Report, strict bool) error {
	err := r.Err(strict)
	if err == nil {
		return nil
	}
	n := r.Count(backupset.StatusFailed)
	if strict {
		n += r.Count(backupset.StatusNotFound)
	}
	return &reportedError{err: fmt.Errorf("%d of %d volume(s) unsuccessful: %w", n, len(r.Outcomes), err)}
}
