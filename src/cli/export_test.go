package cli

import "rdbackup/src/runner"

// UseRunner replaces the external command runner and the PATH check, and
// keeps tests off the system log. The returned func restores the defaults.
func UseRunner(r runner.Runner) func() {
	prevRunner, prevRequire, prevSyslog := newRunner, requireTools, syslogEnabled
	newRunner = func() runner.Runner { return r }
	requireTools = func(...string) error { return nil }
	syslogEnabled = false
	return func() {
		newRunner, requireTools, syslogEnabled = prevRunner, prevRequire, prevSyslog
	}
}
