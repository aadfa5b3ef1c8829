package logging

import (
	"log/syslog"

	"github.com/sirupsen/logrus"
)

// SetSyslogDial replaces the syslog constructor and returns a restore func.
func SetSyslogDial(fn func(syslog.Priority, string) (logrus.Hook, error)) func() {
	prev := syslogDial
	syslogDial = fn
	return func() { syslogDial = prev }
}
