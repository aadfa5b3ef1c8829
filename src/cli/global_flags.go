package cli

import (
	"github.com/spf13/cobra"

	"rdbackup/src/config"
)

// addGlobalFlags adds the persistent flags shared by every subcommand.
func addGlobalFlags(cmd *cobra.Command) {
	d := config.DefaultSettings()
	f := cmd.PersistentFlags()
	f.String("config", config.DefaultPath, "Rivendell configuration file")
	f.String("audio-root", d.AudioRoot, "Live audio store")
	f.Duration("settle-delay", d.SettleDelay, "Wait after mounting a volume before using it")
	f.String("service", d.ServiceUnit, "Rivendell systemd unit stopped during restore")
	f.String("service-control", d.ServiceControl, "How to control the service: systemctl or dbus")
	f.String("lock-file", d.LockFile, "Lock file preventing concurrent backup and restore runs")
	f.BoolP("verbose", "v", false, "Log debug output, including rsync transfers")
}

// getSettings reads the global flags into config.Settings and returns the
// configuration file path alongside.
func getSettings(cmd *cobra.Command) (config.Settings, string) {
	f := cmd.Root().PersistentFlags()
	path, _ := f.GetString("config")
	var s config.Settings
	s.AudioRoot, _ = f.GetString("audio-root")
	s.SettleDelay, _ = f.GetDuration("settle-delay")
	s.ServiceUnit, _ = f.GetString("service")
	s.ServiceControl, _ = f.GetString("service-control")
	s.LockFile, _ = f.GetString("lock-file")
	s.Verbose, _ = f.GetBool("verbose")
	return s, path
}
