package cli

import (
	"io"

	"github.com/spf13/cobra"

	"rdbackup/src/config"
	"rdbackup/src/safety"
	"rdbackup/src/target"
)

func newRestoreCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts safety.Options
	cmd := &cobra.Command{
		Use:   "restore [--yes] MOUNTPOINT",
		Short: "Replace the live database and audio store with a volume's backup set",
		Long: "Mount the volume, show its manifest and ask for confirmation, then stop\n" +
			"the Rivendell service, load the database dump, mirror the audio store back\n" +
			"and restart the service.",
		Args: withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := target.Parse(args[0])
			if err != nil {
				return err
			}
			settings, _ := getSettings(cmd)
			tools := []string{"mount", "umount", "mysql", "rsync"}
			if settings.ServiceControl == config.ServiceControlSystemctl {
				tools = append(tools, "systemctl")
			}
			s, err := newSession(cmd, stdout, stderr, tools...)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.lock(); err != nil {
				return err
			}
			r := s.orch.Restore(cmd.Context(), t.Path, opts.Yes)
			return finish(r, true)
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Restore without asking for confirmation")
	return cmd
}
