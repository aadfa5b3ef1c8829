package cli

import (
	"io"

	"github.com/spf13/cobra"

	"rdbackup/src/target"
)

func newCreateCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "create MOUNTPOINT...",
		Short: "Write a backup set to each volume",
		Long: "Mount each volume in turn, dump the Rivendell database to it, mirror the\n" +
			"audio store onto it and record a manifest. Volumes that cannot be mounted\n" +
			"are reported and skipped.",
		Args: withUsage(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := target.ParseAll(args)
			if err != nil {
				return err
			}
			s, err := newSession(cmd, stdout, stderr, "mount", "umount", "mysqldump", "rsync")
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.lock(); err != nil {
				return err
			}
			if err := s.openFacts(); err != nil {
				return err
			}
			r := s.orch.Create(cmd.Context(), target.Paths(targets))
			return finish(r, true)
		},
	}
}
