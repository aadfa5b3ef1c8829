package cli

import (
	"io"

	"github.com/spf13/cobra"

	"rdbackup/src/target"
)

func newInspectCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect MOUNTPOINT...",
		Short: "Show the manifest of each volume",
		Args:  withUsage(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := target.ParseAll(args)
			if err != nil {
				return err
			}
			s, err := newSession(cmd, stdout, stderr, "mount", "umount")
			if err != nil {
				return err
			}
			defer s.Close()
			r := s.orch.Inspect(cmd.Context(), target.Paths(targets))
			return finish(r, false)
		},
	}
}
