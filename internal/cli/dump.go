package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var errRestoreUnconfirmed = errors.New("restore replaces all data; pass --yes to confirm")

func newDumpCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <dir>",
		Short: "Write every table as JSONL files",
		Long:  "Write one <table>.jsonl file per table into dir, for backups and version control.",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				if err := rt.backend.Dump(args[0]); err != nil {
					return sysError{err}
				}
				e.out.Success("dumped %s to %s", e.dirs.Data, args[0])
				return nil
			})
		},
	}
}

func newRestoreCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore <dir>",
		Short: "Replace the database with a JSONL dump",
		Long:  "Replace every table with the <table>.jsonl files in dir. Existing rows are lost.",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if !yes {
				return usageError{errRestoreUnconfirmed}
			}
			return e.withService(func(rt *runtime) error {
				e.out.Step("restoring %s from %s", e.dirs.Data, args[0])
				if err := rt.backend.Restore(args[0]); err != nil {
					return classify(err)
				}
				e.out.Success("restored %s", e.dirs.Data)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm that existing data is replaced")
	return cmd
}
