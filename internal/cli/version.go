package cli

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/mesh-intelligence/nitrate"

func newVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nitrate version",
		Args:  noArgs,
		// No config directory is needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := map[string]string{
				"version": Version,
				"module":  modulePath,
				"go":      goruntime.Version(),
			}
			if e.flags.jsonMode {
				e.out = newPrinter(cmd, true)
				return e.out.Value(info, nil)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "nitrate %s\nmodule: %s\ngo: %s\n", Version, modulePath, goruntime.Version())
			return nil
		},
	}
}
