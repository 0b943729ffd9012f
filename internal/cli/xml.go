package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import <plan-id> <file.xml>",
		Short: "Import test cases from a testopia XML document",
		Long: "Import the cases of a testopia 1.1 document into a plan. Every case is\n" +
			"validated first; if any fails, nothing is created.",
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return usageError{err}
			}
			defer f.Close()

			return e.withService(func(rt *runtime) error {
				e.out.Step("importing %s into plan %s", args[1], args[0])
				cases, err := rt.svc.ImportCasesXML(cmd.Context(), args[0], bufio.NewReader(f))
				if err != nil {
					return classify(err)
				}
				e.out.Success("imported %d cases", len(cases))
				return e.out.Value(cases, func() {})
			})
		},
	}
}

func newExportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export <plan-id> [file.xml]",
		Short: "Export a plan's cases as a testopia XML document",
		Long:  "Write the plan's cases in plan order to the file, or to stdout without one.",
		Args:  rangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				if len(args) == 1 {
					return classify(rt.svc.ExportCasesXML(cmd.OutOrStdout(), args[0]))
				}
				f, err := os.Create(args[1])
				if err != nil {
					return sysError{err}
				}
				w := bufio.NewWriter(f)
				if err := rt.svc.ExportCasesXML(w, args[0]); err != nil {
					f.Close()
					os.Remove(args[1])
					return classify(err)
				}
				if err := w.Flush(); err != nil {
					f.Close()
					return sysError{err}
				}
				if err := f.Close(); err != nil {
					return sysError{fmt.Errorf("closing %s: %w", args[1], err)}
				}
				e.out.Success("exported plan %s to %s", args[0], args[1])
				return nil
			})
		},
	}
}
