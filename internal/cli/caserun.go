package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nitrate/internal/printer"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func newCaseRunCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caserun",
		Short: "Record case-run results",
	}
	cmd.AddCommand(newCaseRunStatusCmd(e))
	return cmd
}

func newCaseRunStatusCmd(e *env) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "status <caserun-id> <status>",
		Short: "Set a case-run status",
		Long: "Set a case-run status and record the acting user as its tester.\n" +
			"Statuses: " + strings.Join(types.CaseRunStatuses, ", "),
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				actor, err := e.actor(rt.svc)
				if err != nil {
					return err
				}
				status := strings.ToUpper(args[1])
				cr, err := rt.svc.UpdateCaseRunStatus(cmd.Context(), args[0], status, actor.UserID)
				if err != nil {
					return classify(err)
				}
				if notes != "" {
					if cr, err = rt.svc.UpdateCaseRunNotes(cmd.Context(), cr.CaseRunID, notes); err != nil {
						return classify(err)
					}
				}
				e.out.Success("case-run %s is %s", cr.CaseRunID, printer.Status(cr.Status))
				return e.out.Value(cr, func() {})
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "replace the case-run notes")
	return cmd
}
