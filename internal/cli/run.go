package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nitrate/internal/printer"
	"github.com/mesh-intelligence/nitrate/internal/stats"
	"github.com/mesh-intelligence/nitrate/internal/tcms"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func newRunCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage test runs",
	}
	cmd.AddCommand(newRunCreateCmd(e), newRunListCmd(e), newRunShowCmd(e), newRunStatsCmd(e))
	return cmd
}

func newRunCreateCmd(e *env) *cobra.Command {
	var nr tcms.NewRun
	var build, manager, tester string
	cmd := &cobra.Command{
		Use:   "create <summary>",
		Short: "Create a test run of a plan",
		Long: "Create a test run against a build. Without --case, every CONFIRMED case\n" +
			"of the plan gets a case-run.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				actor, err := e.actor(rt.svc)
				if err != nil {
					return err
				}
				plan, err := rt.svc.GetPlan(nr.PlanID)
				if err != nil {
					return classify(err)
				}
				nr.Summary = args[0]
				if nr.BuildID, err = resolveBuild(rt.svc, plan.ProductID, build); err != nil {
					return err
				}
				nr.ManagerID = actor.UserID
				if manager != "" {
					if nr.ManagerID, err = optionalUser(rt.svc, manager); err != nil {
						return err
					}
				}
				if nr.DefaultTesterID, err = optionalUser(rt.svc, tester); err != nil {
					return err
				}

				run, err := rt.svc.CreateRun(cmd.Context(), nr)
				if err != nil {
					return classify(err)
				}
				caseRuns, err := rt.svc.RunCaseRuns(run.RunID)
				if err != nil {
					return classify(err)
				}
				e.out.Success("created run %s (%s) with %d case-runs", run.Summary, run.RunID, len(caseRuns))
				return e.out.Value(run, func() {})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&nr.PlanID, "plan", "", "plan ID (required)")
	f.StringVar(&build, "build", "", "build name or ID in the plan's product (required)")
	f.StringVar(&manager, "manager", "", "manager username (default: the acting user)")
	f.StringVar(&tester, "tester", "", "default tester username")
	f.StringVar(&nr.Notes, "notes", "", "notes")
	f.BoolVar(&nr.AutoUpdateRunStatus, "auto-finish", false, "finish the run when every case-run is complete")
	f.StringArrayVar(&nr.CaseIDs, "case", nil, "case ID to include (repeatable)")
	f.StringArrayVar(&nr.Tags, "tag", nil, "add a tag (repeatable)")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("build")
	return cmd
}

func newRunListCmd(e *env) *cobra.Command {
	var q types.RunQuery
	var running, finished bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search test runs",
		Args:  noArgs,
		RunE: func(*cobra.Command, []string) error {
			if running && finished {
				return usageError{fmt.Errorf("--running and --finished are exclusive")}
			}
			if running || finished {
				q.Running = &running
			}
			return e.withService(func(rt *runtime) error {
				runs, err := rt.svc.SearchRuns(q)
				if err != nil {
					return classify(err)
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{r.RunID, r.Summary, fmtDate(r.StartDate), fmtDatePtr(r.StopDate)})
				}
				return e.out.Table(runs, []string{"ID", "SUMMARY", "STARTED", "FINISHED"}, rows)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.PlanID, "plan", "", "only runs of this plan")
	f.StringVar(&q.Summary, "summary", "", "summary contains")
	f.BoolVar(&running, "running", false, "only unfinished runs")
	f.BoolVar(&finished, "finished", false, "only finished runs")
	f.IntVar(&q.Limit, "limit", 0, "maximum results (0 for no limit)")
	return cmd
}

// runDetail is everything run show prints.
type runDetail struct {
	*types.TestRun
	CaseRuns []*types.CaseRun `json:"case_runs"`
}

func newRunShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its case-runs",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				run, err := rt.svc.GetRun(args[0])
				if err != nil {
					return classify(err)
				}
				caseRuns, err := rt.svc.RunCaseRuns(run.RunID)
				if err != nil {
					return classify(err)
				}
				summaries := make(map[string]string, len(caseRuns))
				for _, cr := range caseRuns {
					if c, err := rt.svc.GetCase(cr.CaseID); err == nil {
						summaries[cr.CaseID] = c.Summary
					}
				}

				return e.out.Value(runDetail{TestRun: run, CaseRuns: caseRuns}, func() {
					_ = e.out.Fields(nil,
						"ID", run.RunID,
						"Summary", run.Summary,
						"Plan", run.PlanID,
						"Started", fmtDate(run.StartDate),
						"Finished", fmtDatePtr(run.StopDate),
					)
					fmt.Fprintln(e.out.Out)
					rows := make([][]string, 0, len(caseRuns))
					for _, cr := range caseRuns {
						rows = append(rows, []string{cr.CaseRunID, printer.Status(cr.Status), summaries[cr.CaseID]})
					}
					_ = e.out.Table(nil, []string{"CASE-RUN", "STATUS", "CASE"}, rows)
				})
			})
		},
	}
}

// runStatsDetail is the output of run stats.
type runStatsDetail struct {
	stats.Summary
	Assignees []stats.Progress `json:"assignees"`
}

func newRunStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <run-id>",
		Short: "Show status counts and completion of a run",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				summary, err := rt.svc.RunStats(args[0])
				if err != nil {
					return classify(err)
				}
				progress, err := rt.svc.RunAssigneeProgress(args[0])
				if err != nil {
					return classify(err)
				}

				return e.out.Value(runStatsDetail{Summary: summary, Assignees: progress}, func() {
					rows := make([][]string, 0, len(types.CaseRunStatuses))
					for _, s := range types.CaseRunStatuses {
						rows = append(rows, []string{
							printer.Status(s),
							strconv.Itoa(summary.Counts[s]),
							fmtPercent(summary.Percents[s]),
						})
					}
					_ = e.out.Table(nil, []string{"STATUS", "COUNT", "PERCENT"}, rows)
					fmt.Fprintln(e.out.Out)
					_ = e.out.Fields(nil,
						"Total", strconv.Itoa(summary.Total),
						"Complete", fmt.Sprintf("%d (%s)", summary.Complete, fmtPercent(summary.CompletePercent)),
						"Failed", fmt.Sprintf("%d (%s of complete)", summary.Failure, fmtPercent(summary.FailurePercentInComplete)),
					)
				})
			})
		},
	}
}
