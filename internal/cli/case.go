package cli

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nitrate/internal/printer"
	"github.com/mesh-intelligence/nitrate/internal/tcms"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func newCaseCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Manage test cases",
	}
	cmd.AddCommand(newCaseCreateCmd(e), newCaseListCmd(e), newCaseShowCmd(e))
	return cmd
}

func newCaseCreateCmd(e *env) *cobra.Command {
	var nc tcms.NewCase
	var plan, category, tester string
	cmd := &cobra.Command{
		Use:     "create <summary>",
		Short:   "Create a test case in a plan",
		Example: `  nitrate case create "Boots to login" --plan <plan-id> --status CONFIRMED --action "Power on" --effect "Login prompt"`,
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				actor, err := e.actor(rt.svc)
				if err != nil {
					return err
				}
				p, err := rt.svc.GetPlan(plan)
				if err != nil {
					return classify(err)
				}
				cat, err := rt.svc.CategoryByName(p.ProductID, category)
				if err != nil {
					return classify(err)
				}
				nc.Summary = args[0]
				nc.CategoryID = cat.CategoryID
				nc.AuthorID = actor.UserID
				nc.PlanIDs = []string{p.PlanID}
				if nc.DefaultTesterID, err = optionalUser(rt.svc, tester); err != nil {
					return err
				}

				c, err := rt.svc.CreateCase(cmd.Context(), nc)
				if err != nil {
					return classify(err)
				}
				e.out.Success("created case %s (%s)", c.Summary, c.CaseID)
				return e.out.Value(c, func() {})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&plan, "plan", "", "plan ID (required)")
	f.StringVar(&category, "category", types.DefaultCategoryName, "category name in the plan's product")
	f.StringVar(&nc.Priority, "priority", "", "P1 to P5 (default P3)")
	f.StringVar(&nc.Status, "status", "", "PROPOSED, CONFIRMED, DISABLED or NEED_UPDATE (default PROPOSED)")
	f.StringVar(&tester, "tester", "", "default tester username")
	f.StringVar(&nc.Text.Action, "action", "", "steps to perform")
	f.StringVar(&nc.Text.Effect, "effect", "", "expected results")
	f.StringVar(&nc.Text.Setup, "setup", "", "setup instructions")
	f.StringVar(&nc.Text.Breakdown, "breakdown", "", "breakdown instructions")
	f.StringVar(&nc.Notes, "notes", "", "notes")
	f.IntVar(&nc.IsAutomated, "automated", 0, "0 manual, 1 automated, 2 both")
	f.StringArrayVar(&nc.Tags, "tag", nil, "add a tag (repeatable)")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func newCaseListCmd(e *env) *cobra.Command {
	var q types.CaseQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search test cases",
		Args:  noArgs,
		RunE: func(*cobra.Command, []string) error {
			return e.withService(func(rt *runtime) error {
				cases, err := rt.svc.SearchCases(q)
				if err != nil {
					return classify(err)
				}
				rows := make([][]string, 0, len(cases))
				for _, c := range cases {
					rows = append(rows, []string{c.CaseID, printer.Status(c.Status), c.Priority, c.Summary})
				}
				return e.out.Table(cases, []string{"ID", "STATUS", "PRIORITY", "SUMMARY"}, rows)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.PlanID, "plan", "", "only cases in this plan")
	f.StringVar(&q.Summary, "summary", "", "summary contains")
	f.StringVar(&q.Status, "status", "", "case status")
	f.StringVar(&q.Priority, "priority", "", "priority")
	f.StringVar(&q.Tag, "tag", "", "tag name")
	f.IntVar(&q.Limit, "limit", 0, "maximum results (0 for no limit)")
	return cmd
}

// caseDetail is everything case show prints.
type caseDetail struct {
	*types.TestCase
	Text  *types.CaseText `json:"text"`
	Tags  []string        `json:"tags"`
	Plans []string        `json:"plan_ids"`
}

func newCaseShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show a case with its latest text",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				c, err := rt.svc.GetCase(args[0])
				if err != nil {
					return classify(err)
				}
				d := caseDetail{TestCase: c}
				if d.Text, err = rt.svc.LatestCaseText(c.CaseID); err != nil && !errors.Is(err, types.ErrNotFound) {
					return classify(err)
				}
				tags, err := rt.svc.CaseTags(c.CaseID)
				if err != nil {
					return classify(err)
				}
				d.Tags = tagNames(tags)
				plans, err := rt.svc.CasePlans(c.CaseID)
				if err != nil {
					return classify(err)
				}
				for _, p := range plans {
					d.Plans = append(d.Plans, p.PlanID)
				}

				return e.out.Value(d, func() {
					pairs := []string{
						"ID", c.CaseID,
						"Summary", c.Summary,
						"Status", printer.Status(c.Status),
						"Priority", c.Priority,
						"Automated", strconv.Itoa(c.IsAutomated),
						"Tags", joinOrDash(d.Tags),
						"Plans", joinOrDash(d.Plans),
					}
					if d.Text != nil {
						pairs = append(pairs,
							"Text version", strconv.Itoa(d.Text.Version),
							"Action", orDash(d.Text.Action),
							"Expected", orDash(d.Text.Effect),
						)
					}
					_ = e.out.Fields(nil, pairs...)
				})
			})
		},
	}
}
