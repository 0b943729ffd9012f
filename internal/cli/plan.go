package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nitrate/internal/printer"
	"github.com/mesh-intelligence/nitrate/internal/tcms"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func newPlanCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage test plans",
	}
	cmd.AddCommand(newPlanCreateCmd(e), newPlanListCmd(e), newPlanShowCmd(e))
	return cmd
}

func newPlanCreateCmd(e *env) *cobra.Command {
	var np tcms.NewPlan
	var product, version, planType, owner string
	var tags []string
	cmd := &cobra.Command{
		Use:     "create <name>",
		Short:   "Create a test plan",
		Example: "  nitrate plan create Smoke --product Widget --version 1.0 --type Smoke --tag nightly",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				actor, err := e.actor(rt.svc)
				if err != nil {
					return err
				}
				p, err := resolveProduct(rt.svc, product)
				if err != nil {
					return err
				}
				np.Name = args[0]
				np.ProductID = p.ProductID
				np.AuthorID = actor.UserID
				if np.ProductVersionID, err = resolveVersion(rt.svc, p.ProductID, version); err != nil {
					return err
				}
				pt, err := rt.svc.PlanTypeByName(planType)
				if err != nil {
					return classify(fmt.Errorf("plan type %s: %w", planType, err))
				}
				np.TypeID = pt.PlanTypeID
				if np.OwnerID, err = optionalUser(rt.svc, owner); err != nil {
					return err
				}

				plan, err := rt.svc.CreatePlan(cmd.Context(), np)
				if err != nil {
					return classify(err)
				}
				for _, tag := range tags {
					if err := rt.svc.AddPlanTag(cmd.Context(), plan.PlanID, tag); err != nil {
						return classify(err)
					}
				}
				e.out.Success("created plan %s (%s)", plan.Name, plan.PlanID)
				return e.out.Value(plan, func() {})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&product, "product", "", "product name or ID (required)")
	f.StringVar(&version, "version", "", "product version value or ID (required)")
	f.StringVar(&planType, "type", "Function", "plan type")
	f.StringVar(&owner, "owner", "", "owner username")
	f.StringVar(&np.ParentID, "parent", "", "parent plan ID")
	f.StringVar(&np.ExtraLink, "extra-link", "", "external reference")
	f.StringVar(&np.Text, "text", "", "initial plan document")
	f.StringArrayVar(&tags, "tag", nil, "add a tag (repeatable)")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func newPlanListCmd(e *env) *cobra.Command {
	var product, name string
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List test plans",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withService(func(rt *runtime) error {
				q := types.PlanQuery{Name: name}
				if !all {
					active := true
					q.IsActive = &active
				}
				if product != "" {
					p, err := resolveProduct(rt.svc, product)
					if err != nil {
						return err
					}
					q.ProductID = p.ProductID
				}
				plans, err := rt.svc.SearchPlans(q)
				if err != nil {
					return classify(err)
				}
				rows := make([][]string, 0, len(plans))
				for _, p := range plans {
					rows = append(rows, []string{p.PlanID, p.Name, strconv.FormatBool(p.IsActive), fmtDate(p.CreatedAt)})
				}
				return e.out.Table(plans, []string{"ID", "NAME", "ACTIVE", "CREATED"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "only plans of this product")
	cmd.Flags().StringVar(&name, "name", "", "name contains")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive plans")
	return cmd
}

// planDetail is everything plan show prints.
type planDetail struct {
	*types.TestPlan
	Text  string           `json:"text"`
	Tags  []string         `json:"tags"`
	Cases []planCaseDetail `json:"cases"`
}

type planCaseDetail struct {
	*types.TestCase
	SortKey int `json:"sort_key"`
}

func newPlanShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a plan with its document and cases",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				plan, err := rt.svc.GetPlan(args[0])
				if err != nil {
					return classify(err)
				}
				d := planDetail{TestPlan: plan}
				text, err := rt.svc.LatestPlanText(plan.PlanID)
				switch {
				case err == nil:
					d.Text = text.Text
				case !errors.Is(err, types.ErrNotFound):
					return classify(err)
				}
				tags, err := rt.svc.PlanTags(plan.PlanID)
				if err != nil {
					return classify(err)
				}
				d.Tags = tagNames(tags)
				cases, err := rt.svc.PlanCases(plan.PlanID)
				if err != nil {
					return classify(err)
				}
				for _, pc := range cases {
					d.Cases = append(d.Cases, planCaseDetail{TestCase: pc.Case, SortKey: pc.SortKey})
				}

				return e.out.Value(d, func() {
					_ = e.out.Fields(nil,
						"ID", plan.PlanID,
						"Name", plan.Name,
						"Active", strconv.FormatBool(plan.IsActive),
						"Tags", joinOrDash(d.Tags),
						"Created", fmtDate(plan.CreatedAt),
					)
					if d.Text != "" {
						fmt.Fprintf(e.out.Out, "\n%s\n", d.Text)
					}
					fmt.Fprintln(e.out.Out)
					rows := make([][]string, 0, len(d.Cases))
					for _, c := range d.Cases {
						rows = append(rows, []string{strconv.Itoa(c.SortKey), c.CaseID, printer.Status(c.Status), c.Priority, c.Summary})
					}
					_ = e.out.Table(nil, []string{"SORT", "CASE", "STATUS", "PRIORITY", "SUMMARY"}, rows)
				})
			})
		},
	}
}
