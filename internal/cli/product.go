package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func newProductCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage products and their versions, builds and categories",
	}
	cmd.AddCommand(newProductCreateCmd(e), newProductListCmd(e))
	return cmd
}

// productDetail is a product with its release lines, as printed by
// product create.
type productDetail struct {
	*types.Product
	Versions   []*types.Version  `json:"versions"`
	Builds     []*types.Build    `json:"builds"`
	Categories []*types.Category `json:"categories"`
}

func newProductCreateCmd(e *env) *cobra.Command {
	var description, classification string
	var versions, builds, categories []string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a product",
		Example: "  nitrate product create Widget --version 1.0 --version 2.0 --build nightly\n" +
			"  nitrate product create Gadget --category ui --category api",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				ctx := cmd.Context()
				p, err := rt.svc.CreateProduct(ctx, args[0], classification, description)
				if err != nil {
					return classify(err)
				}
				detail := productDetail{Product: p}
				for _, v := range versions {
					ver, err := rt.svc.AddVersion(ctx, p.ProductID, v)
					if err != nil {
						return classify(err)
					}
					detail.Versions = append(detail.Versions, ver)
				}
				for _, b := range builds {
					build, err := rt.svc.AddBuild(ctx, p.ProductID, b, "")
					if err != nil {
						return classify(err)
					}
					detail.Builds = append(detail.Builds, build)
				}
				for _, c := range categories {
					cat, err := rt.svc.AddCategory(ctx, p.ProductID, c, "")
					if err != nil {
						return classify(err)
					}
					detail.Categories = append(detail.Categories, cat)
				}
				e.out.Success("created product %s (%s)", p.Name, p.ProductID)
				return e.out.Value(detail, func() {})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&description, "description", "", "product description")
	f.StringVar(&classification, "classification", "", "classification ID")
	f.StringArrayVar(&versions, "version", nil, "add a version (repeatable)")
	f.StringArrayVar(&builds, "build", nil, "add a build (repeatable)")
	f.StringArrayVar(&categories, "category", nil, "add a category (repeatable)")
	return cmd
}

func newProductListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  noArgs,
		RunE: func(*cobra.Command, []string) error {
			return e.withService(func(rt *runtime) error {
				products, err := rt.svc.ListProducts(nil)
				if err != nil {
					return classify(err)
				}
				rows := make([][]string, 0, len(products))
				for _, p := range products {
					versions, err := rt.svc.ListVersions(p.ProductID)
					if err != nil {
						return classify(err)
					}
					values := make([]string, 0, len(versions))
					for _, v := range versions {
						values = append(values, v.Value)
					}
					rows = append(rows, []string{p.ProductID, p.Name, joinOrDash(values)})
				}
				return e.out.Table(products, []string{"ID", "NAME", "VERSIONS"}, rows)
			})
		},
	}
}
