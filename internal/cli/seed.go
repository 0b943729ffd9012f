package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nitrate/internal/fixtures"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func newSeedCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Load users, products, plans, cases and runs from a YAML file",
		Long: "Create the entities described in a fixtures file. Entities that name no\n" +
			"author are authored by the acting user (--as), when one is given.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := fixtures.LoadFile(args[0])
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return usageError{err}
				}
				return classify(err)
			}
			return e.withService(func(rt *runtime) error {
				var actor *types.User
				if e.actingName() != "" {
					if actor, err = e.actor(rt.svc); err != nil {
						return err
					}
				}
				res, err := fixtures.Apply(cmd.Context(), rt.svc, f, actor)
				if err != nil {
					return classify(err)
				}
				e.out.Success("seeded %d users, %d products, %d plans, %d cases, %d runs",
					res.Users, res.Products, res.Plans, res.Cases, res.Runs)
				return e.out.Value(res, func() {})
			})
		},
	}
}
