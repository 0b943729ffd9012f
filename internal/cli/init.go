package cli

import (
	"github.com/spf13/cobra"
)

func newInitCmd(e *env) *cobra.Command {
	var admin, email, password string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize nitrate storage",
		Long: "Create the configuration and data directories, write a default config.yaml\n" +
			"and create the database. With --admin, also create a superuser.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withService(func(rt *runtime) error {
				result := map[string]string{"config_dir": e.dirs.Config, "data_dir": e.dirs.Data}
				if admin != "" {
					if email == "" {
						email = admin + "@localhost"
					}
					u, err := rt.svc.CreateUser(cmd.Context(), admin, email, password, true)
					if err != nil {
						return classify(err)
					}
					result["admin_id"] = u.UserID
				}
				e.out.Success("nitrate initialized in %s", e.dirs.Data)
				return e.out.Value(result, func() {})
			})
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "create a superuser with this username")
	cmd.Flags().StringVar(&email, "email", "", "superuser email")
	cmd.Flags().StringVar(&password, "password", "", "superuser password")
	return cmd
}
