package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func newUserCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserAddCmd(e), newUserGrantCmd(e), newUserListCmd(e))
	return cmd
}

func newUserAddCmd(e *env) *cobra.Command {
	var password string
	var superuser bool
	cmd := &cobra.Command{
		Use:   "add <username> <email>",
		Short: "Create a user",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				u, err := rt.svc.CreateUser(cmd.Context(), args[0], args[1], password, superuser)
				if err != nil {
					return classify(err)
				}
				e.out.Success("created user %s (%s)", u.Username, u.UserID)
				return e.out.Value(u, func() {})
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "login password (empty disables login)")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "grant every permission")
	return cmd
}

func newUserGrantCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <username> <permission>...",
		Short: "Grant permissions to a user",
		Long: "Grant permissions such as testruns.change_testcaserun to a user.\n" +
			"Known permissions:\n  " + strings.Join(types.AllPermissions, "\n  "),
		Args: minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				u, err := resolveUser(rt.svc, args[0])
				if err != nil {
					return err
				}
				for _, p := range args[1:] {
					if !types.ValidPermission(p) {
						return usageError{fmt.Errorf("unknown permission %q", p)}
					}
				}
				u, err = rt.svc.Grant(cmd.Context(), u.UserID, args[1:]...)
				if err != nil {
					return classify(err)
				}
				e.out.Success("%s now holds %d permissions", u.Username, len(u.Permissions))
				return e.out.Value(u, func() {})
			})
		},
	}
}

func newUserListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  noArgs,
		RunE: func(*cobra.Command, []string) error {
			return e.withService(func(rt *runtime) error {
				users, err := rt.svc.ListUsers(nil)
				if err != nil {
					return classify(err)
				}
				rows := make([][]string, 0, len(users))
				for _, u := range users {
					rows = append(rows, []string{u.UserID, u.Username, u.Email, strconv.FormatBool(u.IsSuperuser)})
				}
				return e.out.Table(users, []string{"ID", "USERNAME", "EMAIL", "SUPERUSER"}, rows)
			})
		},
	}
}
