package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newCommentCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Comment on plans, cases, runs and case-runs",
	}
	cmd.AddCommand(newCommentAddCmd(e))
	return cmd
}

func newCommentAddCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "add <plan|case|run|caserun> <object-id> <text>...",
		Short:   "Post a comment",
		Example: "  nitrate comment add caserun <caserun-id> flaky on arm64",
		Args:    minArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(func(rt *runtime) error {
				actor, err := e.actor(rt.svc)
				if err != nil {
					return err
				}
				text := strings.Join(args[2:], " ")
				c, err := rt.svc.PostComment(cmd.Context(), args[0], args[1], actor.UserID, text)
				if err != nil {
					return classify(err)
				}
				e.out.Success("comment %s posted on %s %s", c.CommentID, args[0], args[1])
				return e.out.Value(c, func() {})
			})
		},
	}
}
