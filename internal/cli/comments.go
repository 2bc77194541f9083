package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

func newCommentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "comments",
		Aliases: []string{"comentarios"},
		Short:   "Append to a follow-up comment log",
	}
	cmd.AddCommand(newCommentAddCmd(a))
	return cmd
}

func newCommentAddCmd(a *app) *cobra.Command {
	var ac actor
	cmd := &cobra.Command{
		Use:     "add <folder> <follow-up> <text...>",
		Short:   "Append a comment stamped with the current time",
		Example: `  seguimientos comments add 2024-01_user7 3 "Revisar compromisos" --user user7 --role admin`,
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, n, err := followUpArgs(args[:2])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			c, err := svc.AddComment(cmd.Context(), ac.identity(), id, n, strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), c, func(w io.Writer) {
				fmt.Fprintf(w, "Comment added to %s %s at %s\n", id, types.FollowUpName(n), c.Fecha)
			})
		},
	}
	ac.register(cmd)
	return cmd
}
