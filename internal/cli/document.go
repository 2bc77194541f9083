package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

func newDocumentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "document",
		Aliases: []string{"doc"},
		Short:   "Manage documents",
	}
	cmd.AddCommand(newDocumentCreateCmd(a))
	cmd.AddCommand(newDocumentListCmd(a))
	cmd.AddCommand(newDocumentShowCmd(a))
	cmd.AddCommand(newDocumentDeleteCmd(a))
	cmd.AddCommand(newDocumentProvisionCmd(a))
	return cmd
}

func newDocumentCreateCmd(a *app) *cobra.Command {
	var (
		ac       actor
		lastname string
	)
	cmd := &cobra.Command{
		Use:   "create <number>",
		Short: "Create a document with eight empty follow-ups",
		Long: `Create provisions documento_{number}_{user} with follow-ups 1 through 8,
each with an imagenes folder and an empty comment log. The acting user
becomes the owner.`,
		Example: `  seguimientos document create 2024-01 --user user7 --apellido Garcia`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			doc, err := svc.CreateDocument(cmd.Context(), ac.identity(), args[0], lastname)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), doc, func(w io.Writer) {
				fmt.Fprintf(w, "Created %s%s\n", types.DocumentPrefix, doc.Folder)
			})
		},
	}
	ac.register(cmd)
	cmd.Flags().StringVar(&lastname, "apellido", "", "family last name")
	return cmd
}

func newDocumentListCmd(a *app) *cobra.Command {
	var ac actor
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the documents visible to the acting user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			docs, err := svc.ListVisible(cmd.Context(), ac.identity())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), docs, func(w io.Writer) {
				if len(docs) == 0 {
					fmt.Fprintln(w, "No documents")
					return
				}
				for _, d := range docs {
					fmt.Fprintf(w, "%-30s %-10s %s\n", d.Folder, submittedCount(d), d.Family)
				}
			})
		},
	}
	ac.register(cmd)
	return cmd
}

func newDocumentShowCmd(a *app) *cobra.Command {
	var ac actor
	cmd := &cobra.Command{
		Use:   "show <folder>",
		Short: "Show a document and the status of its follow-ups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseDocumentID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			doc, err := svc.Document(cmd.Context(), ac.identity(), id)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), doc, func(w io.Writer) {
				fmt.Fprintf(w, "Document: %s\n", doc.Number)
				fmt.Fprintf(w, "Owner:    %s\n", doc.Owner)
				if doc.Family != "" {
					fmt.Fprintf(w, "Family:   %s\n", doc.Family)
				}
				for _, f := range doc.FollowUps {
					status := "pending"
					if f.Submitted {
						status = "submitted"
					}
					fmt.Fprintf(w, "  %-15s %s\n", f.ID, status)
				}
			})
		},
	}
	ac.register(cmd)
	return cmd
}

func newDocumentDeleteCmd(a *app) *cobra.Command {
	var ac actor
	cmd := &cobra.Command{
		Use:   "delete <folder>",
		Short: "Delete a document and all its follow-ups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseDocumentID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			if err := svc.DeleteDocument(cmd.Context(), ac.identity(), id); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]string{"deleted": id.String()}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %s%s\n", types.DocumentPrefix, id)
			})
		},
	}
	ac.register(cmd)
	return cmd
}

func newDocumentProvisionCmd(a *app) *cobra.Command {
	var ac actor
	cmd := &cobra.Command{
		Use:   "provision <folder>",
		Short: "Recreate missing follow-up folders and comment logs",
		Long: `Provision repairs a partially created document. Existing folders and
files are left untouched, so running it twice changes nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseDocumentID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			if err := svc.ProvisionDocument(cmd.Context(), ac.identity(), id); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]string{"provisioned": id.String()}, func(w io.Writer) {
				fmt.Fprintf(w, "Provisioned %s%s\n", types.DocumentPrefix, id)
			})
		},
	}
	ac.register(cmd)
	return cmd
}

// submittedCount renders "3/8" for a document with three submitted
// follow-ups.
func submittedCount(d types.Document) string {
	n := 0
	for _, f := range d.FollowUps {
		if f.Submitted {
			n++
		}
	}
	return fmt.Sprintf("%d/%d", n, len(d.FollowUps))
}

// joinNonEmpty joins the non-blank values with sep.
func joinNonEmpty(values []string, sep string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, sep)
}
