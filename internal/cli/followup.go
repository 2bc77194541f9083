package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

func newFollowUpCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "followup",
		Aliases: []string{"seguimiento"},
		Short:   "Read and write follow-up records",
	}
	cmd.AddCommand(newFollowUpShowCmd(a))
	cmd.AddCommand(newFollowUpSaveCmd(a))
	return cmd
}

func newFollowUpShowCmd(a *app) *cobra.Command {
	var ac actor
	cmd := &cobra.Command{
		Use:     "show <folder> <follow-up>",
		Short:   "Show a follow-up with its comments and images",
		Example: `  seguimientos followup show 2024-01_user7 seguimiento_3`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, n, err := followUpArgs(args)
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			view, err := svc.FollowUp(cmd.Context(), ac.identity(), id, n)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), view, func(w io.Writer) {
				printFollowUp(w, view)
			})
		},
	}
	ac.register(cmd)
	return cmd
}

func printFollowUp(w io.Writer, v types.FollowUpView) {
	status := "pending"
	if v.Submitted {
		status = "submitted"
	}
	fmt.Fprintf(w, "%s %s (%s)\n", v.Folder, types.FollowUpName(v.Number), status)
	r := v.Record
	if v.Submitted {
		fmt.Fprintf(w, "Fecha:       %s %s\n", r.Fecha, r.Hora)
		fmt.Fprintf(w, "Dimensiones: %s\n", joinNonEmpty(r.Dimensiones, ", "))
		fmt.Fprintf(w, "Objetivo:    %s\n", r.Objetivo)
		for _, c := range r.Compromisos {
			fmt.Fprintf(w, "  compromiso: %s (%s, %s)\n", c.Descripcion, c.Responsable, c.FechaCumplimiento)
		}
		for _, p := range r.Participantes {
			fmt.Fprintf(w, "  participante: %s (%s)\n", p.Nombre, p.Rol)
		}
	}
	for _, c := range v.Comments {
		fmt.Fprintf(w, "[%s] %s: %s\n", c.Fecha, c.Usuario, c.Comentario)
	}
	for _, img := range v.Images {
		fmt.Fprintf(w, "  imagen: %s\n", img)
	}
}

func newFollowUpSaveCmd(a *app) *cobra.Command {
	var (
		ac   actor
		file string
	)
	cmd := &cobra.Command{
		Use:   "save <folder> <follow-up>",
		Short: "Replace a follow-up record from a JSON file",
		Long: `Save reads a record in the seguimiento.json format and replaces the stored
record in full. Use --file - to read from standard input.`,
		Example: `  seguimientos followup save 2024-01_user7 3 --file record.json`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, n, err := followUpArgs(args)
			if err != nil {
				return err
			}
			if file == "" {
				return fmt.Errorf("%w: --file is required", errUsage)
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return fmt.Errorf("read record: %w", err)
			}
			var record types.Record
			if err := json.Unmarshal(data, &record); err != nil {
				return fmt.Errorf("%w: parse record: %v", types.ErrInvalidInput, err)
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			if err := svc.SaveFollowUp(cmd.Context(), ac.identity(), id, n, record); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]any{"folder": id.String(), "numero": n, "enviado": true}, func(w io.Writer) {
				fmt.Fprintf(w, "Saved %s %s\n", id, types.FollowUpName(n))
			})
		},
	}
	ac.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "record JSON file, or - for standard input")
	return cmd
}
