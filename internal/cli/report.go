package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/seguimientos/internal/fsstore"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		ac  actor
		out string
	)
	cmd := &cobra.Command{
		Use:   "report <folder> <follow-up>",
		Short: "Render the PDF report of a follow-up",
		Long: `Report renders the follow-up record to PDF. Without --out the file is
written to the current directory under its generated name
(reporte_{fecha}_{hora}.pdf). A directory given to --out receives the
generated name as well.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, n, err := followUpArgs(args)
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			name, err := svc.RenderReport(cmd.Context(), ac.identity(), id, n, &buf)
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path = name
			} else if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, name)
			}
			if err := fsstore.WriteDurable(path, buf.Bytes()); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return a.print(cmd.OutOrStdout(), map[string]any{"file": path, "bytes": buf.Len()}, func(w io.Writer) {
				fmt.Fprintf(w, "Report written to %s\n", path)
			})
		},
	}
	ac.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory")
	return cmd
}
