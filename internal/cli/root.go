// Package cli implements the seguimientos command-line interface: the HTTP
// server, first-run setup, and direct document maintenance against the
// document root.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/seguimientos/internal/paths"
	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// skipConfig marks commands that run without loading config.yaml.
const skipConfig = "skip-config"

// app holds the global flag values and the settings loaded for a run.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool

	settings *Settings
}

// NewRootCmd creates the top-level "seguimientos" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "seguimientos",
		Short: "Document and follow-up tracking",
		Long: "seguimientos stores documents with eight follow-ups each on the local\n" +
			"filesystem and serves them over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "document root (default: $(CWD)/documents)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newDocumentCmd(a))
	root.AddCommand(newFollowUpCmd(a))
	root.AddCommand(newCommentsCmd(a))
	root.AddCommand(newReportCmd(a))
	root.AddCommand(newHashPasswordCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode classifies err: bad input and missing or conflicting documents
// are user errors, everything else is a system error.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrAlreadyExists),
		errors.Is(err, types.ErrForbidden),
		errors.Is(err, types.ErrNotAuthenticated),
		errors.Is(err, errUsage):
		return exitUserError
	default:
		return exitSysError
	}
}

// errUsage tags command-line mistakes cobra does not catch itself.
var errUsage = errors.New("usage error")

// load resolves the directories and reads config.yaml.
func (a *app) load() error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	settings, err := loadSettings(configDir)
	if err != nil {
		return err
	}
	settings.DataDir, err = paths.ResolveDataDir(a.dataDir, settings.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	settings.SessionDB, err = paths.SessionDBPath(configDir, settings.SessionDB)
	if err != nil {
		return fmt.Errorf("resolve session db: %w", err)
	}
	a.settings = settings
	return nil
}

// print writes v as indented JSON in --json mode, and calls human otherwise.
func (a *app) print(w io.Writer, v any, human func(io.Writer)) error {
	if a.jsonMode {
		return writeJSON(w, v)
	}
	human(w)
	return nil
}
