package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/seguimientos/internal/auth"
	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

type initOptions struct {
	adminID       string
	adminName     string
	adminPassword string
}

func newInitCmd(a *app) *cobra.Command {
	opts := &initOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long: `Init creates the configuration directory with a default config.yaml, the
document root and the session database. With --admin-password it also adds
a superadmin user to config.yaml, or replaces the hash of an existing one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.adminID, "admin-id", defaultAdminID, "id of the superadmin user")
	cmd.Flags().StringVar(&opts.adminName, "admin-name", defaultAdminName, "display name of the superadmin user")
	cmd.Flags().StringVar(&opts.adminPassword, "admin-password", "", "password of the superadmin user")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, opts *initOptions) error {
	s := a.settings

	if opts.adminPassword != "" {
		if err := addAdmin(filepath.Join(s.ConfigDir, configFileExt), opts); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return fmt.Errorf("create document root: %w", err)
	}

	sessions := auth.NewSessionStore()
	if err := sessions.Attach(s.SessionDB); err != nil {
		return fmt.Errorf("initialize session database: %w", err)
	}
	if err := sessions.Detach(); err != nil {
		return fmt.Errorf("finalize session database: %w", err)
	}

	return a.print(cmd.OutOrStdout(), map[string]string{
		"config_dir": s.ConfigDir,
		"data_dir":   s.DataDir,
		"session_db": s.SessionDB,
	}, func(w io.Writer) {
		fmt.Fprintln(w, "seguimientos initialized successfully")
		fmt.Fprintf(w, "  config:   %s\n", s.ConfigDir)
		fmt.Fprintf(w, "  data:     %s\n", s.DataDir)
		fmt.Fprintf(w, "  sessions: %s\n", s.SessionDB)
	})
}

// addAdmin sets the superadmin entry in config.yaml, keeping every other
// user and setting.
func addAdmin(path string, opts *initOptions) error {
	id := strings.TrimSpace(opts.adminID)
	if id == "" {
		return fmt.Errorf("%w: --admin-id must not be empty", types.ErrInvalidInput)
	}
	hash, err := auth.HashPassword(opts.adminPassword)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	// Decode twice: once generically so unrelated keys survive the rewrite,
	// once for the typed user list.
	raw := map[string]any{}
	var cfg struct {
		Users []auth.User `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	admin := auth.User{ID: id, Name: opts.adminName, Role: types.RoleSuperadmin, PasswordHash: hash}
	replaced := false
	for i := range cfg.Users {
		if cfg.Users[i].ID == id {
			cfg.Users[i] = admin
			replaced = true
		}
	}
	if !replaced {
		cfg.Users = append(cfg.Users, admin)
	}
	raw[cfgKeyUsers] = cfg.Users
	return writeConfigFile(path, raw)
}
