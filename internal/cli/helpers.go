// Shared helpers for the document maintenance commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/seguimientos/internal/fsstore"
	"github.com/mesh-intelligence/seguimientos/internal/logger"
	"github.com/mesh-intelligence/seguimientos/internal/service"
	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// actor holds the --user and --role flags of the maintenance commands.
type actor struct {
	user string
	role string
}

func (ac *actor) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ac.user, "user", defaultAdminID, "acting user id")
	cmd.Flags().StringVar(&ac.role, "role", types.RoleSuperadmin, "acting user role")
}

func (ac *actor) identity() types.Identity {
	return types.Identity{UserID: ac.user, Name: ac.user, Role: ac.role}
}

// openService opens the document root and returns a service over it. The
// filesystem backend holds no resources, so there is nothing to close.
func (a *app) openService() (*service.Service, error) {
	s := a.settings
	store, err := fsstore.Open(s.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("open document root: %w", err)
	}
	log := logger.New(logger.Config{Level: s.LogLevel, Pretty: s.LogPretty})
	return service.New(store, service.AccessPolicy{ElevatedRoles: s.ElevatedRoles},
		service.WithLogger(log)), nil
}

// followUpArgs parses "<folder> <follow-up>" positional arguments.
func followUpArgs(args []string) (types.DocumentID, int, error) {
	id, err := types.ParseDocumentID(args[0])
	if err != nil {
		return types.DocumentID{}, 0, err
	}
	n, err := types.ParseFollowUp(args[1])
	if err != nil {
		return types.DocumentID{}, 0, err
	}
	if err := types.ValidateFollowUp(n); err != nil {
		return types.DocumentID{}, 0, err
	}
	return id, n, nil
}

// readInput reads path, or standard input when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
