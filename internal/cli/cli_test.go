package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/seguimientos/internal/auth"
	"github.com/mesh-intelligence/seguimientos/pkg/seguimientos"
	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// env is an isolated config and data directory pair.
type env struct {
	configDir string
	dataDir   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	root := t.TempDir()
	return env{
		configDir: filepath.Join(root, "config"),
		dataDir:   filepath.Join(root, "documents"),
	}
}

// run executes the root command with the environment's directories.
func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return execute(t, "", append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...)...)
}

func (e env) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := e.run(t, append(args, "--json")...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func (e env) init(t *testing.T, args ...string) {
	t.Helper()
	out, err := e.run(t, append([]string{"init"}, args...)...)
	require.NoError(t, err, out)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("seguimientos %s\n", seguimientos.Version), out)
}

func TestInit_CreatesDirectories(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized successfully")

	assert.FileExists(t, filepath.Join(e.configDir, "config.yaml"))
	assert.FileExists(t, filepath.Join(e.configDir, "sessions.db"))
	assert.DirExists(t, e.dataDir)

	// A second run succeeds and keeps the existing config.
	e.init(t)
}

func TestInit_AdminPassword(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, "config.yaml"),
		[]byte("listen_addr: \":9000\"\nlog_level: debug\n"), 0o600))

	e.init(t, "--admin-password", "s3cret")

	s, err := loadSettings(e.configDir)
	require.NoError(t, err)
	assert.Equal(t, ":9000", s.ListenAddr, "unrelated keys survive")
	assert.Equal(t, "debug", s.LogLevel)
	require.Len(t, s.Users, 1)
	assert.Equal(t, defaultAdminID, s.Users[0].ID)
	assert.Equal(t, types.RoleSuperadmin, s.Users[0].Role)

	authn, err := auth.NewStaticAuthenticator(s.Users)
	require.NoError(t, err)
	who, err := authn.Authenticate(defaultAdminID, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, types.RoleSuperadmin, who.Role)

	// Re-running replaces the hash instead of adding a second entry.
	e.init(t, "--admin-password", "otra")
	s, err = loadSettings(e.configDir)
	require.NoError(t, err)
	require.Len(t, s.Users, 1)
	authn, err = auth.NewStaticAuthenticator(s.Users)
	require.NoError(t, err)
	_, err = authn.Authenticate(defaultAdminID, "s3cret")
	assert.ErrorIs(t, err, types.ErrNotAuthenticated)
}

func TestLoadSettings_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")
	s, err := loadSettings(dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
	assert.Equal(t, types.BackendFilesystem, s.Backend)
	assert.Equal(t, defaultListenAddr, s.ListenAddr)
	assert.Equal(t, defaultBasePath, s.BasePath)
	assert.Equal(t, auth.DefaultSessionTTL, s.SessionTTL)
	assert.Equal(t, []string{types.RoleSuperadmin}, s.ElevatedRoles)
	assert.Empty(t, s.Users)
}

func TestLoadSettings_EnvOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("listen_addr: \":9000\"\nsession_ttl: 2h\n"), 0o600))
	t.Setenv("SEGUIMIENTOS_LISTEN_ADDR", ":9100")

	s, err := loadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9100", s.ListenAddr)
	assert.Equal(t, "2h0m0s", s.SessionTTL.String())
}

func TestLoadSettings_RejectsBadTTL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("session_ttl: 0s\n"), 0o600))

	_, err := loadSettings(dir)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestLoad_DataDirPrecedence(t *testing.T) {
	dir := t.TempDir()
	fromConfig := filepath.Join(dir, "from-config")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("data_dir: "+fromConfig+"\n"), 0o600))
	t.Setenv("SEGUIMIENTOS_DATA_DIR", filepath.Join(dir, "from-env"))

	a := &app{configDir: dir}
	require.NoError(t, a.load())
	assert.Equal(t, fromConfig, a.settings.DataDir, "config.yaml ranks above the environment")
	assert.Equal(t, filepath.Join(dir, "sessions.db"), a.settings.SessionDB)

	flag := filepath.Join(dir, "from-flag")
	a = &app{configDir: dir, dataDir: flag}
	require.NoError(t, a.load())
	assert.Equal(t, flag, a.settings.DataDir)
}

func TestDocumentLifecycle(t *testing.T) {
	e := newEnv(t)
	e.init(t)
	owner := []string{"--user", "user7", "--role", types.RoleAdmin}

	var doc types.Document
	e.runJSON(t, &doc, append([]string{"document", "create", "2024-01", "--apellido", "Garcia"}, owner...)...)
	assert.Equal(t, "2024-01_user7", doc.Folder)
	assert.Equal(t, "Garcia", doc.Family)
	require.Len(t, doc.FollowUps, types.FollowUpSlots)
	for i, f := range doc.FollowUps {
		assert.Equal(t, i+1, f.Number)
		assert.False(t, f.Submitted)
	}

	_, err := e.run(t, append([]string{"document", "create", "2024-01"}, owner...)...)
	require.ErrorIs(t, err, types.ErrAlreadyExists)
	assert.Equal(t, exitUserError, exitCode(err))

	record := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(record, []byte(`{
		"fecha": "2024-03-15",
		"hora": "10:30",
		"objetivo": "Reduce dropout",
		"dimensiones": ["educacion"],
		"compromisos": [{"descripcion": "Visita", "responsable": "Ana", "fecha": "2024-04-01"}]
	}`), 0o644))
	out, err := e.run(t, append([]string{"followup", "save", "2024-01_user7", "seguimiento_3", "--file", record}, owner...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Saved 2024-01_user7 seguimiento_3")

	out, err = e.run(t, append([]string{"comments", "add", "2024-01_user7", "3", "Revisar", "compromisos"}, owner...)...)
	require.NoError(t, err, out)

	var view types.FollowUpView
	e.runJSON(t, &view, append([]string{"followup", "show", "2024-01_user7", "3"}, owner...)...)
	assert.True(t, view.Submitted)
	assert.Equal(t, "Reduce dropout", view.Record.Objetivo)
	require.Len(t, view.Record.Compromisos, 1)
	assert.Equal(t, "2024-04-01", view.Record.Compromisos[0].FechaCumplimiento)
	require.Len(t, view.Comments, 1)
	assert.Equal(t, "user7", view.Comments[0].Usuario)
	assert.Equal(t, "Revisar compromisos", view.Comments[0].Comentario)

	e.runJSON(t, &doc, append([]string{"document", "show", "2024-01_user7"}, owner...)...)
	assert.True(t, doc.FollowUps[2].Submitted)
	assert.False(t, doc.FollowUps[3].Submitted)

	outDir := t.TempDir()
	out, err = e.run(t, append([]string{"report", "2024-01_user7", "3", "--out", outDir}, owner...)...)
	require.NoError(t, err, out)
	reports, err := filepath.Glob(filepath.Join(outDir, "reporte_20240315_*.pdf"))
	require.NoError(t, err)
	require.Len(t, reports, 1, out)
	pdf, err := os.ReadFile(reports[0])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	out, err = e.run(t, append([]string{"document", "delete", "2024-01_user7"}, owner...)...)
	require.NoError(t, err, out)
	assert.NoDirExists(t, filepath.Join(e.dataDir, "documento_2024-01_user7"))
}

func TestDocumentList_Visibility(t *testing.T) {
	e := newEnv(t)
	e.init(t)
	for _, owner := range []string{"user7", "user8"} {
		_, err := e.run(t, "document", "create", "2024-01", "--user", owner, "--role", types.RoleAdmin)
		require.NoError(t, err)
	}

	var docs []types.Document
	e.runJSON(t, &docs, "document", "list", "--user", "user7", "--role", types.RoleAdmin)
	require.Len(t, docs, 1)
	assert.Equal(t, "user7", docs[0].Owner)

	e.runJSON(t, &docs, "document", "list")
	assert.Len(t, docs, 2, "superadmin sees every document")

	out, err := e.run(t, "document", "list", "--user", "nadie", "--role", types.RoleAdmin)
	require.NoError(t, err)
	assert.Contains(t, out, "No documents")
}

func TestDocument_Forbidden(t *testing.T) {
	e := newEnv(t)
	e.init(t)
	_, err := e.run(t, "document", "create", "2024-01", "--user", "user7", "--role", types.RoleAdmin)
	require.NoError(t, err)

	_, err = e.run(t, "document", "delete", "2024-01_user7", "--user", "user8", "--role", types.RoleAdmin)
	require.ErrorIs(t, err, types.ErrForbidden)
	assert.DirExists(t, filepath.Join(e.dataDir, "documento_2024-01_user7"))
}

func TestDocumentProvision_RepairsLayout(t *testing.T) {
	e := newEnv(t)
	e.init(t)
	_, err := e.run(t, "document", "create", "7", "--user", "user7")
	require.NoError(t, err)
	followUp := filepath.Join(e.dataDir, "documento_7_user7", "seguimiento_5")
	require.NoError(t, os.RemoveAll(followUp))

	out, err := e.run(t, "document", "provision", "7_user7")
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(followUp, "comentarios.json"))
	assert.DirExists(t, filepath.Join(followUp, "imagenes"))
}

func TestFollowUpSave_Errors(t *testing.T) {
	e := newEnv(t)
	e.init(t)
	_, err := e.run(t, "document", "create", "7", "--user", "user7")
	require.NoError(t, err)

	_, err = e.run(t, "followup", "save", "7_user7", "1", "--user", "user7")
	require.ErrorIs(t, err, errUsage)
	assert.Equal(t, exitUserError, exitCode(err))

	_, err = e.run(t, "followup", "save", "7_user7", "9", "--user", "user7", "--file", "-")
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = execute(t, "{not json", "--config-dir", e.configDir, "--data-dir", e.dataDir,
		"followup", "save", "7_user7", "1", "--user", "user7", "--file", "-")
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	out, err := execute(t, `{"objetivo":"desde stdin"}`, "--config-dir", e.configDir, "--data-dir", e.dataDir,
		"followup", "save", "7_user7", "1", "--user", "user7", "--file", "-")
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(e.dataDir, "documento_7_user7", "seguimiento_1", "seguimiento.json"))
}

func TestCommands_MissingDataDir(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "document", "list")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, "", "hash-password", "clave")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("clave")))

	out, err = execute(t, "desde-stdin\n", "hash-password")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("desde-stdin")))

	_, err = execute(t, "", "hash-password")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitSuccess},
		{types.ErrInvalidInput, exitUserError},
		{fmt.Errorf("wrap: %w", types.ErrNotFound), exitUserError},
		{types.ErrAlreadyExists, exitUserError},
		{types.ErrForbidden, exitUserError},
		{types.ErrNotAuthenticated, exitUserError},
		{types.ErrIO, exitSysError},
		{types.ErrSerialization, exitSysError},
		{errors.New("boom"), exitSysError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}
