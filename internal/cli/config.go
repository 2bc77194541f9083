package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/seguimientos/internal/auth"
	"github.com/mesh-intelligence/seguimientos/internal/server"
	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envFileName    = ".env"
	envPrefix      = "SEGUIMIENTOS"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyListenAddr    = "listen_addr"
	cfgKeyMetricsAddr   = "metrics_addr"
	cfgKeyBasePath      = "base_path"
	cfgKeySessionDB     = "session_db"
	cfgKeySessionTTL    = "session_ttl"
	cfgKeyCookieSecure  = "cookie_secure"
	cfgKeyMaxUpload     = "max_upload_bytes"
	cfgKeyElevatedRoles = "elevated_roles"
	cfgKeyLogLevel      = "log_level"
	cfgKeyLogPretty     = "log_pretty"
	cfgKeyUsers         = "users"

	defaultListenAddr    = ":8000"
	defaultBasePath      = "/seguimientos"
	defaultLogLevel      = "info"
	defaultAdminID       = "administrador"
	defaultAdminName     = "Administrador"
	defaultSessionTTLStr = "1h"
)

// envKeys are the keys that SEGUIMIENTOS_<KEY> may override. data_dir is
// left out: its environment variable ranks below config.yaml and is
// handled by paths.ResolveDataDir.
var envKeys = []string{
	cfgKeyBackend,
	cfgKeyListenAddr,
	cfgKeyMetricsAddr,
	cfgKeyBasePath,
	cfgKeySessionDB,
	cfgKeySessionTTL,
	cfgKeyCookieSecure,
	cfgKeyMaxUpload,
	cfgKeyLogLevel,
	cfgKeyLogPretty,
}

// Settings is the resolved runtime configuration.
type Settings struct {
	ConfigDir      string
	Backend        string
	DataDir        string
	ListenAddr     string
	MetricsAddr    string
	BasePath       string
	SessionDB      string
	SessionTTL     time.Duration
	CookieSecure   bool
	MaxUploadBytes int64
	ElevatedRoles  []string
	LogLevel       string
	LogPretty      bool
	Users          []auth.User
}

// StoreConfig returns the storage configuration.
func (s *Settings) StoreConfig() types.Config {
	return types.Config{Backend: s.Backend, DataDir: s.DataDir}
}

// configFile is the structure written to config.yaml by init.
type configFile struct {
	Backend       string      `yaml:"backend"`
	DataDir       string      `yaml:"data_dir,omitempty"`
	ListenAddr    string      `yaml:"listen_addr"`
	MetricsAddr   string      `yaml:"metrics_addr,omitempty"`
	BasePath      string      `yaml:"base_path"`
	SessionTTL    string      `yaml:"session_ttl"`
	ElevatedRoles []string    `yaml:"elevated_roles"`
	LogLevel      string      `yaml:"log_level"`
	LogPretty     bool        `yaml:"log_pretty"`
	Users         []auth.User `yaml:"users,omitempty"`
}

func defaultConfigFile() configFile {
	return configFile{
		Backend:       types.BackendFilesystem,
		ListenAddr:    defaultListenAddr,
		BasePath:      defaultBasePath,
		SessionTTL:    defaultSessionTTLStr,
		ElevatedRoles: []string{types.RoleSuperadmin},
		LogLevel:      defaultLogLevel,
	}
}

// loadDotEnv loads .env from the config directory and then the working
// directory. Variables already set in the environment win.
func loadDotEnv(configDir string) error {
	for _, path := range []string{filepath.Join(configDir, envFileName), envFileName} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// loadSettings reads config.yaml from configDir, creating the directory and
// a default file on first run. A missing config.yaml is not an error.
func loadSettings(configDir string) (*Settings, error) {
	if err := loadDotEnv(configDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), defaultConfigFile()); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendFilesystem)
	v.SetDefault(cfgKeyListenAddr, defaultListenAddr)
	v.SetDefault(cfgKeyBasePath, defaultBasePath)
	v.SetDefault(cfgKeySessionTTL, auth.DefaultSessionTTL)
	v.SetDefault(cfgKeyMaxUpload, server.DefaultMaxUploadBytes)
	v.SetDefault(cfgKeyElevatedRoles, []string{types.RoleSuperadmin})
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)

	v.SetEnvPrefix(envPrefix)
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var users []auth.User
	if err := v.UnmarshalKey(cfgKeyUsers, &users); err != nil {
		return nil, fmt.Errorf("%w: users: %v", types.ErrInvalidInput, err)
	}

	s := &Settings{
		ConfigDir:      configDir,
		Backend:        strings.TrimSpace(v.GetString(cfgKeyBackend)),
		DataDir:        v.GetString(cfgKeyDataDir),
		ListenAddr:     v.GetString(cfgKeyListenAddr),
		MetricsAddr:    v.GetString(cfgKeyMetricsAddr),
		BasePath:       v.GetString(cfgKeyBasePath),
		SessionDB:      v.GetString(cfgKeySessionDB),
		SessionTTL:     v.GetDuration(cfgKeySessionTTL),
		CookieSecure:   v.GetBool(cfgKeyCookieSecure),
		MaxUploadBytes: v.GetInt64(cfgKeyMaxUpload),
		ElevatedRoles:  v.GetStringSlice(cfgKeyElevatedRoles),
		LogLevel:       v.GetString(cfgKeyLogLevel),
		LogPretty:      v.GetBool(cfgKeyLogPretty),
		Users:          users,
	}
	if s.SessionTTL <= 0 {
		return nil, fmt.Errorf("%w: session_ttl must be positive", types.ErrInvalidInput)
	}
	return s, nil
}

// writeConfigIfMissing creates config.yaml from cfg if the file does not
// exist. An existing file is left alone.
func writeConfigIfMissing(path string, cfg configFile) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return writeConfigFile(path, &cfg)
}

// writeConfigFile replaces config.yaml with the YAML encoding of v.
func writeConfigFile(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# seguimientos configuration\n")
	return os.WriteFile(path, append(header, data...), 0o600)
}
