package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/OpenGG/spacetime-token/internal/tokens/domain"
	"github.com/OpenGG/spacetime-token/internal/tokens/storage"
)

const (
	// AppDirName is the directory under the user config dir holding all app files.
	AppDirName = "spacetime-token"
	// FileName is the settings file inside the app directory.
	FileName = "config.toml"
	// HomeEnv overrides the app directory when set.
	HomeEnv = "SPACETIME_TOKEN_HOME"

	DefaultProfilesFilename     = "profiles.toml"
	DefaultCLIConfigDirFromHome = ".config/spacetime"
	DefaultCLIConfigFilename    = "cli.toml"
	DefaultCLITokenKey          = "spacetimedb_token"
)

// Settings holds the user-tunable file names and keys.
type Settings struct {
	ProfilesFilename     string `toml:"profiles_filename"`
	CLIConfigDirFromHome string `toml:"cli_config_dir_from_home"`
	CLIConfigFilename    string `toml:"cli_config_filename"`
	CLITokenKey          string `toml:"cli_token_key"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		ProfilesFilename:     DefaultProfilesFilename,
		CLIConfigDirFromHome: DefaultCLIConfigDirFromHome,
		CLIConfigFilename:    DefaultCLIConfigFilename,
		CLITokenKey:          DefaultCLITokenKey,
	}
}

// ResolveAppDir returns the application directory, honouring HomeEnv.
func ResolveAppDir() (string, error) {
	if custom := strings.TrimSpace(os.Getenv(HomeEnv)); custom != "" {
		return custom, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolve user config directory: %w", domain.ErrConfig, err)
	}
	return filepath.Join(base, AppDirName), nil
}

// Store loads and saves Settings at a fixed path.
type Store struct {
	storage *storage.Storage
	path    string
	logger  *slog.Logger
}

// New creates a settings Store for the file at path.
func New(storage *storage.Storage, path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{storage: storage, path: path, logger: logger}
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored settings, creating the file with defaults when absent.
// Keys missing from the file keep their default values.
func (s *Store) Load() (Settings, error) {
	path := s.path
	dir := filepath.Dir(path)
	if err := s.storage.MkdirAll(dir); err != nil {
		return Settings{}, fmt.Errorf("%w: create app directory %s: %w", domain.ErrConfig, dir, err)
	}

	data, err := s.storage.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("%w: read %s: %w", domain.ErrConfig, path, err)
		}
		s.logger.Info("settings file not found, creating with defaults",
			"path", path,
			"operation", "load_settings")
		defaults := Defaults()
		if err := s.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	settings := Defaults()
	if err := toml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("%w: parse %s: %w", domain.ErrConfig, path, err)
	}
	return settings, nil
}

// Save overwrites the settings file.
func (s *Store) Save(settings Settings) error {
	path := s.Path()
	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("%w: encode settings: %w", domain.ErrConfig, err)
	}
	if err := s.storage.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", domain.ErrConfig, path, err)
	}
	s.logger.Debug("settings saved", "path", path)
	return nil
}
