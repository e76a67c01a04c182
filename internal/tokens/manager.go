package tokens

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/OpenGG/spacetime-token/internal/tokens/backup"
	"github.com/OpenGG/spacetime-token/internal/tokens/bridge"
	"github.com/OpenGG/spacetime-token/internal/tokens/config"
	"github.com/OpenGG/spacetime-token/internal/tokens/domain"
	"github.com/OpenGG/spacetime-token/internal/tokens/paths"
	"github.com/OpenGG/spacetime-token/internal/tokens/profiles"
	"github.com/OpenGG/spacetime-token/internal/tokens/runner"
	"github.com/OpenGG/spacetime-token/internal/tokens/storage"
	"github.com/OpenGG/spacetime-token/internal/tokens/validator"
)

const (
	// CLICommand is the external database CLI executable.
	CLICommand = "spacetime"
	// AdminProfile is the profile activated by the admin verb.
	AdminProfile = "admin"
)

var (
	logoutArgs = []string{"logout"}
	loginArgs  = []string{"login", "--server-issued-login", "local"}
)

// Manager implements every profile operation on top of the stores.
type Manager struct {
	storage   *storage.Storage
	paths     *paths.PathBuilder
	settings  config.Settings
	config    *config.Store
	profiles  *profiles.Store
	bridge    *bridge.Bridge
	backup    *backup.Service
	validator *validator.Validator
	runner    runner.Runner
	logger    *slog.Logger
}

// Options configures a Manager.
type Options struct {
	Fs       afero.Fs
	AppDir   string
	HomeDir  string
	Settings config.Settings
	Runner   runner.Runner
	Logger   *slog.Logger
}

// NewManager builds a Manager from already loaded settings.
func NewManager(opts Options) (*Manager, error) {
	if opts.Fs == nil {
		return nil, errors.New("filesystem cannot be nil")
	}
	if opts.AppDir == "" {
		return nil, errors.New("app directory cannot be empty")
	}
	if opts.HomeDir == "" {
		return nil, errors.New("home directory cannot be empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	run := opts.Runner
	if run == nil {
		run = runner.NewExecRunner(logger)
	}

	stor := storage.New(opts.Fs)
	pb := paths.New(opts.AppDir, opts.HomeDir)
	m := &Manager{
		storage:   stor,
		paths:     pb,
		config:    config.New(stor, pb.SettingsPath(), logger),
		backup:    backup.New(stor, pb.BackupDir(), logger),
		validator: validator.New(),
		runner:    run,
		logger:    logger,
	}
	m.apply(opts.Settings)
	return m, nil
}

func (m *Manager) apply(settings config.Settings) {
	m.settings = settings
	m.profiles = profiles.New(m.storage, m.paths.ProfilesPath(settings), m.logger)
	m.bridge = bridge.New(m.storage, m.paths.CLIConfigPath(settings), m.logger)
}

// Settings returns the settings the Manager was built with.
func (m *Manager) Settings() config.Settings {
	return m.settings
}

// ProfilesPath returns the profile store file path.
func (m *Manager) ProfilesPath() string {
	return m.profiles.Path()
}

// CLIConfigPath returns the external CLI configuration file path.
func (m *Manager) CLIConfigPath() string {
	return m.bridge.Path()
}

// SettingsPath returns the settings file path.
func (m *Manager) SettingsPath() string {
	return m.config.Path()
}

// BackupDir returns the directory holding CLI config backups.
func (m *Manager) BackupDir() string {
	return m.backup.BackupDir()
}

// SetNow overrides the clock used for backups.
func (m *Manager) SetNow(now func() time.Time) {
	m.backup.SetNow(now)
}

// ValidateName checks a profile name before it is stored.
func (m *Manager) ValidateName(name string) error {
	if valid, err := m.validator.ValidateName(name); !valid {
		return fmt.Errorf("invalid profile name: %w", err)
	}
	return nil
}

// ProfileNames returns the stored profile names in sorted order.
func (m *Manager) ProfileNames() ([]string, error) {
	p, err := m.profiles.Load()
	if err != nil {
		return nil, err
	}
	return p.Names(), nil
}

// Set stores token under name and makes it the active token.
func (m *Manager) Set(name, token string) error {
	if err := m.ValidateName(name); err != nil {
		return err
	}
	p, err := m.profiles.Load()
	if err != nil {
		return err
	}
	p.Upsert(name, token)
	if err := m.profiles.Save(p); err != nil {
		return err
	}
	m.logger.Info("profile stored", "profile", name, "path", m.profiles.Path())
	return m.activate(token)
}

// Switch copies the token of an existing profile into the CLI config.
// The CLI config is not touched when the profile is missing.
func (m *Manager) Switch(name string) error {
	p, err := m.profiles.Load()
	if err != nil {
		return err
	}
	token, ok := p.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: '%s' in %s", domain.ErrProfileNotFound, name, m.profiles.Path())
	}
	if err := m.activate(token); err != nil {
		return err
	}
	m.logger.Info("switched profile", "profile", name, "path", m.bridge.Path())
	return nil
}

// Admin switches to the profile named AdminProfile.
func (m *Manager) Admin() error {
	return m.Switch(AdminProfile)
}

// SaveActive stores the CLI's active token as a new profile.
func (m *Manager) SaveActive(name string) error {
	if err := m.ValidateName(name); err != nil {
		return err
	}
	p, err := m.profiles.Load()
	if err != nil {
		return err
	}
	if _, exists := p.Lookup(name); exists {
		return fmt.Errorf("%w: '%s' in %s, use a different name or delete the existing one first", domain.ErrProfileExists, name, m.profiles.Path())
	}
	token, err := m.requireActiveToken()
	if err != nil {
		return err
	}
	if err := p.InsertIfAbsent(name, token); err != nil {
		return err
	}
	if err := m.profiles.Save(p); err != nil {
		return err
	}
	m.logger.Info("saved active token", "profile", name, "path", m.profiles.Path())
	return nil
}

// Create logs out of the external CLI, runs its interactive login and stores
// the resulting token under name. Nothing is stored if either command fails.
func (m *Manager) Create(ctx context.Context, name string) error {
	if err := m.ValidateName(name); err != nil {
		return err
	}
	p, err := m.profiles.Load()
	if err != nil {
		return err
	}
	if _, exists := p.Lookup(name); exists {
		return fmt.Errorf("%w: '%s' in %s, cannot create", domain.ErrProfileExists, name, m.profiles.Path())
	}

	if err := m.backupCLIConfig(); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, CLICommand, logoutArgs...); err != nil {
		return fmt.Errorf("failed to logout from %s: %w", CLICommand, err)
	}
	if err := m.runner.Run(ctx, CLICommand, loginArgs...); err != nil {
		return fmt.Errorf("failed during login: %w", err)
	}

	token, err := m.requireActiveToken()
	if err != nil {
		return fmt.Errorf("after login: %w", err)
	}
	if err := p.InsertIfAbsent(name, token); err != nil {
		return err
	}
	if err := m.profiles.Save(p); err != nil {
		return err
	}
	m.logger.Info("created profile", "profile", name, "path", m.profiles.Path())
	return nil
}

// Delete removes a profile.
func (m *Manager) Delete(name string) error {
	p, err := m.profiles.Load()
	if err != nil {
		return err
	}
	if !p.Remove(name) {
		return fmt.Errorf("%w: '%s' in %s, nothing to delete", domain.ErrProfileNotFound, name, m.profiles.Path())
	}
	if err := m.profiles.Save(p); err != nil {
		return err
	}
	m.logger.Info("deleted profile", "profile", name, "path", m.profiles.Path())
	return nil
}

// Reset replaces the profile store with an empty one.
func (m *Manager) Reset() error {
	return m.profiles.Reset()
}

// Entry is one line of the profile listing.
type Entry struct {
	Name    string
	Current bool
}

// List returns all profiles sorted by name. At most one entry is marked
// current. Problems reading the CLI config only suppress the marker.
func (m *Manager) List() ([]Entry, error) {
	p, err := m.profiles.Load()
	if err != nil {
		return nil, err
	}
	current := ""
	if token, ok := m.activeTokenIfAny(); ok {
		current, _ = m.matchActive(p, token)
	}

	names := p.Names()
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Current: name == current})
	}
	return entries, nil
}

// State describes what Current found in the CLI config.
type State int

const (
	// StateNoConfig means the CLI config file does not exist.
	StateNoConfig State = iota
	// StateNoToken means the token key is absent.
	StateNoToken
	// StateWrongType means the token key holds a non-string value.
	StateWrongType
	// StateUnknownToken means the active token matches no profile.
	StateUnknownToken
	// StateMatched means the active token belongs to Status.Profile.
	StateMatched
)

// Status reports the active profile.
type Status struct {
	State       State
	Profile     string
	MaskedToken string
}

// Current reports which profile, if any, owns the CLI's active token.
// Missing files or keys are reported through Status, not as errors.
func (m *Manager) Current() (Status, error) {
	doc, err := m.bridge.Read()
	if err != nil {
		if errors.Is(err, domain.ErrCLIConfigNotFound) {
			return Status{State: StateNoConfig}, nil
		}
		return Status{}, err
	}
	token, ok, err := doc.ActiveToken(m.settings.CLITokenKey)
	if err != nil {
		if errors.Is(err, domain.ErrTokenWrongType) {
			return Status{State: StateWrongType}, nil
		}
		return Status{}, err
	}
	if !ok {
		return Status{State: StateNoToken}, nil
	}

	p, err := m.profiles.Load()
	if err != nil {
		return Status{}, err
	}
	status := Status{State: StateUnknownToken, MaskedToken: MaskToken(token)}
	if name, found := m.matchActive(p, token); found {
		status.State = StateMatched
		status.Profile = name
	}
	return status, nil
}

// UpdateSettings persists settings and rebinds the stores to the new paths.
func (m *Manager) UpdateSettings(settings config.Settings) error {
	if err := m.config.Save(settings); err != nil {
		return err
	}
	m.apply(settings)
	return nil
}

// PruneBackups removes CLI config backups older than olderThan.
func (m *Manager) PruneBackups(olderThan time.Duration) (int, error) {
	return m.backup.PruneBackups(olderThan)
}

// activate writes token into the CLI config, keeping a backup of the
// previous content.
func (m *Manager) activate(token string) error {
	doc, err := m.bridge.ReadOrNew()
	if err != nil {
		return err
	}
	if err := doc.SetActiveToken(m.settings.CLITokenKey, token); err != nil {
		return err
	}
	if err := m.backupCLIConfig(); err != nil {
		return err
	}
	return m.bridge.Write(doc)
}

func (m *Manager) backupCLIConfig() error {
	target, err := m.bridge.Target()
	if err != nil {
		return err
	}
	if _, err := m.backup.BackupFile(target); err != nil {
		return fmt.Errorf("%w: back up %s: %w", domain.ErrCLIConfigIO, m.bridge.Path(), err)
	}
	return nil
}

// requireActiveToken returns the CLI's active token, failing when the file,
// the key or a string value is missing.
func (m *Manager) requireActiveToken() (string, error) {
	doc, err := m.bridge.Read()
	if err != nil {
		return "", err
	}
	token, ok, err := doc.ActiveToken(m.settings.CLITokenKey)
	if err != nil {
		return "", fmt.Errorf("token key '%s' in %s: %w", m.settings.CLITokenKey, m.bridge.Path(), err)
	}
	if !ok {
		return "", fmt.Errorf("%w: token key '%s' not found in %s", domain.ErrNotLoggedIn, m.settings.CLITokenKey, m.bridge.Path())
	}
	return token, nil
}

func (m *Manager) activeTokenIfAny() (string, bool) {
	doc, err := m.bridge.Read()
	if err != nil {
		m.logger.Debug("ignoring unreadable CLI config", "path", m.bridge.Path(), "error", err)
		return "", false
	}
	token, ok, err := doc.ActiveToken(m.settings.CLITokenKey)
	if err != nil {
		m.logger.Debug("ignoring active token", "path", m.bridge.Path(), "error", err)
		return "", false
	}
	return token, ok
}

// matchActive returns the first profile, in name order, holding token.
func (m *Manager) matchActive(p profiles.Profiles, token string) (string, bool) {
	matches := p.FindByToken(token)
	if len(matches) == 0 {
		return "", false
	}
	if len(matches) > 1 {
		m.logger.Warn("several profiles share the active token, using the first",
			"profile", matches[0],
			"matches", matches)
	}
	return matches[0], true
}
