package paths

import (
	"path/filepath"

	"github.com/OpenGG/spacetime-token/internal/tokens/config"
)

// BackupDirName is the directory under the app directory holding CLI config backups.
const BackupDirName = "backups"

// PathBuilder resolves every file location from the app and home directories.
type PathBuilder struct {
	appDir  string
	homeDir string
}

// New creates a new PathBuilder.
func New(appDir, homeDir string) *PathBuilder {
	return &PathBuilder{appDir: appDir, homeDir: homeDir}
}

// SettingsPath returns the settings file path.
func (p *PathBuilder) SettingsPath() string {
	return filepath.Join(p.appDir, config.FileName)
}

// ProfilesPath returns the profile store path for settings.
func (p *PathBuilder) ProfilesPath(settings config.Settings) string {
	return filepath.Join(p.appDir, settings.ProfilesFilename)
}

// CLIConfigPath returns the external CLI configuration path for settings.
func (p *PathBuilder) CLIConfigPath(settings config.Settings) string {
	return filepath.Join(p.homeDir, settings.CLIConfigDirFromHome, settings.CLIConfigFilename)
}

// BackupDir returns the directory where CLI config backups are stored.
func (p *PathBuilder) BackupDir() string {
	return filepath.Join(p.appDir, BackupDirName)
}
