package domain

import "errors"

// Exported error variables allow callers to use errors.Is() for error checking.
// Operations wrap one of these together with the underlying cause.
var (
	// ErrConfig covers loading or saving the application settings file.
	ErrConfig = errors.New("settings error")

	ErrProfilesCorrupt = errors.New("profiles file is corrupt")
	ErrProfilesIO      = errors.New("profiles file I/O failed")
	ErrProfileExists   = errors.New("profile already exists")
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles to choose from")

	ErrCLIConfigNotFound = errors.New("CLI config not found")
	ErrCLIConfigParse    = errors.New("CLI config is not valid TOML")
	ErrCLIConfigIO       = errors.New("CLI config I/O failed")
	ErrTokenWrongType    = errors.New("token key is not a string")
	ErrNotLoggedIn       = errors.New("not logged in")

	// ErrSubprocess is returned when the external CLI cannot be started or exits non-zero.
	ErrSubprocess = errors.New("external command failed")
)

// Profile name validation errors.
var (
	ErrProfileNameEmpty        = errors.New("profile name cannot be empty")
	ErrProfileNameNullByte     = errors.New("profile name contains null byte")
	ErrProfileNameNonPrintable = errors.New("profile name contains control characters")
	ErrProfileNameSurrounding  = errors.New("profile name cannot start or end with whitespace")
)
