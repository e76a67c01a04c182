package validator

import (
	"strings"
	"unicode"

	"github.com/OpenGG/spacetime-token/internal/tokens/domain"
)

// Validator validates profile names before they are written to the store.
type Validator struct{}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{}
}

// ValidateName validates a profile name.
//
// Profile names are TOML keys, so any printable text is allowed. The function
// rejects:
//   - Empty or whitespace-only names
//   - Leading or trailing whitespace (names are compared verbatim)
//   - Null bytes
//   - Control characters
//
// Returns (true, nil) if valid, or (false, error) with a descriptive error.
func (v *Validator) ValidateName(name string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, domain.ErrProfileNameEmpty
	}
	if strings.TrimSpace(name) != name {
		return false, domain.ErrProfileNameSurrounding
	}
	if strings.ContainsRune(name, 0) {
		return false, domain.ErrProfileNameNullByte
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false, domain.ErrProfileNameNonPrintable
		}
	}
	return true, nil
}
