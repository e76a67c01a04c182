package bridge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/OpenGG/spacetime-token/internal/tokens/domain"
	"github.com/OpenGG/spacetime-token/internal/tokens/storage"
)

// Bridge reads and writes the external CLI configuration file.
type Bridge struct {
	storage *storage.Storage
	path    string
	logger  *slog.Logger
}

// New creates a Bridge for the configuration file at path.
func New(storage *storage.Storage, path string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{storage: storage, path: path, logger: logger}
}

// Path returns the external configuration file path.
func (b *Bridge) Path() string {
	return b.path
}

// Target returns the file the configuration path points at. The file belongs
// to the external CLI, so a symlinked path is followed rather than refused.
func (b *Bridge) Target() (string, error) {
	target, err := b.storage.ResolveSymlinks(b.path)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %w", domain.ErrCLIConfigIO, b.path, err)
	}
	if target != b.path {
		b.logger.Debug("following symlinked CLI config", "path", b.path, "target", target)
	}
	return target, nil
}

// Read loads and parses the external configuration file.
func (b *Bridge) Read() (*Document, error) {
	target, err := b.Target()
	if err != nil {
		return nil, err
	}
	data, err := b.storage.ReadFile(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", domain.ErrCLIConfigNotFound, b.path)
		}
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrCLIConfigIO, b.path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", b.path, err)
	}
	return doc, nil
}

// ReadOrNew is Read, except that a missing file yields an empty document.
func (b *Bridge) ReadOrNew() (*Document, error) {
	doc, err := b.Read()
	if errors.Is(err, domain.ErrCLIConfigNotFound) {
		b.logger.Debug("CLI config not found, starting from an empty document", "path", b.path)
		return NewDocument(), nil
	}
	return doc, err
}

// Write replaces the external configuration file with doc. A symlinked path
// keeps its link and the target file is replaced.
func (b *Bridge) Write(doc *Document) error {
	target, err := b.Target()
	if err != nil {
		return err
	}
	if err := b.storage.WriteFileAtomic(target, doc.Bytes()); err != nil {
		return fmt.Errorf("%w: write %s: %w", domain.ErrCLIConfigIO, b.path, err)
	}
	b.logger.Debug("CLI config written", "path", b.path)
	return nil
}
