package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OpenGG/spacetime-token/internal/tokens/storage"
)

// Extension is the suffix of every backup file.
const Extension = ".toml"

// Service keeps content-addressed copies of the CLI config before it is overwritten.
type Service struct {
	storage   *storage.Storage
	backupDir string
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a new backup Service.
func New(storage *storage.Storage, backupDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		storage:   storage,
		backupDir: backupDir,
		now:       time.Now,
		logger:    logger,
	}
}

// SetNow allows overriding the clock for testing.
func (s *Service) SetNow(now func() time.Time) {
	if now == nil {
		s.now = time.Now
		return
	}
	s.now = now
}

// BackupDir returns the backup directory path.
func (s *Service) BackupDir() string {
	return s.backupDir
}

// Hash returns the hex SHA-256 of data, or "empty" for zero-length input.
func Hash(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BackupFile stores a copy of the file at path as <sha256>.toml.
//
// Identical content maps to the same backup file, whose mtime is refreshed
// instead of writing a second copy. Missing files are skipped. The returned
// path is empty when nothing was backed up.
func (s *Service) BackupFile(path string) (string, error) {
	data, err := s.storage.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read file for backup: %w", err)
	}

	hash := Hash(data)
	if hash == "empty" {
		s.logger.Warn("empty file detected during backup",
			"path", path,
			"operation", "backup")
	}

	backupPath := filepath.Join(s.backupDir, hash+Extension)
	now := s.now()

	if _, err := s.storage.Stat(backupPath); err == nil {
		if err := s.storage.Chtimes(backupPath, now, now); err != nil {
			return "", fmt.Errorf("failed to update backup timestamp: %w", err)
		}
		s.logger.Debug("backup already exists, updated timestamp",
			"path", path,
			"hash", hash,
			"backup_path", backupPath)
		return backupPath, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to stat backup: %w", err)
	}

	if err := s.storage.WriteFileAtomic(backupPath, data); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	if err := s.storage.Chtimes(backupPath, now, now); err != nil {
		return "", fmt.Errorf("failed to update backup timestamp: %w", err)
	}

	s.logger.Info("backup created",
		"path", path,
		"hash", hash,
		"backup_path", backupPath)
	return backupPath, nil
}

// PruneBackups removes backup files whose mtime is older than olderThan.
// A missing backup directory means there is nothing to prune.
func (s *Service) PruneBackups(olderThan time.Duration) (int, error) {
	entries, err := s.storage.ReadDir(s.backupDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	cutoff := s.now().Add(-olderThan)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		if !entry.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.backupDir, entry.Name())
		if err := s.storage.Remove(path); err != nil {
			return deleted, fmt.Errorf("failed to delete backup: %w", err)
		}
		s.logger.Debug("backup pruned", "backup_path", path)
		deleted++
	}
	return deleted, nil
}
