package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Storage provides low-level file operations with security validations.
type Storage struct {
	fs afero.Fs
}

// New creates a new Storage instance.
func New(fs afero.Fs) *Storage {
	return &Storage{fs: fs}
}

// ValidatePathSafety checks that the path is not a symlink, preventing symlink attacks.
// It returns nil if the path doesn't exist or is a regular file/directory.
func (s *Storage) ValidatePathSafety(path string) error {
	if lstater, ok := s.fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to check path: %w", err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to operate on symlink: %s", path)
		}
	}
	// In-memory filesystems don't support symlinks.
	return nil
}

// maxSymlinkHops bounds ResolveSymlinks on link cycles.
const maxSymlinkHops = 40

// ResolveSymlinks follows path through any chain of symlinks and returns the
// final target. Missing targets are returned as-is so they can be created.
// Filesystems without Lstat/Readlink support return path unchanged.
func (s *Storage) ResolveSymlinks(path string) (string, error) {
	lstater, ok := s.fs.(afero.Lstater)
	if !ok {
		return path, nil
	}
	reader, ok := s.fs.(afero.LinkReader)
	if !ok {
		return path, nil
	}

	current := path
	for hops := 0; hops < maxSymlinkHops; hops++ {
		info, _, err := lstater.LstatIfPossible(current)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return current, nil
			}
			return "", fmt.Errorf("failed to check path: %w", err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return current, nil
		}
		target, err := reader.ReadlinkIfPossible(current)
		if err != nil {
			return "", fmt.Errorf("failed to read symlink %s: %w", current, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = target
	}
	return "", fmt.Errorf("too many levels of symlinks: %s", path)
}

// WriteFileAtomic replaces path with data through a temp file and rename.
// Parent directories are created as needed.
func (s *Storage) WriteFileAtomic(path string, data []byte) error {
	if err := s.ValidatePathSafety(path); err != nil {
		return fmt.Errorf("validate destination: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := path + ".tmp"
	dest, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	_, writeErr := dest.Write(data)
	closeErr := dest.Close()

	if writeErr != nil || closeErr != nil {
		s.fs.Remove(tmp)
		if writeErr != nil {
			return fmt.Errorf("write data: %w", writeErr)
		}
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	// Unix rename() atomically replaces the destination
	if err := s.fs.Rename(tmp, path); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}

	return nil
}

// ReadFile reads the entire file.
func (s *Storage) ReadFile(path string) ([]byte, error) {
	if err := s.ValidatePathSafety(path); err != nil {
		return nil, err
	}
	return afero.ReadFile(s.fs, path)
}

// Stat returns file information.
func (s *Storage) Stat(path string) (os.FileInfo, error) {
	return s.fs.Stat(path)
}

// MkdirAll creates directory with secure permissions.
func (s *Storage) MkdirAll(path string) error {
	return s.fs.MkdirAll(path, 0o700)
}

// ReadDir reads directory contents.
func (s *Storage) ReadDir(path string) ([]os.FileInfo, error) {
	return afero.ReadDir(s.fs, path)
}

// Remove deletes a file.
func (s *Storage) Remove(path string) error {
	return s.fs.Remove(path)
}

// Chtimes changes file access and modification times.
func (s *Storage) Chtimes(path string, atime, mtime time.Time) error {
	return s.fs.Chtimes(path, atime, mtime)
}
