package bridge

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/OpenGG/spacetime-token/internal/tokens/domain"
	"github.com/OpenGG/spacetime-token/internal/tokens/storage"
)

const cliPath = "/home/test/.config/spacetime/cli.toml"

func newTestBridge(t *testing.T) (*Bridge, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return New(storage.New(fs), cliPath, nil), fs
}

func TestRead_Missing(t *testing.T) {
	b, _ := newTestBridge(t)
	if _, err := b.Read(); !errors.Is(err, domain.ErrCLIConfigNotFound) {
		t.Fatalf("expected ErrCLIConfigNotFound, got %v", err)
	}
}

func TestRead_ParseError(t *testing.T) {
	b, fs := newTestBridge(t)
	if err := afero.WriteFile(fs, cliPath, []byte("[[broken"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, err := b.Read()
	if !errors.Is(err, domain.ErrCLIConfigParse) {
		t.Fatalf("expected ErrCLIConfigParse, got %v", err)
	}
	if !strings.Contains(err.Error(), cliPath) {
		t.Fatalf("expected error to name path, got %v", err)
	}
}

func TestReadOrNew_Missing(t *testing.T) {
	b, _ := newTestBridge(t)
	doc, err := b.ReadOrNew()
	if err != nil {
		t.Fatalf("ReadOrNew: %v", err)
	}
	if _, ok, _ := doc.ActiveToken(tokenKey); ok {
		t.Fatal("expected empty document")
	}
}

func TestReadOrNew_PropagatesParseError(t *testing.T) {
	b, fs := newTestBridge(t)
	if err := afero.WriteFile(fs, cliPath, []byte("= nope"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := b.ReadOrNew(); !errors.Is(err, domain.ErrCLIConfigParse) {
		t.Fatalf("expected ErrCLIConfigParse, got %v", err)
	}
}

func TestWrite_CreatesParentDirectories(t *testing.T) {
	b, fs := newTestBridge(t)
	doc := NewDocument()
	if err := doc.SetActiveToken(tokenKey, "tok"); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	if err := b.Write(doc); err != nil {
		t.Fatalf("Write: %v", err)
	}

	exists, err := afero.Exists(fs, cliPath)
	if err != nil || !exists {
		t.Fatalf("expected file to exist, err=%v", err)
	}
	read, err := b.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	token, ok, err := read.ActiveToken(tokenKey)
	if err != nil || !ok || token != "tok" {
		t.Fatalf("expected tok, got %q ok=%v err=%v", token, ok, err)
	}
	if _, err := fs.Stat("/home/test/.config/spacetime"); err != nil {
		t.Fatalf("expected parent directory: %v", err)
	}
}

func TestWrite_Failure(t *testing.T) {
	b := New(storage.New(afero.NewReadOnlyFs(afero.NewMemMapFs())), cliPath, nil)
	if err := b.Write(NewDocument()); !errors.Is(err, domain.ErrCLIConfigIO) {
		t.Fatalf("expected ErrCLIConfigIO, got %v", err)
	}
}

func TestReadWrite_FollowsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dotfiles", "cli.toml")
	link := filepath.Join(dir, "spacetime", "cli.toml")
	for _, d := range []string{filepath.Dir(target), filepath.Dir(link)} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	if err := os.WriteFile(target, []byte("spacetimedb_token = 'tok1'\n"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	b := New(storage.New(afero.NewOsFs()), link, nil)
	if got, err := b.Target(); err != nil || got != target {
		t.Fatalf("Target() = %q, %v; want %q", got, err, target)
	}

	doc, err := b.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if token, ok, _ := doc.ActiveToken(tokenKey); !ok || token != "tok1" {
		t.Fatalf("expected tok1, got %q ok=%v", token, ok)
	}

	if err := doc.SetActiveToken(tokenKey, "tok2"); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	if err := b.Write(doc); err != nil {
		t.Fatalf("Write: %v", err)
	}

	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("lstat: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatal("expected link to remain a symlink")
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if !strings.Contains(string(data), "tok2") {
		t.Fatalf("expected target to hold tok2, got %q", data)
	}
}

func TestRead_DanglingSymlinkIsMissing(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "cli.toml")
	if err := os.Symlink(filepath.Join(dir, "gone.toml"), link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	b := New(storage.New(afero.NewOsFs()), link, nil)
	if _, err := b.Read(); !errors.Is(err, domain.ErrCLIConfigNotFound) {
		t.Fatalf("expected ErrCLIConfigNotFound, got %v", err)
	}
}
