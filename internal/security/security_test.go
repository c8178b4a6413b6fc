package security

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/vinodismyname/mcpreports/config"
)

func mustTempDir(t *testing.T) string {
	t.Helper()
	d := t.TempDir()
	// EvalSymlinks on macOS can change /var -> /private/var
	real, err := filepath.EvalSymlinks(d)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return real
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestNewManager_ValidateConfig(t *testing.T) {
	dir := mustTempDir(t)
	m, err := NewManager([]string{dir, " "}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.ValidateConfig(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	if got := len(m.AllowedDirectories()); got != 1 {
		t.Fatalf("allowed dirs len = %d, want 1", got)
	}

	empty, err := NewManagerFromConfig(&config.Config{})
	if err != nil {
		t.Fatalf("new manager from config: %v", err)
	}
	if err := empty.ValidateConfig(); err == nil {
		t.Fatalf("expected error for empty allow-list")
	}
}

func TestNewManager_RejectsFileRoot(t *testing.T) {
	dir := mustTempDir(t)
	f := filepath.Join(dir, "file.csv")
	mustWrite(t, f)
	if _, err := NewManager([]string{f}, nil); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
	if _, err := NewManager([]string{dir}, []string{"csv"}); err == nil {
		t.Fatalf("expected error for extension without dot")
	}
}

func TestValidateOpenPath_AllowsDataFilesWithinRoot(t *testing.T) {
	root := mustTempDir(t)
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	m, err := NewManager([]string{root}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	for _, name := range []string{"survey.xlsx", "survey.csv", "survey.DTA"} {
		fpath := filepath.Join(sub, name)
		mustWrite(t, fpath)
		got, err := m.ValidateOpenPath(fpath)
		if err != nil {
			t.Fatalf("validate %s: %v", name, err)
		}
		if got != fpath {
			t.Fatalf("canonical path = %q, want %q", got, fpath)
		}
	}
}

func TestValidateOpenPath_DeniesOutsideRoot(t *testing.T) {
	root := mustTempDir(t)
	outside := filepath.Join(mustTempDir(t), "escape.csv")
	mustWrite(t, outside)

	m, err := NewManager([]string{root}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.ValidateOpenPath(outside); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed", err)
	}
	if _, err := m.ValidateOpenPath(filepath.Join(root, "..", filepath.Base(filepath.Dir(outside)), "escape.csv")); err == nil {
		t.Fatalf("expected error for dot-dot escape")
	}
}

func TestValidateOpenPath_SymlinkEscapeDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test skipped on Windows")
	}
	root := mustTempDir(t)
	target := filepath.Join(mustTempDir(t), "target.xlsx")
	mustWrite(t, target)
	link := filepath.Join(root, "link.xlsx")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	m, err := NewManager([]string{root}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.ValidateOpenPath(link); err == nil {
		t.Fatalf("expected error for symlink escape")
	}
}

func TestValidateOpenPath_UnsupportedExtAndMissing(t *testing.T) {
	root := mustTempDir(t)
	fp := filepath.Join(root, "bad.txt")
	mustWrite(t, fp)

	m, err := NewManager([]string{root}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.ValidateOpenPath(fp); !errors.Is(err, ErrUnsupportedExtension) {
		t.Fatalf("err = %v, want ErrUnsupportedExtension", err)
	}
	if _, err := m.ValidateOpenPath(filepath.Join(root, "missing.csv")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestValidateWritePath(t *testing.T) {
	root := mustTempDir(t)
	m, err := NewManager([]string{root}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	out := filepath.Join(root, "report.xlsx")
	got, err := m.ValidateWritePath(out)
	if err != nil {
		t.Fatalf("validate write path: %v", err)
	}
	if got != out {
		t.Fatalf("write path = %q, want %q", got, out)
	}

	if _, err := m.ValidateWritePath(filepath.Join(root, "report.csv")); !errors.Is(err, ErrUnsupportedExtension) {
		t.Fatalf("err = %v, want ErrUnsupportedExtension", err)
	}
	if _, err := m.ValidateWritePath(filepath.Join(root, "nodir", "report.xlsx")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := m.ValidateWritePath(filepath.Join(mustTempDir(t), "report.xlsx")); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed", err)
	}
}
