package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vinodismyname/mcpreports/config"
)

// Manager enforces the filesystem allow-list for dataset reads and report
// exports. It stores canonical absolute roots and checks that requested
// files resolve inside them and carry a supported extension.
type Manager struct {
	allowedDirs []string
	allowedExts map[string]struct{}
}

// ErrNotAllowed indicates the requested path is outside the allow-list roots.
var ErrNotAllowed = errors.New("security: path not allowed")

// ErrUnsupportedExtension indicates the requested file extension is not supported.
var ErrUnsupportedExtension = errors.New("security: unsupported file extension")

// ErrNotFound indicates the requested file does not exist or is not accessible.
var ErrNotFound = errors.New("security: file not found")

// DefaultExtensions are the data files the loaders read.
var DefaultExtensions = []string{".xlsx", ".xlsm", ".xltx", ".xltm", ".csv", ".dta"}

// ExportExtensions are the files report exports may create.
var ExportExtensions = []string{".xlsx"}

// NewManager constructs a security manager given an allow-list of directories
// and a list of allowed file extensions (case-insensitive, with leading dot).
// Directories are canonicalized (absolute + EvalSymlinks) and validated.
func NewManager(allowDirs []string, allowedExtensions []string) (*Manager, error) {
	if len(allowedExtensions) == 0 {
		allowedExtensions = DefaultExtensions
	}

	exts := make(map[string]struct{}, len(allowedExtensions))
	for _, e := range allowedExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || !strings.HasPrefix(e, ".") {
			return nil, fmt.Errorf("security: invalid extension: %q", e)
		}
		exts[e] = struct{}{}
	}

	canonical := make([]string, 0, len(allowDirs))
	for _, d := range allowDirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		real, err := canonicalDir(d)
		if err != nil {
			return nil, err
		}
		canonical = append(canonical, real)
	}

	return &Manager{allowedDirs: canonical, allowedExts: exts}, nil
}

// NewManagerFromConfig builds a Manager over cfg.AllowedDirs. An empty list
// denies every path.
func NewManagerFromConfig(cfg *config.Config) (*Manager, error) {
	return NewManager(cfg.AllowedDirs, nil)
}

func canonicalDir(d string) (string, error) {
	abs, err := filepath.Abs(d)
	if err != nil {
		return "", fmt.Errorf("security: resolve abs for %q: %w", d, err)
	}
	// Resolve symlinked roots so they cannot be used to escape later.
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("security: eval symlinks for %q: %w", abs, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("security: stat %q: %w", real, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("security: allow-list entry is not a directory: %q", real)
	}
	return filepath.Clean(real), nil
}

// AllowedDirectories returns the canonical allow-list roots.
func (m *Manager) AllowedDirectories() []string {
	return slices.Clone(m.allowedDirs)
}

// ValidateConfig returns an error when no allow-list entries are configured,
// so file tools stay disabled until an operator names directories.
func (m *Manager) ValidateConfig() error {
	if len(m.allowedDirs) == 0 {
		return errors.New("security: no allowed directories configured")
	}
	return nil
}

// ValidateOpenPath ensures the input refers to an existing file with an
// allowed extension inside an allow-list root and returns its canonical path.
func (m *Manager) ValidateOpenPath(input string) (string, error) {
	if input == "" {
		return "", ErrNotAllowed
	}
	if _, ok := m.allowedExts[strings.ToLower(filepath.Ext(input))]; !ok {
		return "", ErrUnsupportedExtension
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("security: abs path: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: eval symlinks: %w", err)
	}

	info, err := os.Stat(real)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: stat: %w", err)
	}
	if info.IsDir() || !m.contains(real) {
		return "", ErrNotAllowed
	}
	return real, nil
}

// ValidateWritePath checks an export target: an .xlsx file whose parent
// directory exists inside an allow-list root. The file itself may be absent;
// an existing symlink at the target is refused.
func (m *Manager) ValidateWritePath(input string) (string, error) {
	if input == "" {
		return "", ErrNotAllowed
	}
	if !slices.Contains(ExportExtensions, strings.ToLower(filepath.Ext(input))) {
		return "", ErrUnsupportedExtension
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("security: abs path: %w", err)
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: eval symlinks: %w", err)
	}
	target := filepath.Join(dir, filepath.Base(abs))
	if info, err := os.Lstat(target); err == nil {
		if info.Mode()&os.ModeSymlink != 0 || info.IsDir() {
			return "", ErrNotAllowed
		}
	}
	if !m.contains(target) {
		return "", ErrNotAllowed
	}
	return target, nil
}

// contains reports whether real lies strictly inside an allow-list root.
func (m *Manager) contains(real string) bool {
	for _, root := range m.allowedDirs {
		rel, err := filepath.Rel(root, real)
		if err != nil || rel == "." || rel == "" {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
