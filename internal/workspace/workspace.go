package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
)

// ErrNotDir is returned when a supplied build directory does not exist or
// is not a directory.
var ErrNotDir = syscall.ENOTDIR

// Manager handles build directory operations (both temporary and persistent)
type Manager struct {
	baseDir    string
	rootDir    string // removed on cleanup in ephemeral mode
	buildDir   string
	persistent bool
	logger     *slog.Logger
}

// NewManager creates a manager that allocates a temporary build directory
// under baseDir (os.TempDir when empty).
func NewManager(baseDir string, logger *slog.Logger) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{baseDir: baseDir, logger: logger}
}

// NewPersistentManager creates a manager for an existing build directory.
// The directory is never removed by Cleanup.
func NewPersistentManager(buildDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{buildDir: buildDir, persistent: true, logger: logger}
}

// Create prepares the build directory.
// For ephemeral mode: creates <tmp>/bundlekit-*/build on the canonical path.
// For persistent mode: checks the directory exists and resolves symlinks.
func (m *Manager) Create() error {
	if m.persistent {
		return m.resolvePersistent()
	}

	tmp, err := os.MkdirTemp(m.baseDir, "bundlekit-")
	if err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}
	root, err := filepath.EvalSymlinks(tmp)
	if err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("failed to resolve build directory: %w", err)
	}
	buildDir := filepath.Join(root, "build")
	if err := os.MkdirAll(buildDir, 0o750); err != nil {
		_ = os.RemoveAll(root)
		return fmt.Errorf("failed to create build directory: %w", err)
	}

	m.rootDir = root
	m.buildDir = buildDir
	m.logger.Debug("Created build directory", logfields.Path(buildDir))
	return nil
}

func (m *Manager) resolvePersistent() error {
	info, err := os.Stat(m.buildDir)
	if err != nil || !info.IsDir() {
		return &os.PathError{Op: "build_dir", Path: m.buildDir, Err: ErrNotDir}
	}
	abs, err := filepath.Abs(m.buildDir)
	if err != nil {
		return fmt.Errorf("failed to resolve build directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fmt.Errorf("failed to resolve build directory: %w", err)
	}
	if resolved != m.buildDir {
		m.logger.Info("realpath of build_dir resolved to a different location",
			logfields.Path(m.buildDir), slog.String("realpath", resolved))
	}
	m.buildDir = resolved
	return nil
}

// GetPath returns the canonical build directory.
func (m *Manager) GetPath() string {
	return m.buildDir
}

// Ephemeral reports whether Cleanup removes the directory.
func (m *Manager) Ephemeral() bool {
	return !m.persistent
}

// Cleanup removes the build directory
// For persistent mode: does nothing
// For ephemeral mode: removes the temporary tree
func (m *Manager) Cleanup() error {
	if m.persistent {
		m.logger.Debug("Skipping cleanup for supplied build directory", logfields.Path(m.buildDir))
		return nil
	}
	if m.rootDir == "" {
		return nil
	}
	if err := os.RemoveAll(m.rootDir); err != nil {
		return fmt.Errorf("failed to cleanup build directory: %w", err)
	}
	m.logger.Debug("Cleaned up build directory", logfields.Path(m.rootDir))
	m.rootDir = ""
	m.buildDir = ""
	return nil
}

// IsNotDir reports whether err is the missing build directory error.
func IsNotDir(err error) bool {
	return errors.Is(err, ErrNotDir)
}
