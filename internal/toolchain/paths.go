package toolchain

import (
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/outcome"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
	"git.home.luguber.info/inful/bundlekit/internal/workspace"
)

// resolveBuildDir allocates a temporary build_dir when the Spec has none,
// otherwise checks the given one and records its canonical path. The
// returned manager is non-nil whenever a directory was allocated.
func (t *Toolchain) resolveBuildDir(s *spec.Spec, logger *slog.Logger) (*workspace.Manager, error) {
	dir := s.GetString(spec.KeyBuildDir)
	if dir == "" {
		m := workspace.NewManager(t.tempBase, logger)
		if err := m.Create(); err != nil {
			return nil, err
		}
		s.Set(spec.KeyBuildDir, m.GetPath())
		return m, nil
	}

	m := workspace.NewPersistentManager(t.joinWorkingDir(s, dir), logger)
	if err := m.Create(); err != nil {
		if workspace.IsNotDir(err) {
			logger.Error("build_dir is not a directory", logfields.Path(dir))
			return nil, outcome.AbortWith(err, "build_dir is not a directory")
		}
		return nil, err
	}
	if m.GetPath() != dir {
		s.Set(spec.KeyBuildDir, m.GetPath())
	}
	return m, nil
}

func (t *Toolchain) joinWorkingDir(s *spec.Spec, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.GetString(spec.KeyWorkingDir), p)
}

// realpath rewrites the path stored under key, relative to working_dir,
// to its canonical form.
func (t *Toolchain) realpath(s *spec.Spec, key string, logger *slog.Logger) {
	v, ok := s.Get(key)
	if !ok {
		return
	}
	p, _ := v.(string)
	if p == "" {
		logger.Warn("cannot resolve realpath as it is not defined", logfields.SpecKey(key))
		return
	}
	check := canonicalPath(t.joinWorkingDir(s, p))
	if check != p {
		s.Set(key, check)
		logger.Warn("realpath resolved to a different location; spec is updated",
			logfields.SpecKey(key), logfields.Path(check))
	}
}

// canonicalPath makes p absolute and resolves symlinks in the deepest
// existing ancestor.
func canonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	rest := ""
	dir := abs
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest)
		} else if !os.IsNotExist(err) {
			return abs
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}
