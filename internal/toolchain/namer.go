package toolchain

import (
	"errors"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/bundlekit/internal/loaderplugin"
	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// Namer derives the compile Entry of one (modname, source) pair. Returning
// an outcome.Skip signal drops the pair quietly; any other error drops it
// with a warning.
type Namer interface {
	ModnameSourceToModname(s *spec.Spec, modname, source string) (string, error)
	ModnameSourceToSource(s *spec.Spec, modname, source string) (string, error)
	// ModnameSourceToTarget returns a build_dir relative target using '/'
	// separators regardless of platform.
	ModnameSourceToTarget(s *spec.Spec, modname, source string) (string, error)
	ModnameSourceTargetToModpath(s *spec.Spec, modname, source, target string) (string, error)
}

// DefaultNamer keeps modnames and sources as given and names targets after
// the modname, appending Suffix when the source carries it.
type DefaultNamer struct {
	Suffix string
}

func (DefaultNamer) ModnameSourceToModname(_ *spec.Spec, modname, _ string) (string, error) {
	return modname, nil
}

func (DefaultNamer) ModnameSourceToSource(_ *spec.Spec, _, source string) (string, error) {
	return source, nil
}

// ModnameSourceToTarget routes modnames carrying a loader plugin prefix
// through the registry assigned to the Spec. Names whose leading plugin has
// no handler are logged and fall back to the plain rule, leaving the
// plugin prefix in place.
func (n DefaultNamer) ModnameSourceToTarget(s *spec.Spec, modname, source string) (string, error) {
	if strings.Contains(modname, "!") {
		if v, ok := s.Get(spec.KeyLoaderPluginRegistry); ok {
			if r, ok := v.(*loaderplugin.Registry); ok && r != nil {
				target, err := r.ModnameSourceToTarget(s, modname, source)
				if !errors.Is(err, loaderplugin.ErrNoHandler) {
					return target, err
				}
				s.Logger().Info("No loaderplugin handler for module; keeping plugin prefix",
					logfields.Plugin(loaderplugin.PluginName(modname)),
					slog.String("registry", r.Name()),
					logfields.Modname(modname))
			}
		}
	}
	if n.Suffix != "" && strings.HasSuffix(source, n.Suffix) && !strings.HasSuffix(modname, n.Suffix) {
		return modname + n.Suffix, nil
	}
	return modname, nil
}

// ModnameSourceTargetToModpath returns the modname; tools linking the
// output resolve modules by name rather than by file.
func (DefaultNamer) ModnameSourceTargetToModpath(_ *spec.Spec, modname, _, _ string) (string, error) {
	return modname, nil
}
