package config

import (
	"path/filepath"

	"git.home.luguber.info/inful/bundlekit/internal/loaderplugin"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// NewSpec seeds a build state from the configuration. Source paths are
// resolved against working_dir; module names carrying a loader plugin
// prefix are routed to the loader plugin groups of r.
func (c *Config) NewSpec(r *loaderplugin.Registry, opts ...spec.Option) (*spec.Spec, error) {
	workingDir, err := filepath.Abs(c.Build.WorkingDir)
	if err != nil {
		return nil, err
	}
	s := spec.New(opts...)
	s.Set(spec.KeyWorkingDir, workingDir)
	if c.Build.BuildDir != "" {
		s.Set(spec.KeyBuildDir, c.Build.BuildDir)
	}
	if c.Build.ExportTarget != "" {
		s.Set(spec.KeyExportTarget, c.Build.ExportTarget)
	}
	s.Set(spec.KeyExportTargetOverwrite, c.Build.Overwrite)
	s.Set(spec.KeyGenerateSourceMap, c.Build.SourceMaps)
	if c.Build.Debug > 0 {
		s.Set(spec.KeyDebug, c.Build.Debug)
	}
	if len(c.Build.ExportModuleNames) > 0 {
		s.Set(spec.KeyExportModuleNames, append([]string(nil), c.Build.ExportModuleNames...))
	}
	if len(c.Advice.Packages) > 0 {
		s.Set(spec.KeyAdvicePackages, append([]string(nil), c.Advice.Packages...))
	}
	if len(c.Advice.SourcePackages) > 0 {
		s.Set(spec.KeySourcePackageNames, append([]string(nil), c.Advice.SourcePackages...))
	}
	if r != nil {
		s.Set(spec.KeyLoaderPluginRegistry, r)
	}

	for prefix, sources := range map[string]map[string]string{
		"transpile": c.Sources.Transpile,
		"bundle":    c.Sources.Bundle,
	} {
		if len(sources) == 0 {
			continue
		}
		resolved := make(map[string]string, len(sources))
		for modname, p := range sources {
			if !filepath.IsAbs(p) {
				p = filepath.Join(workingDir, p)
			}
			resolved[modname] = p
		}
		key := prefix + spec.SuffixSourcepath
		if r == nil {
			s.Set(key, resolved)
			continue
		}
		loaderplugin.FilterSpecSourcepaths(s, r, resolved, key, "")
	}
	return s, nil
}
