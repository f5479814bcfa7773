package loaderplugin

import (
	"log/slog"

	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// Catalog holds named registries a spec may refer to through
// spec.KeyLoaderPluginRegistryName.
type Catalog map[string]*Registry

// FromSpec returns the registry assigned to s, resolving and assigning one
// when needed: first by name from catalog, then fallback, then an empty
// default registry.
func FromSpec(s *spec.Spec, catalog Catalog, fallback *Registry) *Registry {
	logger := slog.Default()
	if fallback != nil {
		logger = fallback.logger
	}

	v, present := s.Get(spec.KeyLoaderPluginRegistry)
	if r, ok := v.(*Registry); ok && r != nil {
		logger.Debug("loaderplugin registry already assigned to spec", slog.String("registry", r.name))
		return r
	}
	if !present || v == nil {
		if r, ok := catalog[s.GetString(spec.KeyLoaderPluginRegistryName)]; ok && r != nil {
			logger.Info("using loaderplugin registry", slog.String("registry", r.name))
			s.Set(spec.KeyLoaderPluginRegistry, r)
			return r
		}
	}

	r := fallback
	if r == nil {
		r = NewRegistry(DefaultRegistryName, logger)
	}
	if present && v != nil {
		logger.Info("object referenced in spec is not a valid loaderplugin registry; using default loaderplugin registry",
			slog.String("registry", r.name))
	} else {
		logger.Info("no loaderplugin registry referenced in spec; using default loaderplugin registry",
			slog.String("registry", r.name))
	}
	s.Set(spec.KeyLoaderPluginRegistry, r)
	return r
}

// Groups returns the per-plugin sourcepath groups stored under key,
// creating them when absent.
func Groups(s *spec.Spec, key string) map[string]map[string]string {
	v, _ := s.Get(key)
	if g, ok := v.(map[string]map[string]string); ok {
		return g
	}
	g := map[string]map[string]string{}
	s.Set(key, g)
	return g
}

// FilterSpecSourcepaths merges the plain entries of sourcepaths into the
// map under key and the loader-plugin entries into the groups under
// groupsKey (spec.KeyLoaderPluginSourcepathMaps when empty).
func FilterSpecSourcepaths(s *spec.Spec, r *Registry, sourcepaths map[string]string, key, groupsKey string) {
	if groupsKey == "" {
		groupsKey = spec.KeyLoaderPluginSourcepathMaps
	}
	dst := s.EnsureStringMap(key)
	groups := Groups(s, groupsKey)

	plain, grouped := r.FilterSourcepaths(sourcepaths)
	for k, v := range plain {
		dst[k] = v
	}
	for name, group := range grouped {
		g, ok := groups[name]
		if !ok {
			g = map[string]string{}
			groups[name] = g
		}
		for k, v := range group {
			g[k] = v
		}
	}
}
