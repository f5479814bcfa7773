package toolchain

import (
	"context"
	"log/slog"
	"maps"
	"sort"

	"git.home.luguber.info/inful/bundlekit/internal/loaderplugin"
	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// PrepareLoaderPlugins merges the loader plugin groups filtered into
// spec.KeyLoaderPluginSourcepathMaps back into readKey+"_sourcepath" for
// every plugin with a handler, and collects the handlers' own runtime
// sources under handlerSourcepathKey (dropped when empty). Groups without a
// handler are reported and left out of the build.
func (t *Toolchain) PrepareLoaderPlugins(ctx context.Context, s *spec.Spec, readKey, handlerSourcepathKey string) {
	r := loaderplugin.FromSpec(s, t.catalog, t.loaderPlugins)
	pluginSourcepath := s.EnsureStringMap(readKey + spec.SuffixSourcepath)
	handlerSourcepath := map[string]string{}
	if handlerSourcepathKey != "" {
		handlerSourcepath = s.EnsureStringMap(handlerSourcepathKey)
	}

	groups := loaderplugin.Groups(s, spec.KeyLoaderPluginSourcepathMaps)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		group := groups[name]
		h, ok := r.Lookup(name)
		if !ok {
			modnames := make([]string, 0, len(group))
			for k := range group {
				modnames = append(modnames, k)
			}
			sort.Strings(modnames)
			t.logger.Warn("loaderplugin handler not found in registry; the sources referenced by these names will not be compiled into the build target",
				logfields.Plugin(name), slog.String("registry", r.Name()), slog.Any("modnames", modnames))
			continue
		}
		t.logger.Debug("found handler for loader plugin", logfields.Plugin(name), slog.Int("count", len(group)))
		maps.Copy(pluginSourcepath, group)
		maps.Copy(handlerSourcepath, h.GenerateHandlerSourcepath(ctx, s, group))
	}
}
