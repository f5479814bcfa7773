package loaderplugin

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
	"git.home.luguber.info/inful/bundlekit/internal/workspace"
)

// BaseHandler implements Handler for plugins whose modules are plain files
// copied into build_dir. Other handlers embed it.
type BaseHandler struct {
	name     string
	registry *Registry
}

// NewBaseHandler creates a handler for name bound to r for chained lookups.
func NewBaseHandler(r *Registry, name string) *BaseHandler {
	return &BaseHandler{name: name, registry: r}
}

// Name returns the plugin name.
func (b *BaseHandler) Name() string { return b.name }

// Registry returns the registry used for chained lookups.
func (b *BaseHandler) Registry() *Registry { return b.registry }

// Unwrap strips exactly one leading "name!" or "name?query!" segment.
func (b *BaseHandler) Unwrap(value string) string {
	head, rest, found := strings.Cut(value, "!")
	if !found {
		return value
	}
	if plugin, _, _ := strings.Cut(head, "?"); plugin == b.name {
		return rest
	}
	return value
}

// GenerateHandlerSourcepath resolves the handler sources of plugins chained
// behind this one. Groups that unwrap to the same mapping they came from are
// skipped to avoid recursing forever.
func (b *BaseHandler) GenerateHandlerSourcepath(ctx context.Context, s *spec.Spec, sourcepath map[string]string) map[string]string {
	result := map[string]string{}
	if b.registry == nil {
		return result
	}
	logger := b.registry.logger

	unwrapped := make(map[string]string, len(sourcepath))
	for k, v := range sourcepath {
		unwrapped[b.Unwrap(k)] = v
	}
	_, nested := b.registry.FilterSourcepaths(unwrapped)

	names := make([]string, 0, len(nested))
	for name := range nested {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		group := nested[name]
		if maps.Equal(group, sourcepath) {
			logger.Warn("loaderplugin extracted same sourcepath while locating chain loaders; skipping",
				logfields.Plugin(b.name), logfields.Source(fmt.Sprint(group)))
			continue
		}
		h, ok := b.registry.Lookup(name)
		if !ok {
			logger.Warn("loaderplugin cannot find sibling loaderplugin handler; processing may fail for the nested sources",
				logfields.Plugin(b.name),
				logfields.Package(name),
				logfields.Source(fmt.Sprint(group)))
			continue
		}
		maps.Copy(result, h.GenerateHandlerSourcepath(ctx, s, group))
	}
	return result
}

// Compile copies the module source to build_dir/target.
func (b *BaseHandler) Compile(_ context.Context, s *spec.Spec, e spec.Entry) (spec.Compiled, error) {
	buildDir := s.GetString(spec.KeyBuildDir)
	if buildDir == "" {
		return spec.Compiled{}, fmt.Errorf("loaderplugin %q: build_dir not set", b.name)
	}
	dst := filepath.Join(buildDir, filepath.FromSlash(e.Target))
	if !workspace.Within(buildDir, dst) {
		return spec.Compiled{}, fmt.Errorf("loaderplugin %q: target %s is outside build_dir", b.name, e.Target)
	}
	if err := workspace.CopyFile(e.Source, dst); err != nil {
		return spec.Compiled{}, fmt.Errorf("loaderplugin %q: %w", b.name, err)
	}
	out := spec.NewCompiled()
	out.Modpaths[e.Modname] = e.Modpath
	out.Targetpaths[e.Modname] = e.Target
	out.ExportNames = []string{e.Modname}
	return out, nil
}
