package loaderplugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// DefaultRegistryName names the registry created when a spec does not
// provide one.
const DefaultRegistryName = "<default_loaderplugins>"

var (
	// ErrNoHandler is returned when the leading plugin of a modname has no
	// registered handler.
	ErrNoHandler = errors.New("no loaderplugin handler registered")
	// ErrNoProgress is returned when unwrapping stops shortening a modname.
	ErrNoProgress = errors.New("loaderplugin chain made no progress")
)

// Handler processes the modules of one loader plugin.
type Handler interface {
	Name() string
	// Unwrap removes this handler's prefix from value, or returns value
	// unchanged when the prefix belongs to another plugin.
	Unwrap(value string) string
	// GenerateHandlerSourcepath returns modname to source path entries for
	// the runtime files the plugin itself needs.
	GenerateHandlerSourcepath(ctx context.Context, s *spec.Spec, sourcepath map[string]string) map[string]string
	// Compile writes one plugin module into build_dir.
	Compile(ctx context.Context, s *spec.Spec, e spec.Entry) (spec.Compiled, error)
}

// TargetNamer is implemented by handlers that name their targets
// differently from the stripped modname.
type TargetNamer interface {
	TargetName(s *spec.Spec, modname, source string) (string, error)
}

// Registry maps plugin names to handlers.
type Registry struct {
	name     string
	logger   *slog.Logger
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry(name string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{name: name, logger: logger, handlers: map[string]Handler{}}
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Logger returns the logger shared by the registry's handlers.
func (r *Registry) Logger() *slog.Logger { return r.logger }

// Register adds h under h.Name(). An existing handler of the same name is
// replaced with a warning.
func (r *Registry) Register(h Handler) {
	if old, ok := r.handlers[h.Name()]; ok {
		r.logger.Warn("loader plugin handler already registered; overriding registration",
			logfields.Plugin(h.Name()),
			slog.String("registry", r.name),
			slog.String("previous", fmt.Sprintf("%T", old)),
			slog.String("replacement", fmt.Sprintf("%T", h)))
	}
	r.handlers[h.Name()] = h
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PluginName returns the text before the first '!' with any "?query"
// removed.
func PluginName(value string) string {
	head, _, _ := strings.Cut(value, "!")
	head, _, _ = strings.Cut(head, "?")
	return head
}

// PluginName is the registry-bound form of the package function.
func (r *Registry) PluginName(value string) string { return PluginName(value) }

// Lookup returns the handler for the plugin that value starts with.
func (r *Registry) Lookup(value string) (Handler, bool) {
	h, ok := r.handlers[PluginName(value)]
	return h, ok
}

// ModnameSourceToTarget strips every resolvable plugin prefix from modname,
// left to right. Decomposition stops at the first prefix without a handler,
// which stays part of the result. The handler that performed the final
// unwrap may rename the result through TargetNamer.
func (r *Registry) ModnameSourceToTarget(s *spec.Spec, modname, source string) (string, error) {
	h, ok := r.Lookup(modname)
	if !ok {
		return "", fmt.Errorf("%w for %q in registry %q", ErrNoHandler, PluginName(modname), r.name)
	}

	current := modname
	seen := map[string]struct{}{}
	for {
		seen[current] = struct{}{}
		stripped := h.Unwrap(current)
		if stripped == current {
			r.logger.Warn("loaderplugin handler did not unwrap modname",
				logfields.Plugin(h.Name()), logfields.Modname(current))
			return "", fmt.Errorf("%w: handler %q on %q", ErrNoProgress, h.Name(), current)
		}
		if _, dup := seen[stripped]; dup {
			return "", fmt.Errorf("%w: %q repeats while unwrapping %q", ErrNoProgress, stripped, modname)
		}
		current = stripped

		if !strings.Contains(current, "!") {
			break
		}
		next, ok := r.Lookup(current)
		if !ok {
			break
		}
		h = next
	}

	if namer, ok := h.(TargetNamer); ok {
		return namer.TargetName(s, current, source)
	}
	return current, nil
}

// FilterSourcepaths splits a modname to source path mapping into the plain
// entries and the loader-plugin entries grouped by plugin name. Chained
// modnames are grouped under their leading plugin only.
func (r *Registry) FilterSourcepaths(sourcepaths map[string]string) (plain map[string]string, grouped map[string]map[string]string) {
	plain = map[string]string{}
	grouped = map[string]map[string]string{}
	for modname, source := range sourcepaths {
		if !strings.Contains(modname, "!") {
			plain[modname] = source
			continue
		}
		name := PluginName(modname)
		group, ok := grouped[name]
		if !ok {
			group = map[string]string{}
			grouped[name] = group
		}
		group[modname] = source
	}
	return plain, grouped
}
