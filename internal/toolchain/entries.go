package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/bundlekit/internal/loaderplugin"
	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/sourcemap"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
	"git.home.luguber.info/inful/bundlekit/internal/workspace"
)

// CompileEntry declares one class of compiled modules. Process names the
// entry handler; sources are read from ReadKey+"_sourcepath" and results
// stored under StoreKey+"_modpaths" and StoreKey+"_targetpaths".
type CompileEntry struct {
	Process  string
	ReadKey  string
	StoreKey string
	// LogOverwrites reports modules whose modpath or target is replaced by
	// a later module of the same entry.
	LogOverwrites bool
}

// Built-in entry handler names.
const (
	ProcessTranspile    = "transpile"
	ProcessBundle       = "bundle"
	ProcessLoaderPlugin = "loaderplugin"
)

// DefaultCompileEntries returns the transpile and bundle entries.
func DefaultCompileEntries() []CompileEntry {
	return []CompileEntry{
		{Process: ProcessTranspile, ReadKey: "transpile", StoreKey: "transpiled"},
		{Process: ProcessBundle, ReadKey: "bundle", StoreKey: "bundled"},
	}
}

// LoaderPluginCompileEntry returns the entry compiling modules handled by
// loader plugins, read from "plugins_sourcepath".
func LoaderPluginCompileEntry() CompileEntry {
	return CompileEntry{Process: ProcessLoaderPlugin, ReadKey: "plugins", StoreKey: "plugins", LogOverwrites: true}
}

// EntryHandler compiles a single module into build_dir.
type EntryHandler func(ctx context.Context, tc *Toolchain, s *spec.Spec, e spec.Entry) (spec.Compiled, error)

var (
	// ErrNoTranspiler is returned by the transpile handler when the
	// toolchain was built without a Transpiler.
	ErrNoTranspiler = errors.New("toolchain has no transpiler")
	// ErrOutsideBuildDir is returned for targets escaping build_dir.
	ErrOutsideBuildDir = errors.New("build target is outside build_dir")
)

func builtinEntryHandlers() map[string]EntryHandler {
	return map[string]EntryHandler{
		ProcessTranspile:    TranspileEntry,
		ProcessBundle:       BundleEntry,
		ProcessLoaderPlugin: LoaderPluginEntry,
	}
}

func singleCompiled(e spec.Entry, export bool) spec.Compiled {
	out := spec.NewCompiled()
	out.Modpaths[e.Modname] = e.Modpath
	out.Targetpaths[e.Modname] = e.Target
	if export {
		out.ExportNames = []string{e.Modname}
	}
	return out
}

// buildTarget joins target to build_dir and checks it stays inside.
func buildTarget(s *spec.Spec, target string) (string, error) {
	buildDir := s.GetString(spec.KeyBuildDir)
	if buildDir == "" {
		return "", fmt.Errorf("build_dir is not set")
	}
	dst := filepath.Join(buildDir, filepath.FromSlash(target))
	if target == "" || !workspace.Within(buildDir, dst) || dst == filepath.Clean(buildDir) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBuildDir, target)
	}
	return dst, nil
}

// TranspileEntry runs the toolchain transpiler over the module source and
// writes the result to build_dir/target. With generate_source_map set, a
// "<target>.map" source map is written next to it and referenced from the
// output.
func TranspileEntry(ctx context.Context, tc *Toolchain, s *spec.Spec, e spec.Entry) (spec.Compiled, error) {
	if tc.transpiler == nil {
		return spec.Compiled{}, ErrNoTranspiler
	}
	dst, err := buildTarget(s, e.Target)
	if err != nil {
		return spec.Compiled{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return spec.Compiled{}, fmt.Errorf("create target directory: %w", err)
	}
	tc.logger.Info("Transpiling module", logfields.Modname(e.Modname), logfields.Source(e.Source), logfields.Target(dst))

	// #nosec G304 -- source comes from the build's sourcepath mapping
	in, err := os.Open(e.Source)
	if err != nil {
		return spec.Compiled{}, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	// #nosec G304 -- dst is confined to build_dir
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return spec.Compiled{}, fmt.Errorf("create target: %w", err)
	}
	if err := transpileTo(ctx, tc, s, e, in, out, dst); err != nil {
		_ = out.Close()
		return spec.Compiled{}, err
	}
	if err := out.Close(); err != nil {
		return spec.Compiled{}, fmt.Errorf("close target: %w", err)
	}
	return singleCompiled(e, true), nil
}

func transpileTo(ctx context.Context, tc *Toolchain, s *spec.Spec, e spec.Entry, in io.Reader, out io.Writer, dst string) error {
	w := sourcemap.NewWriter(out, sourcemap.WithLogger(tc.logger))
	if err := tc.transpiler(ctx, s, in, w); err != nil {
		return fmt.Errorf("transpile %s: %w", e.Modname, err)
	}
	if !s.GetBool(spec.KeyGenerateSourceMap) {
		return nil
	}
	mapPath := dst + ".map"
	if err := sourcemap.Create(dst, []string{e.Source}, w.Mappings()).WriteFile(mapPath); err != nil {
		return err
	}
	if _, err := io.WriteString(out, "\n//# sourceMappingURL="+filepath.Base(mapPath)+"\n"); err != nil {
		return fmt.Errorf("write source map reference: %w", err)
	}
	return nil
}

// BundleEntry copies a source file to build_dir/target, or a source
// directory to build_dir/modname. Only files are exported.
func BundleEntry(_ context.Context, tc *Toolchain, s *spec.Spec, e spec.Entry) (spec.Compiled, error) {
	info, err := os.Stat(e.Source)
	switch {
	case err == nil && info.Mode().IsRegular():
		dst, err := buildTarget(s, e.Target)
		if err != nil {
			return spec.Compiled{}, err
		}
		if err := workspace.CopyFile(e.Source, dst); err != nil {
			return spec.Compiled{}, fmt.Errorf("bundle %s: %w", e.Modname, err)
		}
		return singleCompiled(e, true), nil
	case err == nil && info.IsDir():
		dst, err := buildTarget(s, e.Modname)
		if err != nil {
			return spec.Compiled{}, err
		}
		if err := workspace.CopyTree(e.Source, dst); err != nil {
			return spec.Compiled{}, fmt.Errorf("bundle %s: %w", e.Modname, err)
		}
		return singleCompiled(e, false), nil
	default:
		tc.logger.Warn("bundle source is neither a file nor a directory; nothing copied",
			logfields.Modname(e.Modname), logfields.Source(e.Source))
		return singleCompiled(e, false), nil
	}
}

// LoaderPluginEntry hands the module to the loader plugin handler for its
// leading plugin name.
func LoaderPluginEntry(ctx context.Context, tc *Toolchain, s *spec.Spec, e spec.Entry) (spec.Compiled, error) {
	r := loaderplugin.FromSpec(s, tc.catalog, tc.loaderPlugins)
	h, ok := r.Lookup(e.Modname)
	if !ok {
		tc.logger.Warn("no loaderplugin handler found for plugin entry", logfields.Modname(e.Modname))
		return spec.NewCompiled(), nil
	}
	return h.Compile(ctx, s, e)
}
