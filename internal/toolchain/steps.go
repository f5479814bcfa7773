package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/outcome"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// ErrNotImplemented is returned by BaseSteps for the phases a concrete
// toolchain must supply.
var ErrNotImplemented = errors.New("toolchain step not implemented")

// Steps supplies the phases other than compile.
type Steps interface {
	Prepare(ctx context.Context, tc *Toolchain, s *spec.Spec) error
	Assemble(ctx context.Context, tc *Toolchain, s *spec.Spec) error
	Link(ctx context.Context, tc *Toolchain, s *spec.Spec) error
	Finalize(ctx context.Context, tc *Toolchain, s *spec.Spec) error
}

// BaseSteps leaves prepare and finalize empty and refuses to assemble or
// link.
type BaseSteps struct{}

func (BaseSteps) Prepare(context.Context, *Toolchain, *spec.Spec) error { return nil }

func (BaseSteps) Assemble(context.Context, *Toolchain, *spec.Spec) error {
	return fmt.Errorf("assemble: %w", ErrNotImplemented)
}

func (BaseSteps) Link(context.Context, *Toolchain, *spec.Spec) error {
	return fmt.Errorf("link: %w", ErrNotImplemented)
}

func (BaseSteps) Finalize(context.Context, *Toolchain, *spec.Spec) error { return nil }

// NullSteps only records that each phase ran.
type NullSteps struct{ BaseSteps }

func (NullSteps) Prepare(_ context.Context, _ *Toolchain, s *spec.Spec) error {
	s.Set("prepare", "prepared")
	return nil
}

func (NullSteps) Assemble(_ context.Context, _ *Toolchain, s *spec.Spec) error {
	s.Set("assemble", "assembled")
	return nil
}

func (NullSteps) Link(_ context.Context, _ *Toolchain, s *spec.Spec) error {
	s.Set("link", "linked")
	return nil
}

// KeyConcatInputs holds the build_dir files ConcatSteps links, in order.
const KeyConcatInputs = "concat_inputs"

// ConcatSteps links every compiled file into export_target.
//
// Prepare checks export_target and merges loader plugin sourcepaths into
// "plugins_sourcepath", bundling the plugin runtime files. Assemble orders
// the compiled targets entry by entry and modname by modname. Link writes
// them one after another into export_target.
type ConcatSteps struct{ BaseSteps }

func (ConcatSteps) Prepare(ctx context.Context, tc *Toolchain, s *spec.Spec) error {
	target := s.GetString(spec.KeyExportTarget)
	if target == "" {
		return outcome.Abort("%s is not set", spec.KeyExportTarget)
	}
	if _, err := os.Stat(target); err == nil && !s.GetBool(spec.KeyExportTargetOverwrite) {
		return outcome.Abort("export target %s already exists and %s is not set", target, spec.KeyExportTargetOverwrite)
	}
	tc.PrepareLoaderPlugins(ctx, s, LoaderPluginCompileEntry().ReadKey, "bundle"+spec.SuffixSourcepath)
	return nil
}

func (ConcatSteps) Assemble(_ context.Context, tc *Toolchain, s *spec.Spec) error {
	buildDir := s.GetString(spec.KeyBuildDir)
	var inputs []string
	for _, e := range tc.CompileEntries() {
		targets, _ := s.GetStringMap(e.StoreKey + spec.SuffixTargetpaths)
		modnames := make([]string, 0, len(targets))
		for k := range targets {
			modnames = append(modnames, k)
		}
		sort.Strings(modnames)
		for _, m := range modnames {
			p, err := buildTarget(s, targets[m])
			if err != nil {
				return outcome.AbortWith(err, "invalid compiled target for "+m)
			}
			if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
				tc.logger.Debug("Skipping non-file target", logfields.Modname(m), logfields.Path(p))
				continue
			}
			inputs = append(inputs, p)
		}
	}
	tc.logger.Debug("Assembled concat inputs", logfields.Path(buildDir), logfields.SpecKey(KeyConcatInputs))
	s.Set(KeyConcatInputs, inputs)
	return nil
}

func (ConcatSteps) Link(_ context.Context, tc *Toolchain, s *spec.Spec) error {
	target := s.GetString(spec.KeyExportTarget)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create export target directory: %w", err)
	}
	// #nosec G304 -- export target is operator configuration
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create export target: %w", err)
	}
	for _, p := range s.GetStrings(KeyConcatInputs) {
		if err := appendFile(out, p); err != nil {
			_ = out.Close()
			return err
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close export target: %w", err)
	}
	s.Set(spec.KeyArtifactPaths, append(append([]string(nil), s.GetStrings(spec.KeyArtifactPaths)...), target))
	tc.logger.Info("Linked export target", logfields.Path(target))
	return nil
}

func appendFile(w io.Writer, path string) error {
	// #nosec G304 -- path is a compiled file inside build_dir
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read compiled file: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export target: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("write export target: %w", err)
		}
	}
	return nil
}
