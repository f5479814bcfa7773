package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/metrics"
	"git.home.luguber.info/inful/bundlekit/internal/outcome"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// Compile runs every compile entry against s. Modules that fail to name or
// compile are logged and left out; only an abort or cancel stops the step.
func (t *Toolchain) Compile(ctx context.Context, s *spec.Spec) error {
	exportNames, err := exportModuleNames(s)
	if err != nil {
		return err
	}
	for _, e := range t.resolved {
		names, err := t.compileEntry(ctx, s, e)
		if err != nil {
			s.Set(spec.KeyExportModuleNames, exportNames)
			return err
		}
		exportNames = append(exportNames, names...)
	}
	s.Set(spec.KeyExportModuleNames, exportNames)
	return nil
}

func exportModuleNames(s *spec.Spec) ([]string, error) {
	v, ok := s.Get(spec.KeyExportModuleNames)
	if !ok || v == nil {
		return []string{}, nil
	}
	switch l := v.(type) {
	case []string:
		return l, nil
	case []any:
		if names := s.GetStrings(spec.KeyExportModuleNames); names != nil {
			return names, nil
		}
	}
	return nil, fmt.Errorf("spec provided %q but it is not a list of strings (got %T)", spec.KeyExportModuleNames, v)
}

func (t *Toolchain) compileEntry(ctx context.Context, s *spec.Spec, e resolvedEntry) ([]string, error) {
	modKey := e.StoreKey + spec.SuffixModpaths
	targetKey := e.StoreKey + spec.SuffixTargetpaths
	for _, key := range []string{modKey, targetKey} {
		if s.Has(key) {
			t.logger.Error("attempted to write key to spec but key already exists; not overwriting, skipping compile entry",
				logfields.SpecKey(key), slog.String("process", e.Process))
			return nil, nil
		}
	}

	sourcepaths, _ := s.GetStringMap(e.ReadKey + spec.SuffixSourcepath)
	modnames := make([]string, 0, len(sourcepaths))
	for k := range sourcepaths {
		modnames = append(modnames, k)
	}
	sort.Strings(modnames)

	all := spec.NewCompiled()
	for _, modname := range modnames {
		entry, ok := t.nameEntry(s, modname, sourcepaths[modname])
		if !ok {
			t.recorder.IncModuleResult(e.StoreKey, metrics.ResultSkipped)
			continue
		}
		compiled, err := t.invokeEntry(ctx, e, s, entry)
		if err != nil {
			switch outcome.Classify(err) {
			case outcome.Aborted, outcome.Cancelled:
				return all.ExportNames, err
			case outcome.Skipped:
				t.logger.Info("compile entry purposely skipping module",
					slog.String("process", e.Process), logfields.Modname(entry.Modname), logfields.Error(err))
				t.recorder.IncModuleResult(e.StoreKey, metrics.ResultSkipped)
			default:
				t.logger.Error("compile entry failed for module; skipping",
					slog.String("process", e.Process), logfields.Modname(entry.Modname),
					logfields.Source(entry.Source), logfields.Error(err))
				t.recorder.IncModuleResult(e.StoreKey, metrics.ResultFailed)
			}
			continue
		}
		t.merge(e, modKey, all.Modpaths, compiled.Modpaths)
		t.merge(e, targetKey, all.Targetpaths, compiled.Targetpaths)
		all.ExportNames = append(all.ExportNames, compiled.ExportNames...)
		t.recorder.IncModuleResult(e.StoreKey, metrics.ResultSuccess)
	}

	s.Set(modKey, all.Modpaths)
	s.Set(targetKey, all.Targetpaths)
	t.logger.Debug("compile entry done",
		slog.String("process", e.Process),
		slog.Int(modKey, len(all.Modpaths)),
		slog.Int(targetKey, len(all.Targetpaths)),
		slog.Int("export_module_names", len(all.ExportNames)))
	return all.ExportNames, nil
}

// nameEntry applies the Namer to one pair; false means the pair is skipped.
func (t *Toolchain) nameEntry(s *spec.Spec, modname, source string) (spec.Entry, bool) {
	var (
		e    spec.Entry
		err  error
		step string
	)
	func() {
		step = "modname_source_to_modname"
		if e.Modname, err = t.namer.ModnameSourceToModname(s, modname, source); err != nil {
			return
		}
		step = "modname_source_to_source"
		if e.Source, err = t.namer.ModnameSourceToSource(s, modname, source); err != nil {
			return
		}
		step = "modname_source_to_target"
		if e.Target, err = t.namer.ModnameSourceToTarget(s, modname, source); err != nil {
			return
		}
		step = "modname_source_target_to_modpath"
		e.Modpath, err = t.namer.ModnameSourceTargetToModpath(s, e.Modname, e.Source, e.Target)
	}()
	if err == nil {
		return e, true
	}
	attrs := []any{slog.String("step", step), logfields.Modname(modname), logfields.Source(source), logfields.Error(err)}
	if outcome.Classify(err) == outcome.Skipped {
		t.logger.Info("toolchain purposely skipping module", attrs...)
	} else {
		t.logger.Warn("toolchain failed to acquire name; skipping", attrs...)
	}
	return spec.Entry{}, false
}

func (t *Toolchain) invokeEntry(ctx context.Context, e resolvedEntry, s *spec.Spec, entry spec.Entry) (c spec.Compiled, err error) {
	err = safely(func() error {
		var herr error
		c, herr = e.handler(ctx, t, s, entry)
		return herr
	})
	return c, err
}

// merge copies fresh into base, reporting changed values when the entry
// asks for it.
func (t *Toolchain) merge(e resolvedEntry, key string, base, fresh map[string]string) {
	for k, v := range fresh {
		if old, ok := base[k]; ok && old != v && e.LogOverwrites {
			t.logger.Warn("compiled value is being rewritten; configuration may now be invalid",
				logfields.SpecKey(key), logfields.Modname(k), slog.String("from", old), slog.String("to", v))
		}
		base[k] = v
	}
}
