// Package advice applies advice packages: named bundles of setup functions
// that register advices on a spec before a toolchain run starts.
package advice

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// SetupFunc registers advices for one toolchain. extras is sorted.
type SetupFunc func(ctx context.Context, s *spec.Spec, extras []string) error

// Registry records setup functions per advice package and toolchain name,
// and the advice packages implied by source packages.
type Registry struct {
	name    string
	logger  *slog.Logger
	records map[string]map[string]SetupFunc
	implied map[string][]Requirement
}

// NewRegistry creates an empty registry.
func NewRegistry(name string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		name:    name,
		logger:  logger,
		records: map[string]map[string]SetupFunc{},
		implied: map[string][]Requirement{},
	}
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Register declares that advice package pkg provides fn for toolchains
// named toolchainName or derived from it.
func (r *Registry) Register(pkg, toolchainName string, fn SetupFunc) {
	rec, ok := r.records[pkg]
	if !ok {
		rec = map[string]SetupFunc{}
		r.records[pkg] = rec
	}
	rec[toolchainName] = fn
}

// RegisterApply declares that whenever sourcePkg is listed under
// spec.KeySourcePackageNames, requirement is applied as well.
func (r *Registry) RegisterApply(sourcePkg, requirement string) error {
	req, err := ParseRequirement(requirement)
	if err != nil {
		return fmt.Errorf("register advice apply for %s: %w", sourcePkg, err)
	}
	r.implied[sourcePkg] = append(r.implied[sourcePkg], req)
	return nil
}

// Applied returns the requirements already applied to s, keyed by name.
func Applied(s *spec.Spec) map[string]Requirement {
	out := map[string]Requirement{}
	for _, v := range s.GetStrings(spec.KeyAdvicePackagesAppliedRequirements) {
		if req, err := ParseRequirement(v); err == nil {
			out[req.Name] = req
		}
	}
	return out
}

func markApplied(s *spec.Spec, req Requirement) {
	applied := s.GetStrings(spec.KeyAdvicePackagesAppliedRequirements)
	s.Set(spec.KeyAdvicePackagesAppliedRequirements, append(append([]string(nil), applied...), req.String()))
}

// Apply runs the setup functions of every advice package listed under
// spec.KeyAdvicePackages, then of those implied by the source packages.
// lineage is the toolchain name followed by the names it derives from;
// every matching setup function is invoked in that order. Requirements
// already recorded as applied are skipped.
func (r *Registry) Apply(ctx context.Context, lineage []string, s *spec.Spec) {
	applied := Applied(s)
	newly := map[string]Requirement{}
	r.logger.Debug("applying advice packages", slog.String("registry", r.name))

	for _, value := range s.GetStrings(spec.KeyAdvicePackages) {
		req, err := ParseRequirement(value)
		if err != nil {
			r.logger.Error("the specified value for advice setup is not valid for a package requirement",
				logfields.Package(value), logfields.Error(err))
			continue
		}
		if prev, ok := applied[req.Name]; ok {
			r.logger.Warn("advice package already applied; skipping",
				logfields.Package(req.String()), slog.String("applied_as", prev.String()))
			continue
		}
		if prev, ok := newly[req.Name]; ok {
			r.logger.Warn("advice package was previously applied; specify each advice package once with all required extras",
				logfields.Package(req.String()), slog.String("applied_as", prev.String()))
		}
		r.logger.Debug("applying advice package", logfields.Package(req.String()))
		r.applyRequirement(ctx, lineage, s, req)
		newly[req.Name] = req
	}

	applied = Applied(s)
	for _, pkg := range s.GetStrings(spec.KeySourcePackageNames) {
		reqs := r.implied[pkg]
		if len(reqs) == 0 {
			continue
		}
		r.logger.Info("source package specified advice packages to be applied",
			logfields.Package(pkg), slog.Int("count", len(reqs)))
		for _, req := range reqs {
			if prev, ok := applied[req.Name]; ok {
				r.logger.Debug("skipping specified advice package as it was already applied",
					logfields.Package(req.String()), slog.String("applied_as", prev.String()))
				continue
			}
			r.applyRequirement(ctx, lineage, s, req)
			applied[req.Name] = req
		}
	}
}

func (r *Registry) applyRequirement(ctx context.Context, lineage []string, s *spec.Spec, req Requirement) {
	defer markApplied(s, req)

	rec, ok := r.records[req.Name]
	if !ok {
		r.logger.Warn("advice setup steps required from package, however it is not registered; build may continue",
			logfields.Package(req.String()))
		return
	}

	found := false
	for _, name := range lineage {
		fn, ok := rec[name]
		if !ok {
			continue
		}
		found = true
		if fn == nil {
			r.logger.Error("advice setup step registered without a function",
				logfields.Package(req.String()), logfields.Toolchain(name))
			continue
		}
		if err := r.invoke(ctx, fn, s, req.Extras); err != nil {
			r.logger.Error("failure encountered while setting up advices",
				logfields.Package(req.String()), logfields.Toolchain(name), logfields.Error(err))
			continue
		}
		r.logger.Debug("advice setup step applied", logfields.Package(req.String()), logfields.Toolchain(name))
	}
	if !found {
		r.logger.Debug("no compatible advice setup steps found", logfields.Package(req.String()))
	}
}

func (r *Registry) invoke(ctx context.Context, fn SetupFunc, s *spec.Spec, extras []string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("setup panicked: %v\n%s", rec, debug.Stack())
		}
	}()
	return fn(ctx, s, append([]string(nil), extras...))
}
