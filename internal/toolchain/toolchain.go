package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/bundlekit/internal/advice"
	"git.home.luguber.info/inful/bundlekit/internal/loaderplugin"
	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/metrics"
	"git.home.luguber.info/inful/bundlekit/internal/outcome"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
	"git.home.luguber.info/inful/bundlekit/internal/workspace"
)

// ErrCrashed wraps the cause of a run that ended on an unexpected error or
// panic.
var ErrCrashed = errors.New("toolchain run crashed")

// Toolchain is the phase driver. A Toolchain holds no per-run state and
// may run any number of specs, one at a time per spec.
type Toolchain struct {
	name       string
	parents    []string
	steps      Steps
	entries    []CompileEntry
	handlers   map[string]EntryHandler
	resolved   []resolvedEntry
	namer      Namer
	suffix     string
	transpiler Transpiler

	loaderPlugins *loaderplugin.Registry
	catalog       loaderplugin.Catalog
	advice        *advice.Registry

	recorder  metrics.Recorder
	observers []Observer
	logger    *slog.Logger
	tempBase  string
}

type resolvedEntry struct {
	CompileEntry
	handler EntryHandler
}

// Option configures a Toolchain.
type Option func(*Toolchain)

// WithName sets the toolchain name used in logs, reports and advice
// package lookups.
func WithName(name string) Option {
	return func(t *Toolchain) { t.name = name }
}

// WithLineage sets the names the toolchain derives from, nearest first.
// Advice packages registered for any of them apply to this toolchain.
func WithLineage(parents ...string) Option {
	return func(t *Toolchain) { t.parents = parents }
}

// WithSteps sets the prepare, assemble, link and finalize implementations.
func WithSteps(steps Steps) Option {
	return func(t *Toolchain) { t.steps = steps }
}

// WithCompileEntries replaces the compile entries.
func WithCompileEntries(entries ...CompileEntry) Option {
	return func(t *Toolchain) { t.entries = entries }
}

// WithEntryHandler registers fn as the handler for process.
func WithEntryHandler(process string, fn EntryHandler) Option {
	return func(t *Toolchain) { t.handlers[process] = fn }
}

// WithNamer replaces the DefaultNamer.
func WithNamer(n Namer) Option {
	return func(t *Toolchain) { t.namer = n }
}

// WithFilenameSuffix sets the suffix the DefaultNamer appends to targets.
func WithFilenameSuffix(suffix string) Option {
	return func(t *Toolchain) { t.suffix = suffix }
}

// WithTranspiler sets the transpiler used by the transpile entry handler.
func WithTranspiler(fn Transpiler) Option {
	return func(t *Toolchain) { t.transpiler = fn }
}

// WithLoaderPlugins sets the fallback loader plugin registry and the
// catalog searched for spec.KeyLoaderPluginRegistryName.
func WithLoaderPlugins(r *loaderplugin.Registry, catalog loaderplugin.Catalog) Option {
	return func(t *Toolchain) {
		t.loaderPlugins = r
		t.catalog = catalog
	}
}

// WithAdviceRegistry sets the registry used to apply advice packages.
func WithAdviceRegistry(r *advice.Registry) Option {
	return func(t *Toolchain) { t.advice = r }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(t *Toolchain) {
		if r != nil {
			t.recorder = r
		}
	}
}

// WithObserver adds an observer notified of phase and run completion.
func WithObserver(o Observer) Option {
	return func(t *Toolchain) {
		if o != nil {
			t.observers = append(t.observers, o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Toolchain) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithTempDir sets where auto-created build directories are allocated.
func WithTempDir(dir string) Option {
	return func(t *Toolchain) { t.tempBase = dir }
}

// New creates a toolchain. Without options it has the transpile and bundle
// compile entries, no transpiler and BaseSteps, so assemble and link fail
// with ErrNotImplemented.
func New(opts ...Option) *Toolchain {
	t := &Toolchain{
		name:     "toolchain",
		steps:    BaseSteps{},
		entries:  DefaultCompileEntries(),
		handlers: builtinEntryHandlers(),
		suffix:   ".js",
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.namer == nil {
		t.namer = DefaultNamer{Suffix: t.suffix}
	}
	t.resolveEntries()
	return t
}

// NewNull creates the trivial toolchain: files are copied unchanged and
// the prepare, assemble and link phases only mark the Spec.
func NewNull(opts ...Option) *Toolchain {
	base := []Option{
		WithName("null"),
		WithLineage("toolchain"),
		WithSteps(NullSteps{}),
		WithTranspiler(NullTranspiler),
	}
	return New(append(base, opts...)...)
}

// NewConcat creates a toolchain that links every compiled file into
// export_target. Loader plugin modules are compiled too.
func NewConcat(opts ...Option) *Toolchain {
	base := []Option{
		WithName("concat"),
		WithLineage("toolchain"),
		WithSteps(ConcatSteps{}),
		WithTranspiler(NullTranspiler),
		WithCompileEntries(append(DefaultCompileEntries(), LoaderPluginCompileEntry())...),
	}
	return New(append(base, opts...)...)
}

// resolveEntries binds every compile entry to its handler once.
func (t *Toolchain) resolveEntries() {
	t.resolved = t.resolved[:0]
	for _, e := range t.entries {
		h, ok := t.handlers[e.Process]
		if !ok || h == nil {
			t.logger.Error("compile entry handler is not registered; skipping entry",
				logfields.Toolchain(t.name), slog.String("process", e.Process), slog.String("read_key", e.ReadKey))
			continue
		}
		t.resolved = append(t.resolved, resolvedEntry{CompileEntry: e, handler: h})
	}
}

// Name returns the toolchain name.
func (t *Toolchain) Name() string { return t.name }

// Lineage returns the toolchain name followed by its parents.
func (t *Toolchain) Lineage() []string {
	out := []string{t.name}
	seen := map[string]struct{}{t.name: {}}
	for _, p := range t.parents {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// CompileEntries returns the entries bound to a handler.
func (t *Toolchain) CompileEntries() []CompileEntry {
	out := make([]CompileEntry, 0, len(t.resolved))
	for _, r := range t.resolved {
		out = append(out, r.CompileEntry)
	}
	return out
}

// Logger returns the toolchain logger.
func (t *Toolchain) Logger() *slog.Logger { return t.logger }

// Run drives s through every phase. CLEANUP is always handled. An abort
// returns the abort signal; a cancel returns nil; anything else unexpected
// returns an error wrapping ErrCrashed. The report is always returned.
func (t *Toolchain) Run(ctx context.Context, s *spec.Spec) (*Report, error) {
	rep := newReport(t.name)
	rep.BuildID = t.ensureBuildID(s)
	logger := t.logger.With(logfields.Toolchain(t.name), logfields.BuildID(rep.BuildID))
	logger.Info("Toolchain run starting")

	var ws *workspace.Manager
	runErr := safely(func() error {
		m, err := t.resolveBuildDir(s, logger)
		ws = m
		if err != nil {
			return err
		}
		rep.BuildDir = s.GetString(spec.KeyBuildDir)
		t.realpath(s, spec.KeyExportTarget, logger)
		t.applyAdvicePackages(ctx, s, logger)
		return t.execute(ctx, s, rep, logger)
	})

	t.cleanup(ctx, s, ws, logger)
	return rep, t.finish(rep, s, runErr, logger)
}

func (t *Toolchain) ensureBuildID(s *spec.Spec) string {
	if id := s.GetString(spec.KeyBuildID); id != "" {
		return id
	}
	id := uuid.NewString()
	s.Set(spec.KeyBuildID, id)
	return id
}

func (t *Toolchain) applyAdvicePackages(ctx context.Context, s *spec.Spec, logger *slog.Logger) {
	pkgs := s.GetStrings(spec.KeyAdvicePackages)
	if t.advice == nil {
		if len(pkgs) > 0 || len(s.GetStrings(spec.KeySourcePackageNames)) > 0 {
			logger.Warn("no advice registry configured; all package advice steps will be skipped")
		}
		return
	}
	logger.Debug("setting up advices", slog.String("registry", t.advice.Name()))
	for _, p := range pkgs {
		if req, err := advice.ParseRequirement(p); err == nil {
			t.recorder.IncAdvicePackage(req.Name)
		}
	}
	t.advice.Apply(ctx, t.Lineage(), s)
}

func (t *Toolchain) execute(ctx context.Context, s *spec.Spec, rep *Report, logger *slog.Logger) error {
	if err := s.Handle(ctx, spec.Setup); err != nil {
		return err
	}
	for _, p := range Phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Handle(ctx, p.Before()); err != nil {
			return err
		}
		for _, o := range t.allObservers() {
			o.OnPhaseStart(p)
		}
		start := time.Now()
		err := safely(func() error { return t.runPhase(ctx, p, s) })
		d := time.Since(start)
		rep.PhaseDurations[p] = d
		for _, o := range t.allObservers() {
			o.OnPhaseComplete(p, d, err)
		}
		if err != nil {
			logger.Debug("Phase stopped the run", logfields.Phase(string(p)), logfields.Error(err))
			return err
		}
		logger.Debug("Phase completed", logfields.Phase(string(p)), logfields.DurationMS(float64(d.Microseconds())/1000))
		if err := s.Handle(ctx, p.After()); err != nil {
			return err
		}
	}
	return s.Handle(ctx, spec.Success)
}

func (t *Toolchain) runPhase(ctx context.Context, p Phase, s *spec.Spec) error {
	switch p {
	case PhasePrepare:
		return t.steps.Prepare(ctx, t, s)
	case PhaseCompile:
		return t.Compile(ctx, s)
	case PhaseAssemble:
		return t.steps.Assemble(ctx, t, s)
	case PhaseLink:
		return t.steps.Link(ctx, t, s)
	case PhaseFinalize:
		return t.steps.Finalize(ctx, t, s)
	default:
		return fmt.Errorf("unknown phase %q", p)
	}
}

func (t *Toolchain) cleanup(ctx context.Context, s *spec.Spec, ws *workspace.Manager, logger *slog.Logger) {
	if err := s.Handle(context.WithoutCancel(ctx), spec.Cleanup); err != nil {
		logger.Warn("cleanup advices stopped early", logfields.Error(err))
	}
	if ws == nil || !ws.Ephemeral() {
		return
	}
	if err := ws.Cleanup(); err != nil {
		logger.Warn("failed to remove build_dir", logfields.Error(err))
	}
}

func (t *Toolchain) finish(rep *Report, s *spec.Spec, runErr error, logger *slog.Logger) error {
	rep.Finished = time.Now()
	rep.ExportTarget = s.GetString(spec.KeyExportTarget)
	rep.ExportModuleNames = s.GetStrings(spec.KeyExportModuleNames)
	rep.Reason = runErr
	if runErr != nil {
		rep.Error = runErr.Error()
	}

	var err error
	kind := outcome.Classify(runErr)
	switch kind {
	case outcome.Completed:
		logger.Info("Toolchain run completed", logfields.DurationMS(float64(rep.Duration().Milliseconds())))
	case outcome.Aborted:
		logger.Error("Toolchain run aborted", logfields.Error(runErr))
		err = runErr
	case outcome.Cancelled:
		logger.Info("Toolchain run cancelled", logfields.Error(runErr))
	default:
		kind = outcome.Crashed
		logger.Error("Toolchain run terminated due to an unexpected error", logfields.Error(runErr))
		err = fmt.Errorf("%w: %w", ErrCrashed, runErr)
	}
	rep.Outcome = kind

	for _, o := range t.allObservers() {
		o.OnRunComplete(rep)
	}
	return err
}

func (t *Toolchain) allObservers() []Observer {
	out := make([]Observer, 0, len(t.observers)+1)
	out = append(out, recorderObserver{rec: t.recorder})
	return append(out, t.observers...)
}

// safely runs fn, converting a panic into an error carrying the stack.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}

func resultLabel(err error) metrics.ResultLabel {
	switch outcome.Classify(err) {
	case outcome.Completed:
		return metrics.ResultSuccess
	case outcome.Cancelled:
		return metrics.ResultCanceled
	case outcome.Skipped:
		return metrics.ResultSkipped
	default:
		return metrics.ResultFailed
	}
}
