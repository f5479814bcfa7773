package commands

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/bundlekit/internal/advice"
	"git.home.luguber.info/inful/bundlekit/internal/buildlog"
	"git.home.luguber.info/inful/bundlekit/internal/config"
	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
	"git.home.luguber.info/inful/bundlekit/internal/loaderplugin"
	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/metrics"
	"git.home.luguber.info/inful/bundlekit/internal/notify"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
	"git.home.luguber.info/inful/bundlekit/internal/toolchain"
)

// runner owns one configured toolchain and the collaborators attached to
// it. A runner may execute any number of runs, one at a time.
type runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	tc       *toolchain.Toolchain
	plugins  *loaderplugin.Registry
	registry *prom.Registry
	store    *buildlog.Store
	notifier *notify.Client
}

func newRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runner, error) {
	r := &runner{cfg: cfg, logger: logger, registry: prom.NewRegistry()}

	r.plugins = loaderplugin.NewRegistry("bundlekit.loaderplugins", logger)
	for _, name := range slices.Sorted(maps.Keys(cfg.LoaderPlugins)) {
		r.plugins.Register(loaderplugin.NewNPMHandler(r.plugins, name, cfg.LoaderPlugins[name]))
	}
	adv := advice.NewRegistry("bundlekit.advice", logger)
	advice.RegisterBuiltins(adv)

	opts := []toolchain.Option{
		toolchain.WithLogger(logger),
		toolchain.WithRecorder(metrics.NewPrometheusRecorder(r.registry)),
		toolchain.WithLoaderPlugins(r.plugins, nil),
		toolchain.WithAdviceRegistry(adv),
		toolchain.WithTranspiler(transpilerFor(cfg.Build.Transpiler)),
		toolchain.WithFilenameSuffix(cfg.Build.FilenameSuffix),
	}

	if cfg.History.Database != "" {
		store, err := buildlog.Open(cfg.History.Database)
		if err != nil {
			return nil, err
		}
		r.store = store
		obsOpts := []buildlog.ObserverOption{buildlog.WithObserverLogger(logger)}
		if cfg.History.RecordRevision {
			obsOpts = append(obsOpts, buildlog.WithRevisionDir(cfg.Build.WorkingDir))
		}
		opts = append(opts, toolchain.WithObserver(buildlog.NewObserver(store, obsOpts...)))
	}

	if cfg.Notify.Enabled() {
		var client *notify.Client
		err := cfg.Notify.RetryPolicy().Do(ctx, func(ctx context.Context) error {
			c, err := notify.Connect(ctx, notify.Options{
				URL:     cfg.Notify.URL,
				Stream:  cfg.Notify.Stream,
				Subject: cfg.Notify.Subject,
				Timeout: cfg.Notify.NotifyTimeout(),
			}, logger)
			client = c
			return err
		})
		if err != nil {
			r.Close()
			return nil, err
		}
		r.notifier = client
		opts = append(opts, toolchain.WithObserver(
			notify.NewObserver(client, cfg.Notify.Subject, cfg.Notify.NotifyTimeout(), logger,
				notify.WithRetry(cfg.Notify.RetryPolicy()))))
	}

	switch cfg.Toolchain {
	case config.ToolchainNull:
		r.tc = toolchain.NewNull(opts...)
	default:
		r.tc = toolchain.NewConcat(opts...)
	}
	return r, nil
}

func transpilerFor(kind config.TranspilerKind) toolchain.Transpiler {
	if kind == config.TranspilerAMD {
		return toolchain.AMDTranspiler
	}
	return toolchain.NullTranspiler
}

// run seeds a fresh build state from the configuration and drives it
// through the toolchain. The metrics textfile is refreshed after every run.
func (r *runner) run(ctx context.Context) (*toolchain.Report, error) {
	s, err := r.cfg.NewSpec(r.plugins, spec.WithLogger(r.logger))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve working_dir").Build()
	}
	rep, runErr := r.tc.Run(ctx, s)
	if path := r.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(r.registry, path); err != nil {
			r.logger.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
		}
	}
	return rep, runErr
}

// Close releases the history database and the NATS connection.
func (r *runner) Close() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("Failed to close history database", logfields.Error(err))
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Close(); err != nil {
			r.logger.Warn("Failed to close NATS connection", logfields.Error(err))
		}
	}
}
