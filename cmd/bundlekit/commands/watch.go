package commands

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"git.home.luguber.info/inful/bundlekit/internal/config"
	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/metrics"
	"git.home.luguber.info/inful/bundlekit/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Every  string `help:"Also rebuild on this interval (e.g. 10m); overrides watch.every"`
	Listen string `help:"Serve Prometheus metrics on this address; overrides metrics.listen"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, logger, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if w.Every != "" {
		cfg.Watch.Every = w.Every
	}
	if w.Listen != "" {
		cfg.Metrics.Listen = w.Listen
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return RunWatch(ctx, g, cfg, logger)
}

// RunWatch rebuilds cfg on every source change until ctx is done.
func RunWatch(ctx context.Context, g *Global, cfg *config.Config, logger *slog.Logger) error {
	r, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	if cfg.Metrics.Listen != "" {
		stop, err := serveMetrics(cfg.Metrics.Listen, r, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	out := stdout(g)
	watcher := watch.New(func(ctx context.Context, _ watch.Trigger) error {
		rep, runErr := r.run(ctx)
		if rep != nil {
			if err := printReport(out, rep, false); err != nil {
				logger.Warn("Failed to write report", logfields.Error(err))
			}
		}
		return runError(runErr)
	},
		watch.WithPaths(resolvePaths(cfg.Build.WorkingDir, cfg.Watch.Paths)...),
		watch.WithIgnore(outputPaths(cfg)...),
		watch.WithDebounce(cfg.Watch.DebounceDuration()),
		watch.WithInterval(cfg.Watch.Interval()),
		watch.WithLogger(logger),
	)
	logger.Info("Watching sources", slog.Int("paths", len(cfg.Watch.Paths)))
	if err := watcher.Run(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "watch sources").Build()
	}
	logger.Info("Watch stopped", slog.Int64("builds", watcher.Builds()))
	return nil
}

// serveMetrics exposes the runner's registry on addr and returns a
// function shutting the server down.
func serveMetrics(addr string, r *runner, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "listen for metrics").
			WithContext("addr", addr).Build()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(r.registry))
	srv := &http.Server{Handler: mux, ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", logfields.Error(err))
		}
	}()
	logger.Info("Serving metrics", slog.String("addr", ln.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Failed to stop metrics server", logfields.Error(err))
		}
	}, nil
}

func resolvePaths(workingDir string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(workingDir, p)
		}
		out = append(out, p)
	}
	return out
}

// outputPaths lists everything a run writes, so writes never retrigger
// a build.
func outputPaths(cfg *config.Config) []string {
	var out []string
	if cfg.Build.BuildDir != "" {
		out = append(out, resolvePaths(cfg.Build.WorkingDir, []string{cfg.Build.BuildDir})...)
	}
	if cfg.Build.ExportTarget != "" {
		target := resolvePaths(cfg.Build.WorkingDir, []string{cfg.Build.ExportTarget})[0]
		out = append(out, target, target+".manifest.json")
	}
	if cfg.History.Database != "" && cfg.History.Database != ":memory:" {
		db := cfg.History.Database
		out = append(out, db, db+"-journal", db+"-wal", db+"-shm")
	}
	if cfg.Metrics.Textfile != "" {
		out = append(out, cfg.Metrics.Textfile)
	}
	return out
}
