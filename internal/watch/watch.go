// Package watch reruns a build whenever its sources change, and optionally
// on a fixed schedule.
package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
)

// Reason tells why a build was started.
type Reason string

const (
	ReasonInitial  Reason = "initial"
	ReasonChange   Reason = "change"
	ReasonSchedule Reason = "schedule"
)

// Trigger describes one requested build.
type Trigger struct {
	Reason Reason
	Paths  []string // changed paths, sorted; empty unless Reason is ReasonChange
}

// BuildFunc runs one build. Errors are logged and do not stop the watcher.
type BuildFunc func(ctx context.Context, t Trigger) error

// Watcher serializes builds triggered by file changes and a schedule.
type Watcher struct {
	build    BuildFunc
	paths    []string
	ignore   []string
	debounce time.Duration
	interval time.Duration
	logger   *slog.Logger

	scheduled chan Trigger
	builds    atomic.Int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPaths sets the files and directories to watch. Directories are
// watched recursively.
func WithPaths(paths ...string) Option {
	return func(w *Watcher) { w.paths = append(w.paths, paths...) }
}

// WithIgnore drops events for paths at or below any of prefixes, such as
// the build output.
func WithIgnore(prefixes ...string) Option {
	return func(w *Watcher) {
		for _, p := range prefixes {
			if p == "" {
				continue
			}
			if abs, err := filepath.Abs(p); err == nil {
				w.ignore = append(w.ignore, abs)
			}
		}
	}
}

// WithDebounce sets how long the watcher waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithInterval additionally rebuilds every d. Zero disables the schedule.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a Watcher running build.
func New(build BuildFunc, opts ...Option) *Watcher {
	w := &Watcher{
		build:     build,
		debounce:  300 * time.Millisecond,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		scheduled: make(chan Trigger, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Builds returns how many builds have been started.
func (w *Watcher) Builds() int64 { return w.builds.Load() }

// Run performs an initial build and then rebuilds on changes until ctx is
// done. Builds never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil {
			w.logger.Error("Error closing file watcher", logfields.Error(cerr))
		}
	}()

	tree, err := w.register(fw)
	if err != nil {
		return err
	}

	if w.interval > 0 {
		sched, err := w.schedule()
		if err != nil {
			return err
		}
		defer func() {
			if serr := sched.Shutdown(); serr != nil {
				w.logger.Error("Error stopping scheduler", logfields.Error(serr))
			}
		}()
	}

	w.runBuild(ctx, Trigger{Reason: ReasonInitial})

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := map[string]struct{}{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev, tree) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.addNewDir(fw, tree, ev.Name)
			}
			w.logger.Debug("Source change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))
		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)
			w.runBuild(ctx, Trigger{Reason: ReasonChange, Paths: paths})
		case t := <-w.scheduled:
			w.runBuild(ctx, t)
		}
	}
}

// watchTree records what is watched: files by exact path, directories as
// recursive roots.
type watchTree struct {
	files map[string]bool
	roots []string
}

func (w *Watcher) register(fw *fsnotify.Watcher) (*watchTree, error) {
	tree := &watchTree{files: map[string]bool{}}
	for _, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve watch path %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			w.logger.Warn("Watch path does not exist; skipping", logfields.Path(abs))
			continue
		}
		if !info.IsDir() {
			// Watch the directory containing the file; editors replace files on save.
			tree.files[abs] = true
			if err := fw.Add(filepath.Dir(abs)); err != nil {
				return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
			}
			continue
		}
		tree.roots = append(tree.roots, abs)
		if err := w.addTree(fw, abs); err != nil {
			return nil, err
		}
	}
	w.logger.Info("Watching sources", slog.Int("files", len(tree.files)), slog.Int("directories", len(tree.roots)))
	return tree, nil
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(p) {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) addNewDir(fw *fsnotify.Watcher, tree *watchTree, p string) {
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() || !under(p, tree.roots) {
		return
	}
	if err := w.addTree(fw, p); err != nil {
		w.logger.Warn("Failed to watch new directory", logfields.Path(p), logfields.Error(err))
	}
}

func (w *Watcher) relevant(ev fsnotify.Event, tree *watchTree) bool {
	if ev.Op == fsnotify.Chmod || w.ignored(ev.Name) {
		return false
	}
	return tree.files[ev.Name] || under(ev.Name, tree.roots)
}

func (w *Watcher) ignored(p string) bool {
	return under(p, w.ignore)
}

func under(p string, roots []string) bool {
	for _, r := range roots {
		if p == r || strings.HasPrefix(p, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule() (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			select {
			case w.scheduled <- Trigger{Reason: ReasonSchedule}:
			default:
				// a scheduled build is already pending
			}
		}),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create periodic build job: %w", err)
	}
	s.Start()
	w.logger.Info("Scheduled periodic rebuild", slog.Duration("interval", w.interval))
	return s, nil
}

func (w *Watcher) runBuild(ctx context.Context, t Trigger) {
	n := w.builds.Add(1)
	start := time.Now()
	w.logger.Info("Starting build", slog.String("reason", string(t.Reason)), slog.Int64("build", n), slog.Int("changed", len(t.Paths)))
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("build panicked: %v", r)
			}
		}()
		return w.build(ctx, t)
	}()
	ms := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		w.logger.Error("Build failed", slog.Int64("build", n), logfields.DurationMS(ms), logfields.Error(err))
		return
	}
	w.logger.Info("Build finished", slog.Int64("build", n), logfields.DurationMS(ms))
}
