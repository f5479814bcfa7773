package buildlog

import (
	"context"
	"io"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/toolchain"
)

// Observer records every finished run into a Store.
type Observer struct {
	toolchain.NoopObserver

	store      *Store
	revisionOf func() string
	logger     *slog.Logger
	timeout    time.Duration
}

// ObserverOption configures an Observer.
type ObserverOption func(*Observer)

// WithRevisionDir records the git revision of dir with each run.
func WithRevisionDir(dir string) ObserverOption {
	return func(o *Observer) {
		o.revisionOf = func() string {
			rev, err := Revision(dir)
			if err != nil {
				o.logger.Warn("Unable to determine source revision", logfields.Path(dir), logfields.Error(err))
			}
			return rev
		}
	}
}

// WithObserverLogger sets the logger used to report recording failures.
func WithObserverLogger(l *slog.Logger) ObserverOption {
	return func(o *Observer) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewObserver returns a toolchain.Observer writing to store.
func NewObserver(store *Store, opts ...ObserverOption) *Observer {
	o := &Observer{
		store:      store,
		revisionOf: func() string { return "" },
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnRunComplete stores the report. Failures are logged and not propagated.
func (o *Observer) OnRunComplete(rep *toolchain.Report) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if _, err := o.store.Record(ctx, rep, o.revisionOf()); err != nil {
		o.logger.Error("Failed to record run history", logfields.BuildID(rep.BuildID), logfields.Error(err))
		return
	}
	o.logger.Debug("Recorded run history", logfields.BuildID(rep.BuildID))
}
