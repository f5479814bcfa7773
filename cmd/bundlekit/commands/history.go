package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/bundlekit/internal/buildlog"
	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
	"git.home.luguber.info/inful/bundlekit/internal/outcome"
)

// HistoryCmd implements the 'history' command group.
type HistoryCmd struct {
	List  HistoryListCmd  `cmd:"" default:"1" help:"List recent runs"`
	Show  HistoryShowCmd  `cmd:"" help:"Show one run"`
	Stats HistoryStatsCmd `cmd:"" help:"Count runs per outcome"`
	Prune HistoryPruneCmd `cmd:"" help:"Delete all but the most recent runs"`
}

// HistoryListCmd implements 'history list'.
type HistoryListCmd struct {
	Limit   int    `short:"n" default:"20" help:"Maximum number of runs to list (0 for all)"`
	Outcome string `help:"Only list runs with this outcome"`
}

func (c *HistoryListCmd) Run(g *Global, root *CLI) error {
	return withHistory(g, root, func(ctx context.Context, store *buildlog.Store) error {
		runs, err := store.List(ctx, buildlog.Filter{Limit: c.Limit, Outcome: outcome.Kind(c.Outcome)})
		if err != nil {
			return err
		}
		return writeRuns(stdout(g), runs)
	})
}

// HistoryShowCmd implements 'history show'.
type HistoryShowCmd struct {
	BuildID string `arg:"" help:"Build id of the run"`
}

func (c *HistoryShowCmd) Run(g *Global, root *CLI) error {
	return withHistory(g, root, func(ctx context.Context, store *buildlog.Store) error {
		run, err := store.Get(ctx, c.BuildID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout(g))
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	})
}

// HistoryStatsCmd implements 'history stats'.
type HistoryStatsCmd struct{}

func (c *HistoryStatsCmd) Run(g *Global, root *CLI) error {
	return withHistory(g, root, func(ctx context.Context, store *buildlog.Store) error {
		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		w := stdout(g)
		for _, kind := range slices.Sorted(maps.Keys(stats)) {
			if _, err := fmt.Fprintf(w, "%s\t%d\n", kind, stats[kind]); err != nil {
				return err
			}
		}
		return nil
	})
}

// HistoryPruneCmd implements 'history prune'.
type HistoryPruneCmd struct {
	Keep int `default:"100" help:"Number of most recent runs to keep"`
}

func (c *HistoryPruneCmd) Run(g *Global, root *CLI) error {
	return withHistory(g, root, func(ctx context.Context, store *buildlog.Store) error {
		n, err := store.Prune(ctx, c.Keep)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout(g), "Removed %d runs\n", n)
		return err
	})
}

func withHistory(g *Global, root *CLI, fn func(context.Context, *buildlog.Store) error) error {
	cfg, logger, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if cfg.History.Database == "" {
		return ferrors.ConfigError("history.database is not configured").Build()
	}
	store, err := buildlog.Open(cfg.History.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close history database", "error", err)
		}
	}()
	return fn(context.Background(), store)
}

func writeRuns(w io.Writer, runs []buildlog.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BUILD ID\tTOOLCHAIN\tOUTCOME\tSTARTED\tDURATION\tREVISION")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.BuildID, r.Toolchain, r.Outcome,
			r.Started.Local().Format(time.DateTime),
			r.Duration().Round(time.Millisecond), r.Revision)
	}
	return tw.Flush()
}
