package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/bundlekit/internal/config"
	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
	"git.home.luguber.info/inful/bundlekit/internal/outcome"
	"git.home.luguber.info/inful/bundlekit/internal/toolchain"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	ExportTarget string `short:"o" name:"export-target" help:"Override build.export_target"`
	BuildDir     string `name:"build-dir" help:"Override build.build_dir; the directory is kept after the run"`
	Overwrite    bool   `help:"Allow replacing an existing export target"`
	Toolchain    string `short:"t" help:"Override the toolchain (null|concat)"`
	Report       bool   `help:"Print the run report as JSON"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, logger, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if err := b.apply(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	rep, runErr := r.run(ctx)
	if rep != nil {
		if err := printReport(stdout(g), rep, b.Report); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "write report").Build()
		}
	}
	return runError(runErr)
}

// apply layers command line overrides onto cfg and revalidates it.
func (b *BuildCmd) apply(cfg *config.Config) error {
	if b.Toolchain != "" {
		kind, err := config.ParseToolchainKind(b.Toolchain)
		if err != nil {
			return ferrors.ValidationError(err.Error()).Build()
		}
		cfg.Toolchain = kind
	}
	if b.ExportTarget != "" {
		cfg.Build.ExportTarget = b.ExportTarget
	}
	if b.BuildDir != "" {
		cfg.Build.BuildDir = b.BuildDir
	}
	if b.Overwrite {
		cfg.Build.Overwrite = true
	}
	return config.Validate(cfg)
}

// runError maps a run result onto the command result. Aborts and cancels
// were already logged by the toolchain and exit cleanly.
func runError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, toolchain.ErrCrashed) {
		return ferrors.ToolchainError("toolchain run crashed").WithCause(err).Build()
	}
	switch outcome.Classify(err) {
	case outcome.Aborted, outcome.Cancelled:
		return nil
	}
	return err
}

func printReport(w io.Writer, rep *toolchain.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	var err error
	switch {
	case rep.Outcome == outcome.Completed && rep.ExportTarget != "":
		_, err = fmt.Fprintf(w, "Build %s completed: %s\n", rep.BuildID, rep.ExportTarget)
	case rep.Outcome == outcome.Completed:
		_, err = fmt.Fprintf(w, "Build %s completed\n", rep.BuildID)
	default:
		_, err = fmt.Fprintf(w, "Build %s %s: %s\n", rep.BuildID, rep.Outcome, rep.Error)
	}
	return err
}
