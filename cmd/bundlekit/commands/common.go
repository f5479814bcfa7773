// Package commands implements the bundlekit command line.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bundlekit/internal/config"
)

// LogLevelEnv overrides the configured log level when set.
const LogLevelEnv = "BUNDLEKIT_LOG_LEVEL"

// Global carries state shared by every command.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"bundlekit.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build     BuildCmd     `cmd:"" help:"Run the configured toolchain once"`
	Watch     WatchCmd     `cmd:"" help:"Rebuild whenever sources change"`
	Init      InitCmd      `cmd:"" help:"Initialize a new configuration file"`
	History   HistoryCmd   `cmd:"" help:"Inspect recorded toolchain runs"`
	VLQ       VLQCmd       `cmd:"" name:"vlq" help:"Encode or decode base64 VLQ values"`
	Mappings  MappingsCmd  `cmd:"" help:"Encode or decode source map mappings"`
	Sourcemap SourcemapCmd `cmd:"" help:"Inspect source map files"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig reads the configuration named by the global flags and builds
// the logger it asks for. --verbose and BUNDLEKIT_LOG_LEVEL take precedence
// over the configured level.
func loadConfig(g *Global, root *CLI) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(root.Config, g.Logger)
	if err != nil {
		return nil, nil, err
	}
	logging := cfg.Logging
	if raw := os.Getenv(LogLevelEnv); raw != "" {
		logging.Level = config.NormalizeLogLevel(raw)
	}
	if root.Verbose {
		logging.Level = config.LogLevelDebug
	}
	return cfg, logging.NewLogger(stderr(g)), nil
}

func stdout(g *Global) io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func stderr(g *Global) io.Writer {
	if g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}
