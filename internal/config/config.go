// Package config loads the bundlekit YAML configuration.
//
// A configuration file describes one toolchain run: the toolchain to use,
// where sources come from, where build output goes, and the optional
// collaborators (metrics, run history, event publishing, watch mode).
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
	"git.home.luguber.info/inful/bundlekit/internal/retry"
)

// CurrentVersion is the only configuration version understood by Load.
const CurrentVersion = "1.0"

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "bundlekit.yaml"

// Config is the root of a bundlekit configuration file.
type Config struct {
	Version   string        `yaml:"version"`
	Toolchain ToolchainKind `yaml:"toolchain"`
	Build     BuildConfig   `yaml:"build"`
	Sources   SourcesConfig `yaml:"sources"`
	Advice    AdviceConfig  `yaml:"advice,omitempty"`
	// LoaderPlugins maps a loader plugin name to the npm package providing
	// its runtime, e.g. text: requirejs-text.
	LoaderPlugins map[string]string `yaml:"loaderplugins,omitempty"`
	Logging       LoggingConfig     `yaml:"logging"`
	Metrics       MetricsConfig     `yaml:"metrics,omitempty"`
	History       HistoryConfig     `yaml:"history,omitempty"`
	Notify        NotifyConfig      `yaml:"notify,omitempty"`
	Watch         WatchConfig       `yaml:"watch,omitempty"`
}

// BuildConfig holds the build state keys seeded into every run.
type BuildConfig struct {
	WorkingDir        string         `yaml:"working_dir"`
	BuildDir          string         `yaml:"build_dir,omitempty"` // empty: temporary, removed after the run
	ExportTarget      string         `yaml:"export_target"`
	Overwrite         bool           `yaml:"export_target_overwrite"`
	SourceMaps        bool           `yaml:"generate_source_map"`
	ExportModuleNames []string       `yaml:"export_module_names,omitempty"`
	Transpiler        TranspilerKind `yaml:"transpiler"`
	FilenameSuffix    string         `yaml:"filename_suffix"`
	Debug             int            `yaml:"debug,omitempty"`
}

// SourcesConfig maps module names to source files per compile entry.
type SourcesConfig struct {
	Transpile map[string]string `yaml:"transpile,omitempty"`
	Bundle    map[string]string `yaml:"bundle,omitempty"`
}

// AdviceConfig selects advice packages to apply to the run.
type AdviceConfig struct {
	Packages       []string `yaml:"packages,omitempty"`
	SourcePackages []string `yaml:"source_packages,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"` // node_exporter textfile written after each run
	Listen   string `yaml:"listen,omitempty"`   // address serving /metrics in watch mode
}

// HistoryConfig configures the SQLite run history.
type HistoryConfig struct {
	Database       string `yaml:"database,omitempty"`
	RecordRevision bool   `yaml:"record_revision"`
}

// NotifyConfig configures NATS JetStream run events.
type NotifyConfig struct {
	URL     string            `yaml:"url,omitempty"`
	Subject string            `yaml:"subject,omitempty"`
	Stream  string            `yaml:"stream,omitempty"`
	Timeout string            `yaml:"timeout,omitempty"`
	Retry   NotifyRetryConfig `yaml:"retry,omitempty"`
}

// NotifyRetryConfig controls how often a failed publish is retried.
type NotifyRetryConfig struct {
	Backoff    retry.Mode `yaml:"backoff,omitempty"` // fixed|linear|exponential
	Initial    string     `yaml:"initial,omitempty"`
	Max        string     `yaml:"max,omitempty"`
	MaxRetries int        `yaml:"max_retries,omitempty"`
}

// Enabled reports whether run events should be published.
func (n NotifyConfig) Enabled() bool { return n.URL != "" }

// WatchConfig configures the rebuild loop.
type WatchConfig struct {
	Paths    []string `yaml:"paths,omitempty"`
	Debounce string   `yaml:"debounce,omitempty"`
	Every    string   `yaml:"every,omitempty"` // optional periodic rebuild interval
}

// Load reads, normalizes, defaults and validates the configuration at path.
// Warnings produced while normalizing are logged to logger.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := loadEnvFiles(logger); err != nil {
		return nil, err
	}

	// #nosec G304 -- configuration path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration file").Build()
	}
	cfg, err := Parse(data, logger)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration bytes after expanding ${VAR} references.
func Parse(data []byte, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "decode configuration").Build()
	}
	if cfg.Version != CurrentVersion {
		return nil, ferrors.ConfigError(fmt.Sprintf("unsupported configuration version %q (expected %s)", cfg.Version, CurrentVersion)).Build()
	}
	for _, w := range normalize(&cfg) {
		logger.Warn("config normalization", slog.String("warning", w))
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Example returns the configuration written by Init.
func Example() *Config {
	return &Config{
		Version:   CurrentVersion,
		Toolchain: ToolchainConcat,
		Build: BuildConfig{
			WorkingDir:   ".",
			ExportTarget: "dist/bundle.js",
			SourceMaps:   true,
			Transpiler:   TranspilerAMD,
		},
		Sources: SourcesConfig{
			Transpile: map[string]string{"app/main": "src/app/main.js"},
			Bundle:    map[string]string{"vendor/lib": "node_modules/lib/lib.js"},
		},
		LoaderPlugins: map[string]string{"text": "requirejs-text"},
		Logging:       LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		History:       HistoryConfig{Database: ".bundlekit/history.db", RecordRevision: true},
		Watch:         WatchConfig{Paths: []string{"src"}, Debounce: "300ms"},
	}
}

// Init writes an example configuration file to path.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.NewError(ferrors.CategoryAlreadyExists,
			fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).UserAction().Build()
	}
	data, err := yaml.Marshal(Example())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encode example configuration").Build()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write configuration file").Build()
	}
	return nil
}
