package config

import (
	"fmt"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
	"git.home.luguber.info/inful/bundlekit/internal/retry"
)

// Validate checks cross-field constraints of a normalized configuration.
func Validate(cfg *Config) error {
	for _, check := range []func(*Config) error{
		validateBuild,
		validateSources,
		validateNotify,
		validateWatch,
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return ferrors.ValidationError(fmt.Sprintf(format, args...)).WithContext("field", field).Build()
}

func validateBuild(cfg *Config) error {
	if cfg.Toolchain == ToolchainConcat && cfg.Build.ExportTarget == "" {
		return invalid("build.export_target", "build.export_target is required by the %s toolchain", cfg.Toolchain)
	}
	if cfg.Build.Debug < 0 {
		return invalid("build.debug", "build.debug must not be negative")
	}
	if !strings.HasPrefix(cfg.Build.FilenameSuffix, ".") {
		return invalid("build.filename_suffix", "build.filename_suffix must start with a dot: %q", cfg.Build.FilenameSuffix)
	}
	return nil
}

func validateSources(cfg *Config) error {
	seen := map[string]string{}
	for entry, m := range map[string]map[string]string{"transpile": cfg.Sources.Transpile, "bundle": cfg.Sources.Bundle} {
		for modname, path := range m {
			if modname == "" || path == "" {
				return invalid("sources."+entry, "sources.%s contains an empty module name or path", entry)
			}
			if other, dup := seen[modname]; dup {
				return invalid("sources."+entry, "module %q is listed under both sources.%s and sources.%s", modname, other, entry)
			}
			seen[modname] = entry
		}
	}
	for name, pkg := range cfg.LoaderPlugins {
		if name == "" || strings.ContainsAny(name, "!?") || pkg == "" {
			return invalid("loaderplugins", "invalid loader plugin mapping %q: %q", name, pkg)
		}
	}
	return nil
}

func validateNotify(cfg *Config) error {
	if !cfg.Notify.Enabled() {
		return nil
	}
	if strings.ContainsAny(cfg.Notify.Subject, " \t") || strings.HasSuffix(cfg.Notify.Subject, ".") {
		return invalid("notify.subject", "invalid NATS subject %q", cfg.Notify.Subject)
	}
	if _, err := parsePositiveDuration(cfg.Notify.Timeout); err != nil {
		return invalid("notify.timeout", "notify.timeout: %v", err)
	}
	if cfg.Notify.Retry.MaxRetries < 0 {
		return invalid("notify.retry.max_retries", "notify.retry.max_retries must not be negative")
	}
	if _, err := parsePositiveDuration(cfg.Notify.Retry.Initial); err != nil {
		return invalid("notify.retry.initial", "notify.retry.initial: %v", err)
	}
	if _, err := parsePositiveDuration(cfg.Notify.Retry.Max); err != nil {
		return invalid("notify.retry.max", "notify.retry.max: %v", err)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if _, err := parsePositiveDuration(cfg.Watch.Debounce); err != nil {
		return invalid("watch.debounce", "watch.debounce: %v", err)
	}
	if cfg.Watch.Every != "" {
		d, err := parsePositiveDuration(cfg.Watch.Every)
		if err != nil {
			return invalid("watch.every", "watch.every: %v", err)
		}
		if d < time.Second {
			return invalid("watch.every", "watch.every must be at least 1s, got %s", d)
		}
	}
	return nil
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", raw)
	}
	return d, nil
}

// NotifyTimeout returns the parsed notify timeout.
func (n NotifyConfig) NotifyTimeout() time.Duration {
	d, _ := parsePositiveDuration(n.Timeout)
	return d
}

// RetryPolicy returns the publish retry policy. Without max_retries a
// failed publish is not retried.
func (n NotifyConfig) RetryPolicy() retry.Policy {
	initial, _ := parsePositiveDuration(n.Retry.Initial)
	maxDelay, _ := parsePositiveDuration(n.Retry.Max)
	return retry.NewPolicy(n.Retry.Backoff, initial, maxDelay, n.Retry.MaxRetries)
}

// DebounceDuration returns the parsed watch debounce.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, _ := parsePositiveDuration(w.Debounce)
	return d
}

// Interval returns the periodic rebuild interval, zero when disabled.
func (w WatchConfig) Interval() time.Duration {
	if w.Every == "" {
		return 0
	}
	d, _ := parsePositiveDuration(w.Every)
	return d
}
