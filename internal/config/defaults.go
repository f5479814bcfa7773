package config

const (
	defaultFilenameSuffix = ".js"
	defaultNotifySubject  = "bundlekit.runs"
	defaultNotifyStream   = "BUNDLEKIT"
	defaultNotifyTimeout  = "5s"
	defaultRetryInitial   = "200ms"
	defaultRetryMax       = "2s"
	defaultWatchDebounce  = "300ms"
)

// applyDefaults fills in values left empty after normalization.
func applyDefaults(cfg *Config) {
	if cfg.Build.WorkingDir == "" {
		cfg.Build.WorkingDir = "."
	}
	if cfg.Build.FilenameSuffix == "" {
		cfg.Build.FilenameSuffix = defaultFilenameSuffix
	}
	if cfg.Notify.Enabled() {
		if cfg.Notify.Subject == "" {
			cfg.Notify.Subject = defaultNotifySubject
		}
		if cfg.Notify.Stream == "" {
			cfg.Notify.Stream = defaultNotifyStream
		}
		if cfg.Notify.Timeout == "" {
			cfg.Notify.Timeout = defaultNotifyTimeout
		}
		if cfg.Notify.Retry.Initial == "" {
			cfg.Notify.Retry.Initial = defaultRetryInitial
		}
		if cfg.Notify.Retry.Max == "" {
			cfg.Notify.Retry.Max = defaultRetryMax
		}
	}
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = defaultWatchDebounce
	}
	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = defaultWatchPaths(cfg)
	}
}

// defaultWatchPaths watches every configured source file.
func defaultWatchPaths(cfg *Config) []string {
	var paths []string
	for _, m := range []map[string]string{cfg.Sources.Transpile, cfg.Sources.Bundle} {
		for _, p := range m {
			paths = append(paths, p)
		}
	}
	return paths
}
