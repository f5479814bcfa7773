package config

// normalize case-folds enumerations in place and returns a warning for
// every value it had to coerce.
func normalize(cfg *Config) []string {
	var warnings []string
	note := func(w string) {
		if w != "" {
			warnings = append(warnings, w)
		}
	}

	tc := toolchainNormalizer.NormalizeWithWarning("toolchain", string(cfg.Toolchain))
	cfg.Toolchain = tc.Value
	note(tc.Warning)

	tr := transpilerNormalizer.NormalizeWithWarning("build.transpiler", string(cfg.Build.Transpiler))
	cfg.Build.Transpiler = tr.Value
	note(tr.Warning)

	lvl := logLevelNormalizer.NormalizeWithWarning("logging.level", string(cfg.Logging.Level))
	cfg.Logging.Level = lvl.Value
	note(lvl.Warning)

	fmtRes := logFormatNormalizer.NormalizeWithWarning("logging.format", string(cfg.Logging.Format))
	cfg.Logging.Format = fmtRes.Value
	note(fmtRes.Warning)

	if cfg.Notify.Enabled() {
		bo := backoffNormalizer.NormalizeWithWarning("notify.retry.backoff", string(cfg.Notify.Retry.Backoff))
		cfg.Notify.Retry.Backoff = bo.Value
		note(bo.Warning)
	}

	return warnings
}
