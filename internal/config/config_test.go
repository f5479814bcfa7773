package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
	"git.home.luguber.info/inful/bundlekit/internal/loaderplugin"
	"git.home.luguber.info/inful/bundlekit/internal/retry"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

const minimal = `version: "1.0"
toolchain: concat
build:
  export_target: dist/bundle.js
sources:
  transpile:
    app/main: src/main.js
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundlekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(writeConfig(t, minimal), nil)
	require.NoError(t, err)

	assert.Equal(t, ToolchainConcat, cfg.Toolchain)
	assert.Equal(t, ".", cfg.Build.WorkingDir)
	assert.Equal(t, ".js", cfg.Build.FilenameSuffix)
	assert.Equal(t, TranspilerNull, cfg.Build.Transpiler)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.Equal(t, []string{"src/main.js"}, cfg.Watch.Paths)
	assert.Equal(t, "300ms", cfg.Watch.Debounce)
	assert.False(t, cfg.Notify.Enabled())
	assert.Zero(t, cfg.Watch.Interval())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoadExpandsEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("BUNDLE_OUT", "out/app.js")
	t.Cleanup(func() { _ = os.Unsetenv("NATS_URL") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NATS_URL=nats://example:4222\nBUNDLE_OUT=ignored.js\n"), 0o600))

	cfg, err := Load(writeConfig(t, `version: "1.0"
toolchain: concat
build:
  export_target: ${BUNDLE_OUT}
notify:
  url: ${NATS_URL}
`), nil)
	require.NoError(t, err)
	assert.Equal(t, "out/app.js", cfg.Build.ExportTarget)
	assert.Equal(t, "nats://example:4222", cfg.Notify.URL)
	assert.Equal(t, "bundlekit.runs", cfg.Notify.Subject)
	assert.Equal(t, "BUNDLEKIT", cfg.Notify.Stream)
	assert.Equal(t, "5s", cfg.Notify.NotifyTimeout().String())

	policy := cfg.Notify.RetryPolicy()
	assert.Equal(t, retry.ModeExponential, policy.Mode)
	assert.Equal(t, 200*time.Millisecond, policy.Initial)
	assert.Equal(t, 2*time.Second, policy.Max)
	assert.Zero(t, policy.MaxRetries)
}

func TestParseNormalizesEnumerations(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	cfg, err := Parse([]byte(`version: "1.0"
toolchain: "Null"
build:
  transpiler: Copy
logging:
  level: WARNING
  format: yaml
`), logger)
	require.NoError(t, err)
	assert.Equal(t, ToolchainNull, cfg.Toolchain)
	assert.Equal(t, TranspilerNull, cfg.Build.Transpiler)
	assert.Equal(t, LogLevelWarn, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.Contains(t, buf.String(), "normalized logging.level")
	assert.Contains(t, buf.String(), "invalid log format")
}

func TestParseRejectsInvalidConfiguration(t *testing.T) {
	cases := map[string]string{
		"version": `version: "2.0"`,
		"export target": `version: "1.0"
toolchain: concat`,
		"suffix": `version: "1.0"
toolchain: "null"
build:
  filename_suffix: js`,
		"duplicate module": `version: "1.0"
toolchain: "null"
sources:
  transpile: {a: a.js}
  bundle: {a: b.js}`,
		"loader plugin": `version: "1.0"
toolchain: "null"
loaderplugins: {"text!": requirejs-text}`,
		"debounce": `version: "1.0"
toolchain: "null"
watch: {debounce: soon}`,
		"every": `version: "1.0"
toolchain: "null"
watch: {every: 10ms}`,
		"subject": `version: "1.0"
toolchain: "null"
notify: {url: "nats://localhost:4222", subject: "runs."}`,
		"retries": `version: "1.0"
toolchain: "null"
notify: {url: "nats://localhost:4222", retry: {max_retries: -1}}`,
		"retry delay": `version: "1.0"
toolchain: "null"
notify: {url: "nats://localhost:4222", retry: {initial: later}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content), nil)
			require.Error(t, err)
			cat := ferrors.GetCategory(err)
			assert.Contains(t, []ferrors.ErrorCategory{ferrors.CategoryConfig, ferrors.CategoryValidation}, cat)
		})
	}
}

func TestInitWritesLoadableExample(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "bundlekit.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryAlreadyExists))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Example().Sources, cfg.Sources)
	assert.Equal(t, TranspilerAMD, cfg.Build.Transpiler)
}

func TestNewSpec(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Parse([]byte(`version: "1.0"
toolchain: concat
build:
  working_dir: `+dir+`
  export_target: dist/out.js
  generate_source_map: true
  export_module_names: [app/main]
sources:
  transpile:
    app/main: src/main.js
    text!tmpl.html: /abs/tmpl.html
  bundle:
    lib: node_modules/lib/lib.js
advice:
  packages: ["example.package[extra]"]
`), nil)
	require.NoError(t, err)

	r := loaderplugin.NewRegistry("test", nil)
	s, err := cfg.NewSpec(r)
	require.NoError(t, err)

	assert.Equal(t, dir, s.GetString(spec.KeyWorkingDir))
	assert.Equal(t, "dist/out.js", s.GetString(spec.KeyExportTarget))
	assert.True(t, s.GetBool(spec.KeyGenerateSourceMap))
	assert.False(t, s.Has(spec.KeyBuildDir))
	assert.Equal(t, []string{"app/main"}, s.GetStrings(spec.KeyExportModuleNames))
	assert.Equal(t, []string{"example.package[extra]"}, s.GetStrings(spec.KeyAdvicePackages))

	transpile, ok := s.GetStringMap("transpile" + spec.SuffixSourcepath)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"app/main": filepath.Join(dir, "src/main.js")}, transpile)

	bundle, ok := s.GetStringMap("bundle" + spec.SuffixSourcepath)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"lib": filepath.Join(dir, "node_modules/lib/lib.js")}, bundle)

	assert.Equal(t, map[string]map[string]string{
		"text": {"text!tmpl.html": "/abs/tmpl.html"},
	}, loaderplugin.Groups(s, spec.KeyLoaderPluginSourcepathMaps))
}

func TestLoggingConfigNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	LoggingConfig{Level: LogLevelWarn, Format: LogFormatJSON}.NewLogger(buf).Info("hidden")
	assert.Empty(t, buf.String())

	LoggingConfig{Level: LogLevelDebug, Format: LogFormatJSON}.NewLogger(buf).Debug("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Equal(t, LogLevelError, NormalizeLogLevel(" ERROR "))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat("Json"))
}
