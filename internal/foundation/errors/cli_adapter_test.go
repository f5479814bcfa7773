package errors

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"codec", CodecError("bad vlq").Build(), 3},
		{"not found", NewError(CategoryNotFound, "no such run").Build(), 4},
		{"config", ConfigError("bad config").Build(), 7},
		{"notify", NotifyError("nats down").Build(), 8},
		{"internal", InternalError("bug").Build(), 10},
		{"toolchain crash", ToolchainError("crashed").Build(), 11},
		{"runtime", RuntimeError("watch failed").Build(), 12},
		{"unclassified", errors.New("unknown error"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())
	cause := errors.New("permission denied")
	err := WrapError(cause, CategoryHistory, "open history database").Build()

	assert.Empty(t, quiet.FormatError(nil))
	assert.Equal(t, "Error: open history database (use -v for details)", quiet.FormatError(err))
	assert.Equal(t, "Error: [history:error] open history database: permission denied", verbose.FormatError(err))
	assert.Equal(t, "Error: [config:fatal] missing build_dir", quiet.FormatError(ConfigError("missing build_dir").Build()))
	assert.Equal(t, "Error: unknown error", quiet.FormatError(errors.New("unknown error")))
}

func TestCLIErrorAdapter_LogsFatalOnlyWhenQuiet(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	adapter := NewCLIErrorAdapter(false, logger)

	adapter.logError(GitError("no repository").Build())
	assert.Empty(t, buf.String())

	adapter.logError(NotifyError("nats down").WithCause(errors.New("refused")).WithContext("url", "nats://x").Fatal().Build())
	assert.Contains(t, buf.String(), "category=notify")
	assert.Contains(t, buf.String(), "url=nats://x")
	assert.Contains(t, buf.String(), "retryable=true")
	assert.Contains(t, buf.String(), "error=refused")
}
