package spec

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bundlekit/internal/outcome"
)

func record(calls *[]string, name string) AdviceFunc {
	return func(context.Context) error {
		*calls = append(*calls, name)
		return nil
	}
}

func TestHandleRunsLIFO(t *testing.T) {
	s, _ := newTestSpec(t)
	var calls []string
	require.NoError(t, s.Advise(Setup, record(&calls, "A")))
	require.NoError(t, s.Advise(Setup, record(&calls, "B")))
	require.NoError(t, s.Advise(Setup, record(&calls, "C")))
	require.NoError(t, s.Advise(Cleanup, record(&calls, "other")))

	require.NoError(t, s.Handle(t.Context(), Setup))
	assert.Equal(t, []string{"C", "B", "A"}, calls)
	assert.Equal(t, 0, s.Pending(Setup))
	assert.Equal(t, 1, s.Pending(Cleanup))
}

func TestHandleTwiceWarnsAndRunsNothing(t *testing.T) {
	s, logs := newTestSpec(t)
	var calls []string
	require.NoError(t, s.Advise(Setup, record(&calls, "A")))
	require.NoError(t, s.Handle(t.Context(), Setup))
	require.NoError(t, s.Handle(t.Context(), Setup))
	assert.Equal(t, []string{"A"}, calls)
	assert.Contains(t, logs.String(), "already been handled")
}

func TestBlackholeAndMalformed(t *testing.T) {
	s, logs := newTestSpec(t)
	var calls []string
	require.NoError(t, s.Advise(Blackhole, record(&calls, "lost")))
	require.NoError(t, s.Handle(t.Context(), Blackhole))
	assert.Empty(t, calls)

	require.NoError(t, s.Advise(Setup, record(&calls, "A")))
	require.NoError(t, s.Advise(Setup, nil))
	require.NoError(t, s.Handle(t.Context(), Setup))
	assert.Equal(t, []string{"A"}, calls)
	assert.Contains(t, logs.String(), "spec advice malformed")
}

func TestAdviseDuringHandleIsForbidden(t *testing.T) {
	s, logs := newTestSpec(t)
	var calls []string
	var inner error
	require.NoError(t, s.Advise(Setup, func(context.Context) error {
		inner = s.Advise(Setup, record(&calls, "sneaky"))
		return nil
	}))
	require.NoError(t, s.Handle(t.Context(), Setup))
	require.ErrorIs(t, inner, ErrIndirectAdvise)
	assert.Contains(t, logs.String(), "indirect invocation of advise by handle is forbidden")
	assert.Equal(t, 0, s.Pending(Setup))

	// The queue remains usable once the handler returned.
	require.NoError(t, s.Advise(Cleanup, record(&calls, "after")))
	require.NoError(t, s.Handle(t.Context(), Cleanup))
	assert.Equal(t, []string{"after"}, calls)
}

func TestHandleDuringHandleIsForbidden(t *testing.T) {
	s, logs := newTestSpec(t)
	var calls []string
	var inner error
	require.NoError(t, s.Advise(Cleanup, record(&calls, "cleanup")))
	require.NoError(t, s.Advise(Setup, func(ctx context.Context) error {
		inner = s.Handle(ctx, Cleanup)
		return nil
	}))
	require.NoError(t, s.Handle(t.Context(), Setup))
	require.ErrorIs(t, inner, ErrIndirectHandle)
	assert.Contains(t, logs.String(), "indirect invocation of handle by handle is forbidden")
	assert.Empty(t, calls)

	require.NoError(t, s.Handle(t.Context(), Cleanup))
	assert.Equal(t, []string{"cleanup"}, calls)
}

func TestHandleIsolatesFailures(t *testing.T) {
	s, logs := newTestSpec(t)
	var calls []string
	require.NoError(t, s.Advise(Setup, record(&calls, "first")))
	require.NoError(t, s.Advise(Setup, func(context.Context) error { panic("kaboom") }))
	require.NoError(t, s.Advise(Setup, func(context.Context) error { return errors.New("plain failure") }))
	require.NoError(t, s.Advise(Setup, func(context.Context) error { return outcome.AdviceAbort("known issue") }))
	require.NoError(t, s.Advise(Setup, func(context.Context) error { return outcome.AdviceCancel("not needed") }))

	require.NoError(t, s.Handle(t.Context(), Setup))
	assert.Equal(t, []string{"first"}, calls)

	out := logs.String()
	assert.Contains(t, out, "advice signaled its cancellation")
	assert.Contains(t, out, "known error during its execution")
	assert.Contains(t, out, "plain failure")
	assert.Contains(t, out, "kaboom")
	assert.NotContains(t, out, "showing traceback")
}

func TestHandleStopsOnToolchainSignals(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want outcome.Kind
	}{
		{"abort", outcome.Abort("stop"), outcome.Aborted},
		{"cancel", outcome.Cancel("stop"), outcome.Cancelled},
		{"context", context.Canceled, outcome.Cancelled},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestSpec(t)
			var calls []string
			require.NoError(t, s.Advise(Setup, record(&calls, "never")))
			require.NoError(t, s.Advise(Setup, func(context.Context) error { return tc.err }))
			err := s.Handle(t.Context(), Setup)
			require.Error(t, err)
			assert.Equal(t, tc.want, outcome.Classify(err))
			assert.Empty(t, calls)
		})
	}
}

func TestDebugLevels(t *testing.T) {
	s, logs := newTestSpec(t)
	s.Set(KeyDebug, 2)
	require.NoError(t, s.Advise(Setup, func(context.Context) error { return errors.New("broken") }))
	assert.Contains(t, logs.String(), "advise invoked")
	assert.Contains(t, logs.String(), "advice_test.go")

	require.NoError(t, s.Handle(t.Context(), Setup))
	out := logs.String()
	assert.Contains(t, out, "handling advices")
	assert.Contains(t, out, "traceback for original advice")
	assert.True(t, strings.Contains(out, "runtime/debug.Stack"))
}

func TestDebugPanicTraceback(t *testing.T) {
	s, logs := newTestSpec(t)
	s.Set(KeyDebug, 1)
	require.NoError(t, s.Advise(Setup, func(context.Context) error { panic(errors.New("deep")) }))
	require.NoError(t, s.Handle(t.Context(), Setup))
	assert.Contains(t, logs.String(), "showing traceback for error")
	assert.NotContains(t, logs.String(), "traceback for original advice")
}
