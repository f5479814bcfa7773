// Package outcome defines the control signals raised by advice and toolchain
// steps and the classification of a run's result.
package outcome

import (
	"context"
	"errors"
	"fmt"
)

// Kind enumerates run outcomes and the signal categories that produce them.
type Kind string

const (
	Completed Kind = "completed" // Run reached SUCCESS.
	Aborted   Kind = "aborted"   // Toolchain abort; stop, clean up, report.
	Cancelled Kind = "cancelled" // Toolchain cancel; stop, clean up, quietly.
	Skipped   Kind = "skipped"   // Purposeful skip of a single unit of work.
	Crashed   Kind = "crashed"   // Unexpected error or panic.

	// Advice-local signals only end the advice that raised them.
	AdviceAborted   Kind = "advice_aborted"
	AdviceCancelled Kind = "advice_cancelled"
)

// Signal is an error value carrying a control-flow intent.
type Signal struct {
	Kind Kind
	Msg  string
	Err  error
}

func (s *Signal) Error() string {
	switch {
	case s.Msg != "" && s.Err != nil:
		return fmt.Sprintf("%s: %s: %v", s.Kind, s.Msg, s.Err)
	case s.Err != nil:
		return fmt.Sprintf("%s: %v", s.Kind, s.Err)
	case s.Msg != "":
		return fmt.Sprintf("%s: %s", s.Kind, s.Msg)
	default:
		return string(s.Kind)
	}
}

func (s *Signal) Unwrap() error { return s.Err }

// Is matches another *Signal of the same kind so that errors.Is can be used
// against the sentinel values below.
func (s *Signal) Is(target error) bool {
	var t *Signal
	if !errors.As(target, &t) {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == s.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrAbort        = &Signal{Kind: Aborted}
	ErrCancel       = &Signal{Kind: Cancelled}
	ErrSkip         = &Signal{Kind: Skipped}
	ErrAdviceAbort  = &Signal{Kind: AdviceAborted}
	ErrAdviceCancel = &Signal{Kind: AdviceCancelled}
)

func newSignal(k Kind, format string, args ...any) *Signal {
	return &Signal{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Abort requests that the whole run stop; CLEANUP still runs.
func Abort(format string, args ...any) *Signal { return newSignal(Aborted, format, args...) }

// AbortWith wraps err as an abort.
func AbortWith(err error, msg string) *Signal {
	return &Signal{Kind: Aborted, Msg: msg, Err: err}
}

// Cancel requests a quiet stop of the run; CLEANUP still runs.
func Cancel(format string, args ...any) *Signal { return newSignal(Cancelled, format, args...) }

// Skip tells the caller to skip the current item and continue.
func Skip(format string, args ...any) *Signal { return newSignal(Skipped, format, args...) }

// AdviceAbort ends the current advice with a warning.
func AdviceAbort(format string, args ...any) *Signal {
	return newSignal(AdviceAborted, format, args...)
}

// AdviceCancel ends the current advice with an informational notice.
func AdviceCancel(format string, args ...any) *Signal {
	return newSignal(AdviceCancelled, format, args...)
}

// As extracts the outermost Signal from err.
func As(err error) (*Signal, bool) {
	var s *Signal
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}

// Classify maps an error returned by a step or advice to an outcome kind.
// Context cancellation counts as a toolchain cancel; anything that is not a
// Signal is a crash.
func Classify(err error) Kind {
	if err == nil {
		return Completed
	}
	if s, ok := As(err); ok {
		return s.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}
	return Crashed
}

// IsTerminal reports whether k stops the run.
func (k Kind) IsTerminal() bool {
	return k == Aborted || k == Cancelled || k == Crashed
}

func (k Kind) String() string { return string(k) }
