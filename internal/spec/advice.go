package spec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/outcome"
)

// AdviceFunc is a callback registered against an event. Arguments are bound
// by closure.
type AdviceFunc func(ctx context.Context) error

var (
	// ErrIndirectAdvise is returned by Advise while Handle is running.
	ErrIndirectAdvise = errors.New("indirect invocation of advise by handle is forbidden")
	// ErrIndirectHandle is returned by Handle while Handle is running.
	ErrIndirectHandle = errors.New("indirect invocation of handle by handle is forbidden")
)

type advice struct {
	fn     AdviceFunc
	caller string
	stack  []byte
}

func (a advice) name() string {
	if a.caller == "" {
		return "<unknown>"
	}
	return a.caller
}

// Advise registers fn to run when name is handled. Registering against the
// Blackhole event is a no-op. A nil fn is kept and skipped when handled.
func (s *Spec) Advise(name Event, fn AdviceFunc) error {
	if name == Blackhole {
		return nil
	}
	if s.handling > 0 {
		s.logger.Error(ErrIndirectAdvise.Error(), logfields.Event(string(name)))
		return ErrIndirectAdvise
	}
	a := advice{fn: fn}
	if _, file, line, ok := runtime.Caller(1); ok {
		a.caller = fmt.Sprintf("%s:%d", file, line)
	}
	if lvl := s.Debug(); lvl > 0 {
		s.logger.Debug("advise invoked", logfields.Event(string(name)), logfields.Caller(a.caller))
		if lvl > 1 {
			a.stack = debug.Stack()
		}
	}
	s.advices[name] = append(s.advices[name], a)
	return nil
}

// Pending returns the number of advices queued for name.
func (s *Spec) Pending(name Event) int { return len(s.advices[name]) }

// Handle takes every advice queued for name and runs them last-in
// first-out. A failing advice is logged and the rest still run. Only a
// toolchain abort or cancel stops the queue; that signal is returned.
func (s *Spec) Handle(ctx context.Context, name Event) error {
	if s.handling > 0 {
		s.logger.Error(ErrIndirectHandle.Error(), logfields.Event(string(name)))
		return ErrIndirectHandle
	}
	if _, ok := s.handled[name]; ok {
		s.logger.Warn("advice group has already been handled for this spec", logfields.Event(string(name)))
	} else {
		s.handled[name] = struct{}{}
	}

	queue := s.advices[name]
	delete(s.advices, name)
	if len(queue) > 0 && s.Debug() > 0 {
		s.logger.Debug("handling advices", logfields.Event(string(name)), slog.Int("count", len(queue)))
	}

	s.handling++
	defer func() { s.handling-- }()

	for i := len(queue) - 1; i >= 0; i-- {
		a := queue[i]
		if a.fn == nil {
			s.logger.Info("spec advice malformed; skipping", logfields.Event(string(name)), logfields.Caller(a.name()))
			continue
		}
		stack, err := s.invoke(ctx, a)
		if err == nil {
			continue
		}
		attrs := []any{logfields.Event(string(name)), logfields.Caller(a.name()), logfields.Error(err)}
		switch outcome.Classify(err) {
		case outcome.AdviceCancelled, outcome.Skipped:
			s.logger.Info("advice signaled its cancellation during its execution", attrs...)
		case outcome.AdviceAborted:
			s.logger.Warn("advice encountered a known error during its execution; continuing with toolchain execution", attrs...)
		case outcome.Cancelled:
			s.logger.Info("advice cancelled the toolchain run", attrs...)
			return err
		case outcome.Aborted:
			s.logger.Error("an advice triggered an abort", attrs...)
			return err
		default:
			s.logger.Error("advice terminated due to an unexpected error", attrs...)
			if s.Debug() > 0 && stack != nil {
				s.logger.Error("showing traceback for error", logfields.Event(string(name)), slog.String("stack", string(stack)))
			}
			if a.stack != nil {
				s.logger.Info("traceback for original advice", logfields.Event(string(name)), slog.String("stack", string(a.stack)))
			}
		}
	}
	return nil
}

// invoke runs one advice, converting a panic into an error together with
// the stack at the panic site.
func (s *Spec) invoke(ctx context.Context, a advice) (stack []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack = debug.Stack()
			if e, ok := r.(error); ok {
				err = fmt.Errorf("advice panicked: %w", e)
				return
			}
			err = fmt.Errorf("advice panicked: %v", r)
		}
	}()
	return nil, a.fn(ctx)
}
