package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/retry"
	"git.home.luguber.info/inful/bundlekit/internal/toolchain"
)

// Observer publishes phase and run events for a toolchain.
//
// Phase events go to <subject>.phase.<phase>; run events go to
// <subject>.run.<outcome>.
type Observer struct {
	pub     Publisher
	subject string
	timeout time.Duration
	retry   retry.Policy
	logger  *slog.Logger
	now     func() time.Time
}

// ObserverOption configures an Observer.
type ObserverOption func(*Observer)

// WithRetry retries failed publishes according to p. Each attempt gets
// its own timeout.
func WithRetry(p retry.Policy) ObserverOption {
	return func(o *Observer) { o.retry = p }
}

// NewObserver returns an Observer publishing through pub. Without
// WithRetry a failed publish is not retried.
func NewObserver(pub Publisher, subject string, timeout time.Duration, logger *slog.Logger, opts ...ObserverOption) *Observer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	o := &Observer{
		pub:     pub,
		subject: subject,
		timeout: timeout,
		retry:   retry.NewPolicy(retry.ModeFixed, 0, 0, 0),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var _ toolchain.Observer = (*Observer)(nil)

func (o *Observer) OnPhaseStart(toolchain.Phase) {}

func (o *Observer) OnPhaseComplete(phase toolchain.Phase, d time.Duration, err error) {
	o.publish(o.subject+".phase."+string(phase), newPhaseEvent(phase, d, err, o.now()))
}

func (o *Observer) OnRunComplete(rep *toolchain.Report) {
	o.publish(o.subject+".run."+string(rep.Outcome), newRunEvent(rep, o.now()))
}

func (o *Observer) publish(subject string, ev any) {
	data, err := json.Marshal(ev)
	if err != nil {
		o.logger.Error("Failed to marshal event", slog.String("subject", subject), logfields.Error(err))
		return
	}
	attempts := 0
	err = o.retry.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			o.logger.Debug("Retrying event publish", slog.String("subject", subject), slog.Int("attempt", attempts))
		}
		ctx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		return o.pub.Publish(ctx, subject, data)
	})
	if err != nil {
		o.logger.Warn("Failed to publish event", slog.String("subject", subject), slog.Int("attempts", attempts), logfields.Error(err))
		return
	}
	o.logger.Debug("Published event", slog.String("subject", subject))
}
