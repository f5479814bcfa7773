package toolchain

import (
	"time"

	"git.home.luguber.info/inful/bundlekit/internal/metrics"
)

// Observer receives callbacks around phase execution and the run lifecycle.
type Observer interface {
	OnPhaseStart(phase Phase)
	OnPhaseComplete(phase Phase, d time.Duration, err error)
	OnRunComplete(report *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnPhaseStart(Phase)                          {}
func (NoopObserver) OnPhaseComplete(Phase, time.Duration, error) {}
func (NoopObserver) OnRunComplete(*Report)                       {}

// recorderObserver adapts metrics.Recorder into an Observer.
type recorderObserver struct{ rec metrics.Recorder }

func (r recorderObserver) OnPhaseStart(Phase) {}

func (r recorderObserver) OnPhaseComplete(phase Phase, d time.Duration, err error) {
	r.rec.ObservePhaseDuration(string(phase), d)
	r.rec.IncPhaseResult(string(phase), resultLabel(err))
}

func (r recorderObserver) OnRunComplete(report *Report) {
	r.rec.ObserveRunDuration(report.Duration())
	r.rec.IncRunOutcome(string(report.Outcome))
}
