package metrics

import "time"

// ResultLabel enumerates phase and module result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultSkipped  ResultLabel = "skipped"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for toolchain runs. Implementations
// may forward to Prometheus or elsewhere.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncPhaseResult(phase string, result ResultLabel)
	IncRunOutcome(outcome string) // outcome: completed|aborted|cancelled|crashed
	IncModuleResult(entry string, result ResultLabel)
	IncAdvicePackage(pkg string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncPhaseResult(string, ResultLabel)         {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) IncModuleResult(string, ResultLabel)        {}
func (NoopRecorder) IncAdvicePackage(string)                    {}
