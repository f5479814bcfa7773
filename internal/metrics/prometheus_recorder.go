package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	registry      *prom.Registry
	phaseDuration *prom.HistogramVec
	runDuration   prom.Histogram
	phaseResults  *prom.CounterVec
	runOutcome    *prom.CounterVec
	moduleResults *prom.CounterVec
	advicePkgs    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.phaseDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bundlekit",
			Name:      "phase_duration_seconds",
			Help:      "Duration of individual toolchain phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "bundlekit",
			Name:      "run_duration_seconds",
			Help:      "Total toolchain run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.phaseResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bundlekit",
			Name:      "phase_results_total",
			Help:      "Phase result counts by outcome",
		}, []string{"phase", "result"})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bundlekit",
			Name:      "run_outcomes_total",
			Help:      "Toolchain runs by final outcome",
		}, []string{"outcome"})
		pr.moduleResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bundlekit",
			Name:      "module_results_total",
			Help:      "Compiled modules by compile entry and result",
		}, []string{"entry", "result"})
		pr.advicePkgs = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bundlekit",
			Name:      "advice_packages_applied_total",
			Help:      "Advice packages requested for toolchain runs",
		}, []string{"package"})
		reg.MustRegister(pr.phaseDuration, pr.runDuration, pr.phaseResults, pr.runOutcome, pr.moduleResults, pr.advicePkgs)
	})
	return pr
}

// Registry returns the registry the collectors are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil || p.phaseDuration == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPhaseResult(phase string, result ResultLabel) {
	if p == nil || p.phaseResults == nil {
		return
	}
	p.phaseResults.WithLabelValues(phase, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncModuleResult(entry string, result ResultLabel) {
	if p == nil || p.moduleResults == nil {
		return
	}
	p.moduleResults.WithLabelValues(entry, string(result)).Inc()
}

func (p *PrometheusRecorder) IncAdvicePackage(pkg string) {
	if p == nil || p.advicePkgs == nil {
		return
	}
	p.advicePkgs.WithLabelValues(pkg).Inc()
}
