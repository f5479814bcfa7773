package toolchain

import (
	"time"

	"git.home.luguber.info/inful/bundlekit/internal/outcome"
)

// Report summarizes one toolchain run.
type Report struct {
	BuildID           string                  `json:"build_id"`
	Toolchain         string                  `json:"toolchain"`
	Outcome           outcome.Kind            `json:"outcome"`
	Reason            error                   `json:"-"`
	Error             string                  `json:"error,omitempty"`
	BuildDir          string                  `json:"build_dir,omitempty"`
	ExportTarget      string                  `json:"export_target,omitempty"`
	ExportModuleNames []string                `json:"export_module_names,omitempty"`
	PhaseDurations    map[Phase]time.Duration `json:"phase_durations"`
	Started           time.Time               `json:"started"`
	Finished          time.Time               `json:"finished"`
}

func newReport(toolchain string) *Report {
	return &Report{
		Toolchain:      toolchain,
		PhaseDurations: map[Phase]time.Duration{},
		Started:        time.Now(),
	}
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Succeeded reports whether the run reached SUCCESS.
func (r *Report) Succeeded() bool { return r.Outcome == outcome.Completed }
