package notify

import (
	"time"

	"git.home.luguber.info/inful/bundlekit/internal/outcome"
	"git.home.luguber.info/inful/bundlekit/internal/toolchain"
)

// Event types published by the Observer.
const (
	TypePhaseCompleted = "phase.completed"
	TypeRunCompleted   = "run.completed"
)

// PhaseEvent reports the end of one phase.
type PhaseEvent struct {
	Type       string    `json:"type"`
	Phase      string    `json:"phase"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
	DurationMS float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// RunEvent reports a finished toolchain run.
type RunEvent struct {
	Type              string             `json:"type"`
	BuildID           string             `json:"build_id"`
	Toolchain         string             `json:"toolchain"`
	Outcome           outcome.Kind       `json:"outcome"`
	Error             string             `json:"error,omitempty"`
	ExportTarget      string             `json:"export_target,omitempty"`
	ExportModuleNames []string           `json:"export_module_names,omitempty"`
	PhaseDurationsMS  map[string]float64 `json:"phase_durations_ms,omitempty"`
	DurationMS        float64            `json:"duration_ms"`
	Timestamp         time.Time          `json:"timestamp"`
}

func newPhaseEvent(phase toolchain.Phase, d time.Duration, err error, now time.Time) PhaseEvent {
	ev := PhaseEvent{
		Type:       TypePhaseCompleted,
		Phase:      string(phase),
		Result:     "success",
		DurationMS: ms(d),
		Timestamp:  now,
	}
	if err != nil {
		ev.Result = string(outcome.Classify(err))
		ev.Error = err.Error()
	}
	return ev
}

func newRunEvent(rep *toolchain.Report, now time.Time) RunEvent {
	ev := RunEvent{
		Type:              TypeRunCompleted,
		BuildID:           rep.BuildID,
		Toolchain:         rep.Toolchain,
		Outcome:           rep.Outcome,
		Error:             rep.Error,
		ExportTarget:      rep.ExportTarget,
		ExportModuleNames: rep.ExportModuleNames,
		DurationMS:        ms(rep.Duration()),
		Timestamp:         now,
	}
	if len(rep.PhaseDurations) > 0 {
		ev.PhaseDurationsMS = make(map[string]float64, len(rep.PhaseDurations))
		for p, d := range rep.PhaseDurations {
			ev.PhaseDurationsMS[string(p)] = ms(d)
		}
	}
	return ev
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
