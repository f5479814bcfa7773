package toolchain

import "git.home.luguber.info/inful/bundlekit/internal/spec"

// Phase names a toolchain step between SETUP and SUCCESS.
type Phase string

const (
	PhasePrepare  Phase = "prepare"
	PhaseCompile  Phase = "compile"
	PhaseAssemble Phase = "assemble"
	PhaseLink     Phase = "link"
	PhaseFinalize Phase = "finalize"
)

// Phases lists the phases in run order.
var Phases = []Phase{PhasePrepare, PhaseCompile, PhaseAssemble, PhaseLink, PhaseFinalize}

// Before returns the event handled right before the phase runs.
func (p Phase) Before() spec.Event { return spec.Event("before_" + string(p)) }

// After returns the event handled right after the phase completes.
func (p Phase) After() spec.Event { return spec.Event("after_" + string(p)) }
